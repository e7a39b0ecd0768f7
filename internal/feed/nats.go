package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// Publisher sends one payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// NATSPublisher publishes over core NATS, or through JetStream when enabled.
type NATSPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials url. With useJetStream, publishes wait for a stream ack.
func Connect(url string, useJetStream bool) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("treestate"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFeed, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}

	p := &NATSPublisher{conn: conn}
	if useJetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryFeed, "failed to create JetStream context").Build()
		}
		p.js = js
	}

	slog.Info("NATS change feed connected",
		slog.String("url", conn.ConnectedUrlRedacted()),
		slog.Bool("jetstream", useJetStream))
	return p, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.js != nil {
		_, err := p.js.Publish(ctx, subject, data)
		return err
	}
	return p.conn.Publish(subject, data)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
