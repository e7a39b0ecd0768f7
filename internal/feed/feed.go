// Package feed publishes flushed change batches to NATS so external devtools
// can follow a running application. It only publishes.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"git.home.luguber.info/inful/treestate/internal/changes"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/retry"
)

// Feed drains change events into a Publisher off the event loop.
type Feed struct {
	pub     Publisher
	subject string
	policy  retry.Policy
	logger  *slog.Logger
}

// New returns a feed publishing to subject.
func New(pub Publisher, subject string, policy retry.Policy, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		pub:     pub,
		subject: subject,
		policy:  policy,
		logger:  logger.With(logfields.Component("feed"), logfields.Subject(subject)),
	}
}

// Run publishes every event until events is closed or ctx ends. Events that
// still fail after retrying are logged and skipped.
func (f *Feed) Run(ctx context.Context, events <-chan changes.Flushed) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := f.Publish(ctx, evt); err != nil {
				f.logger.Error("Failed to publish change batch",
					logfields.BatchID(evt.BatchID),
					logfields.Error(err))
			}
		}
	}
}

// Publish sends one event, retrying transient failures.
func (f *Feed) Publish(ctx context.Context, evt changes.Flushed) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal change batch").Build()
	}
	err = f.policy.Do(ctx, func(ctx context.Context) error {
		if perr := f.pub.Publish(ctx, f.subject, data); perr != nil {
			return ferrors.WrapError(perr, ferrors.CategoryFeed, "publish change batch").
				Retryable().
				WithContext("batch_id", evt.BatchID).
				Build()
		}
		return nil
	})
	if err != nil {
		return err
	}
	f.logger.Debug("Published change batch",
		logfields.BatchID(evt.BatchID),
		logfields.BatchSize(evt.Size()))
	return nil
}
