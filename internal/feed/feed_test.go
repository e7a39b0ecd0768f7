package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/treestate/internal/changes"
	"git.home.luguber.info/inful/treestate/internal/config"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/retry"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	sent     []message
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("no responders")
	}
	f.sent = append(f.sent, message{subject: subject, data: data})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func fastPolicy(retries int) retry.Policy {
	return retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, retries)
}

func TestFeed_PayloadShape(t *testing.T) {
	pub := &fakePublisher{}
	f := New(pub, "ui.changes", fastPolicy(0), nil)

	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	require.NoError(t, f.Publish(t.Context(), changes.Flushed{
		StoreID: "s1",
		BatchID: "b1",
		Paths:   []string{"app.a", "app.b"},
		At:      at,
	}))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "ui.changes", pub.sent[0].subject)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pub.sent[0].data, &payload))
	assert.Equal(t, map[string]any{
		"store_id": "s1",
		"batch_id": "b1",
		"paths":    []any{"app.a", "app.b"},
		"at":       "2026-05-04T03:02:01Z",
	}, payload)
}

func TestFeed_RetriesTransientFailures(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	f := New(pub, "s", fastPolicy(3), nil)

	require.NoError(t, f.Publish(t.Context(), changes.Flushed{BatchID: "b"}))
	assert.Len(t, pub.sent, 1)
}

func TestFeed_GivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	f := New(pub, "s", fastPolicy(1), nil)

	err := f.Publish(t.Context(), changes.Flushed{BatchID: "b"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFeed))
	assert.Empty(t, pub.sent)
}

func TestFeed_RunDrainsChannel(t *testing.T) {
	pub := &fakePublisher{}
	f := New(pub, "s", fastPolicy(0), nil)

	events := make(chan changes.Flushed, 2)
	events <- changes.Flushed{BatchID: "1"}
	events <- changes.Flushed{BatchID: "2"}
	close(events)

	f.Run(t.Context(), events)
	assert.Len(t, pub.sent, 2)
}
