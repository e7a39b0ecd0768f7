package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/treestate/internal/loop"
)

func newBatchingStore(t *testing.T) (*Store, *loop.Manual) {
	t.Helper()
	sched := loop.NewManual()
	return New(WithScheduler(sched), WithID("test")), sched
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	v, ok := s.Get("app.nothing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestStore_ImmediateNotification(t *testing.T) {
	s := New()

	var pathCalls []any
	var batches []ChangeBatch
	s.Subscribe("app.a", func(_ string, v any) { pathCalls = append(pathCalls, v) })
	s.SubscribeAll(func(b ChangeBatch) { batches = append(batches, b) })

	s.Set("app.a", 1)
	s.Set("app.b", 2)

	require.Equal(t, []any{1}, pathCalls)
	require.Equal(t, []ChangeBatch{{"app.a"}, {"app.b"}}, batches)
}

func TestStore_DeferredBatching(t *testing.T) {
	s, sched := newBatchingStore(t)

	var batches []ChangeBatch
	s.SubscribeAll(func(b ChangeBatch) { batches = append(batches, b) })

	s.Set("app.form.field", "x")
	s.Set("app.form", "recomputed")
	s.Set("app.form.field", "y")

	require.Empty(t, batches, "nothing is delivered inside the execution window")
	require.True(t, s.Deferred())
	require.Equal(t, 1, sched.Pending(), "exactly one flush is scheduled per window")

	sched.RunPending()

	require.Len(t, batches, 1)
	assert.Equal(t, ChangeBatch{"app.form.field", "app.form"}, batches[0])
	assert.False(t, s.Deferred())

	v, _ := s.Get("app.form.field")
	assert.Equal(t, "y", v)
}

func TestStore_PathListenersBeforeWildcard(t *testing.T) {
	s, sched := newBatchingStore(t)

	var order []string
	s.Subscribe("a", func(p string, v any) { order = append(order, "path:"+p+"="+v.(string)) })
	s.Subscribe("b", func(p string, _ any) { order = append(order, "path:"+p) })
	s.SubscribeAll(func(b ChangeBatch) { order = append(order, "all") })

	s.Set("a", "1")
	s.Set("b", "2")
	s.Set("a", "3")
	sched.RunPending()

	assert.Equal(t, []string{"path:a=3", "path:b", "all"}, order)
}

func TestStore_ListenerWritesStartNewWindow(t *testing.T) {
	s, sched := newBatchingStore(t)

	var batches []ChangeBatch
	s.SubscribeAll(func(b ChangeBatch) {
		batches = append(batches, b)
		if b.Contains("app.input") {
			s.Set("app.derived", "computed")
		}
	})

	s.Set("app.input", 1)
	sched.RunPending()

	require.Equal(t, []ChangeBatch{{"app.input"}, {"app.derived"}}, batches)
}

func TestStore_ExplicitDefer(t *testing.T) {
	s := New()

	var batches []ChangeBatch
	s.SubscribeAll(func(b ChangeBatch) { batches = append(batches, b) })

	s.DeferNotifications()
	s.Set("x", 1)
	s.Set("y", 2)
	require.Empty(t, batches)

	s.SendNotifications()
	require.Equal(t, []ChangeBatch{{"x", "y"}}, batches)

	s.SendNotifications()
	require.Len(t, batches, 1, "an empty flush delivers nothing")
}

func TestStore_UnsubscribeIsIdempotent(t *testing.T) {
	s := New()

	calls := 0
	unsubA := s.Subscribe("p", func(string, any) { calls++ })
	unsubB := s.Subscribe("p", func(string, any) { calls += 10 })
	unsubAll := s.SubscribeAll(func(ChangeBatch) {})

	require.Equal(t, 2, s.SubscriberCount("p"))
	require.Equal(t, 1, s.WildcardSubscriberCount())

	unsubA()
	unsubA()
	unsubAll()
	unsubAll()

	require.Equal(t, 1, s.SubscriberCount("p"))
	require.Zero(t, s.WildcardSubscriberCount())

	s.Set("p", true)
	require.Equal(t, 10, calls)

	unsubB()
	require.Zero(t, s.SubscriberCount("p"))
}

func TestStore_UnsubscribeDuringDelivery(t *testing.T) {
	s := New()

	var unsub func()
	calls := 0
	unsub = s.SubscribeAll(func(ChangeBatch) {
		calls++
		unsub()
	})
	s.SubscribeAll(func(ChangeBatch) { calls++ })

	s.Set("a", 1)
	s.Set("a", 2)
	assert.Equal(t, 3, calls)
}

func TestStore_PathsAndSnapshot(t *testing.T) {
	s := New()
	s.Set("app.page.b", 2)
	s.Set("app.page", 1)
	s.Set("app.pager", 3)
	s.Set("app.page.a", 4)

	assert.Equal(t, []string{"app.page", "app.page.a", "app.page.b", "app.pager"}, s.Paths())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, map[string]any{"app.page": 1, "app.page.a": 4, "app.page.b": 2}, s.Snapshot("app.page"))
	assert.Len(t, s.Snapshot(""), 4)
}

func TestStore_IndependentInstances(t *testing.T) {
	a := New()
	b := New()
	a.Set("app.x", 1)

	_, ok := b.Get("app.x")
	assert.False(t, ok)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestChangeBatch_Touches(t *testing.T) {
	b := ChangeBatch{"app.page1.form1.field1", "app.other"}

	assert.True(t, b.Touches("app.page1"))
	assert.True(t, b.Touches("app.page1.form1.field1"))
	assert.True(t, b.Touches("app"))
	assert.False(t, b.Touches("app.page"), "prefix must end at a segment boundary")
	assert.False(t, b.Touches("app.page1.form1.field1.sub"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a.b", Join("a", "b"))
	assert.Equal(t, "b", Join("", "b"))
	assert.Equal(t, "a", Join("a", ""))
}
