// Package pubsub implements the keyed publish/subscribe store behind every
// running application.
//
// The store maps dot-delimited paths to values. Listeners subscribe either to
// one path or to every change; the latter receive whole ChangeBatch values.
// With a scheduler configured, the first Set after a flush defers
// notifications and posts exactly one flush, so a burst of writes made while
// handling one event reaches subscribers as a single batch.
//
// A Store is not safe for concurrent use. Drive it from one goroutine, which
// in practice is the owning loop.Loop.
package pubsub

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/loop"
	"git.home.luguber.info/inful/treestate/internal/metrics"
)

// Listener receives the path that changed and its value at flush time.
type Listener func(path string, value any)

// BatchListener receives every path that changed in one flush.
type BatchListener func(batch ChangeBatch)

type pathSub struct {
	id uint64
	fn Listener
}

type batchSub struct {
	id uint64
	fn BatchListener
}

// Store is the keyed publish/subscribe store.
type Store struct {
	id        string
	values    map[string]any
	pathSubs  map[string][]pathSub
	batchSubs []batchSub
	nextID    uint64

	deferred    bool
	pending     []string
	pendingSeen map[string]struct{}

	scheduler loop.Scheduler
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithScheduler enables batching: flushes are posted to s.
func WithScheduler(s loop.Scheduler) Option {
	return func(st *Store) { st.scheduler = s }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(st *Store) {
		if r != nil {
			st.recorder = r
		}
	}
}

// WithLogger sets the logger. The store id is attached to every record.
func WithLogger(l *slog.Logger) Option {
	return func(st *Store) {
		if l != nil {
			st.logger = l
		}
	}
}

// WithID overrides the generated store id.
func WithID(id string) Option {
	return func(st *Store) {
		if id != "" {
			st.id = id
		}
	}
}

// New creates an empty store. Without WithScheduler every Set notifies synchronously.
func New(opts ...Option) *Store {
	s := &Store{
		id:          uuid.NewString(),
		values:      make(map[string]any),
		pathSubs:    make(map[string][]pathSub),
		pendingSeen: make(map[string]struct{}),
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logfields.StoreID(s.id))
	return s
}

// ID identifies this store instance.
func (s *Store) ID() string { return s.id }

// Get returns the value stored at path.
func (s *Store) Get(path string) (any, bool) {
	v, ok := s.values[path]
	return v, ok
}

// Set replaces the value at path and notifies, or schedules notification of, subscribers.
func (s *Store) Set(path string, value any) {
	_, existed := s.values[path]
	s.values[path] = value
	s.recorder.IncSets()
	if !existed {
		s.recorder.SetPaths(len(s.values))
	}

	if s.deferred {
		s.markPending(path)
		return
	}
	if s.scheduler != nil {
		s.deferred = true
		s.markPending(path)
		s.scheduler.Post(s.SendNotifications)
		return
	}
	s.notify(ChangeBatch{path})
}

// DeferNotifications makes subsequent Set calls accumulate until SendNotifications.
func (s *Store) DeferNotifications() {
	s.deferred = true
}

// SendNotifications leaves deferred mode and delivers the pending batch:
// per-path listeners first, then one wildcard notification.
func (s *Store) SendNotifications() {
	batch := ChangeBatch(s.pending)
	s.pending = nil
	clear(s.pendingSeen)
	s.deferred = false

	if len(batch) == 0 {
		return
	}
	s.notify(batch)
}

// Deferred reports whether notifications are currently being held back.
func (s *Store) Deferred() bool { return s.deferred }

// Subscribe registers fn for changes to exactly path.
func (s *Store) Subscribe(path string, fn Listener) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.pathSubs[path] = append(s.pathSubs[path], pathSub{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			subs := slices.DeleteFunc(s.pathSubs[path], func(ps pathSub) bool { return ps.id == id })
			if len(subs) == 0 {
				delete(s.pathSubs, path)
				return
			}
			s.pathSubs[path] = subs
		})
	}
}

// SubscribeAll registers fn for every flushed ChangeBatch.
func (s *Store) SubscribeAll(fn BatchListener) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.batchSubs = append(s.batchSubs, batchSub{id: id, fn: fn})
	s.recorder.SetWildcardSubscribers(len(s.batchSubs))

	var once sync.Once
	return func() {
		once.Do(func() {
			s.batchSubs = slices.DeleteFunc(s.batchSubs, func(bs batchSub) bool { return bs.id == id })
			s.recorder.SetWildcardSubscribers(len(s.batchSubs))
		})
	}
}

// SubscriberCount returns the number of listeners registered for path.
func (s *Store) SubscriberCount(path string) int {
	return len(s.pathSubs[path])
}

// WildcardSubscriberCount returns the number of SubscribeAll listeners.
func (s *Store) WildcardSubscriberCount() int {
	return len(s.batchSubs)
}

// Len returns the number of stored paths.
func (s *Store) Len() int { return len(s.values) }

// Paths returns every stored path in lexical order.
func (s *Store) Paths() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot copies every value at or below root. An empty root copies everything.
func (s *Store) Snapshot(root string) map[string]any {
	out := make(map[string]any)
	for p, v := range s.values {
		if root == "" || IsWithin(p, root) {
			out[p] = v
		}
	}
	return out
}

func (s *Store) markPending(path string) {
	if _, seen := s.pendingSeen[path]; seen {
		return
	}
	s.pendingSeen[path] = struct{}{}
	s.pending = append(s.pending, path)
}

// notify delivers batch. Listener slices are copied first so listeners may
// subscribe or unsubscribe while being called.
func (s *Store) notify(batch ChangeBatch) {
	s.recorder.ObserveFlush(len(batch))

	delivered := 0
	for _, path := range batch {
		subs := slices.Clone(s.pathSubs[path])
		value := s.values[path]
		for _, sub := range subs {
			sub.fn(path, value)
			delivered++
		}
	}
	s.recorder.IncNotifications(metrics.NotificationPath, delivered)

	subs := slices.Clone(s.batchSubs)
	for _, sub := range subs {
		sub.fn(batch)
	}
	s.recorder.IncNotifications(metrics.NotificationWildcard, len(subs))

	s.logger.Debug("Delivered change batch",
		logfields.BatchSize(len(batch)),
		logfields.Subscribers(len(subs)))
}
