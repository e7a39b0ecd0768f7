// Package stats periodically samples a running store and reports its size.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/loop"
	"git.home.luguber.info/inful/treestate/internal/metrics"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
)

// Snapshot is one sample of a store.
type Snapshot struct {
	StoreID             string    `json:"store_id"`
	Paths               int       `json:"paths"`
	WildcardSubscribers int       `json:"wildcard_subscribers"`
	At                  time.Time `json:"at"`
}

// Sampler takes a snapshot.
type Sampler func(ctx context.Context) (Snapshot, error)

// LoopSampler samples store on the loop goroutine that owns it.
func LoopSampler(l *loop.Loop, store *pubsub.Store) Sampler {
	return func(ctx context.Context) (Snapshot, error) {
		var s Snapshot
		err := l.Do(ctx, func() { s = Sample(store) })
		return s, err
	}
}

// Sample reads store directly. Callers must be on the store's goroutine.
func Sample(store *pubsub.Store) Snapshot {
	return Snapshot{
		StoreID:             store.ID(),
		Paths:               store.Len(),
		WildcardSubscribers: store.WildcardSubscriberCount(),
		At:                  time.Now().UTC(),
	}
}

// Reporter runs the sampler on a schedule, logging and recording each snapshot.
type Reporter struct {
	scheduler gocron.Scheduler
	sample    Sampler
	recorder  metrics.Recorder
	logger    *slog.Logger
	timeout   time.Duration

	mu   sync.RWMutex
	last Snapshot
}

// NewReporter creates a reporter around a fresh gocron scheduler.
func NewReporter(sample Sampler, recorder metrics.Recorder, logger *slog.Logger) (*Reporter, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create gocron scheduler").Build()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		scheduler: s,
		sample:    sample,
		recorder:  recorder,
		logger:    logger.With(logfields.Component("stats")),
		timeout:   5 * time.Second,
	}, nil
}

// Schedule reports every interval and returns the job id.
func (r *Reporter) Schedule(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", ferrors.ValidationError("stats interval must be positive").
			WithContext("interval", interval.String()).
			Build()
	}
	job, err := r.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.tick),
		gocron.WithName("store-stats"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to schedule stats job").Build()
	}
	return job.ID().String(), nil
}

// Start begins running scheduled jobs.
func (r *Reporter) Start() {
	r.logger.Info("Starting store statistics")
	r.scheduler.Start()
}

// Stop shuts the scheduler down.
func (r *Reporter) Stop() error {
	r.logger.Info("Stopping store statistics")
	return r.scheduler.Shutdown()
}

// Report takes and publishes one snapshot now.
func (r *Reporter) Report(ctx context.Context) (Snapshot, error) {
	s, err := r.sample(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	r.recorder.SetPaths(s.Paths)
	r.recorder.SetWildcardSubscribers(s.WildcardSubscribers)

	r.mu.Lock()
	r.last = s
	r.mu.Unlock()

	r.logger.Info("Store statistics",
		logfields.StoreID(s.StoreID),
		logfields.Paths(s.Paths),
		logfields.Subscribers(s.WildcardSubscribers))
	return s, nil
}

// Last returns the most recent snapshot.
func (r *Reporter) Last() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

func (r *Reporter) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.Report(ctx); err != nil {
		r.logger.Warn("Failed to sample store", logfields.Error(err))
	}
}
