// Package daemon assembles a long-running treestate process: the event loop,
// the store and runtime, and the optional journal, feed, statistics,
// definition watcher and inspector around them.
package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/treestate/internal/appdef"
	"git.home.luguber.info/inful/treestate/internal/changes"
	"git.home.luguber.info/inful/treestate/internal/config"
	"git.home.luguber.info/inful/treestate/internal/feed"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/inspector"
	"git.home.luguber.info/inful/treestate/internal/journal"
	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/loop"
	"git.home.luguber.info/inful/treestate/internal/metrics"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
	"git.home.luguber.info/inful/treestate/internal/retry"
	"git.home.luguber.info/inful/treestate/internal/runtime"
	"git.home.luguber.info/inful/treestate/internal/state"
	"git.home.luguber.info/inful/treestate/internal/stats"
)

// Status represents the current state of the daemon
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
	StatusClosed   Status = "closed" // after Stop; Start is refused
)

// ErrClosed is returned by Start on a daemon that has been stopped.
var ErrClosed = ferrors.RuntimeError("daemon was stopped and cannot be restarted").Build()

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPublisher replaces the NATS connection used by the change feed.
func WithPublisher(p feed.Publisher) Option {
	return func(d *Daemon) { d.publisher = p }
}

// Daemon owns every long-running component of a treestate process.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	status    atomic.Value // Status
	startTime time.Time
	mu        sync.Mutex
	cancel    context.CancelFunc
	errs      chan error

	loop           *loop.Loop
	app            *runtime.App
	bus            *changes.Bus
	recorder       metrics.Recorder
	metricsHandler http.Handler
	detach         func()

	watcher   *appdef.Watcher
	journal   *journal.SQLiteStore
	publisher feed.Publisher
	reporter  *stats.Reporter
	inspector *inspector.Server
	workers   workerGroup
}

// Assemble builds a store, its container and a runtime driven by sched.
// Batching follows cfg.Store.Batching.
func Assemble(cfg *config.Config, sched loop.Scheduler, rec metrics.Recorder, logger *slog.Logger) *runtime.App {
	opts := []pubsub.Option{
		pubsub.WithRecorder(rec),
		pubsub.WithLogger(logger),
		pubsub.WithID(cfg.Store.ID),
	}
	if cfg.Store.Batching == config.BatchingDeferred {
		opts = append(opts, pubsub.WithScheduler(sched))
	}
	store := pubsub.New(opts...)
	container := state.NewContainer(store, state.WithRecorder(rec), state.WithLogger(logger))
	return runtime.New(container, sched, runtime.WithRecorder(rec), runtime.WithLogger(logger))
}

// New creates a stopped daemon for cfg.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   slog.Default(),
		errs:     make(chan error, 1),
		bus:      changes.NewBus(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logfields.Component("daemon"))
	d.status.Store(StatusStopped)

	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(reg)
		d.metricsHandler = metrics.HTTPHandler(reg)
	}

	d.loop = loop.New(d.logger)
	d.app = Assemble(cfg, d.loop, d.recorder, d.logger)
	return d, nil
}

// App returns the runtime. Calls into it must go through Loop.
func (d *Daemon) App() *runtime.App { return d.app }

// Loop returns the event loop that owns the store.
func (d *Daemon) Loop() *loop.Loop { return d.loop }

// Err reports a component failure after Start returned.
func (d *Daemon) Err() <-chan error { return d.errs }

// GetStatus returns the current daemon status
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// Start brings every configured component up and returns. Components run
// until Stop is called or ctx ends. A daemon starts at most once.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.GetStatus() == StatusClosed {
		return ErrClosed
	}
	if d.GetStatus() != StatusStopped {
		return ferrors.RuntimeError("daemon is not stopped").
			WithContext("status", string(d.GetStatus())).
			Build()
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.start(runCtx); err != nil {
		d.status.Store(StatusError)
		_ = d.shutdown(context.Background())
		return err
	}

	d.status.Store(StatusRunning)
	d.logger.Info("treestate daemon started",
		logfields.StoreID(d.app.Container().Store().ID()),
		slog.String("batching", string(d.cfg.Store.Batching)),
		slog.Bool("journal", d.journal != nil),
		slog.Bool("feed", d.publisher != nil),
		slog.Bool("inspector", d.inspector != nil))
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	d.workers.Go(func() { d.loop.Run(ctx) })

	if d.cfg.Journal.Enabled {
		if err := d.startJournal(ctx); err != nil {
			return err
		}
	}
	if d.cfg.Feed.Enabled {
		if err := d.startFeed(ctx); err != nil {
			return err
		}
	}

	store := d.app.Container().Store()
	if err := d.loop.Do(ctx, func() {
		d.detach = changes.Tap(store, d.bus, d.logger)
	}); err != nil {
		return err
	}

	if d.cfg.App.Definition != "" {
		if err := d.mountDefinition(ctx); err != nil {
			return err
		}
	}

	if err := d.startStats(); err != nil {
		return err
	}

	if d.cfg.Inspector.Enabled {
		d.startInspector()
	}
	return nil
}

func (d *Daemon) startJournal(ctx context.Context) error {
	js, err := journal.NewSQLiteStore(d.cfg.Journal.Path)
	if err != nil {
		return err
	}
	d.journal = js

	events, _ := d.bus.Subscribe(d.cfg.Journal.Buffer)
	writer := journal.NewWriter(js, d.logger)
	d.workers.Go(func() { writer.Run(ctx, events) })
	return nil
}

func (d *Daemon) startFeed(ctx context.Context) error {
	if d.publisher == nil {
		pub, err := feed.Connect(d.cfg.Feed.URL, d.cfg.Feed.JetStream)
		if err != nil {
			return err
		}
		d.publisher = pub
	}

	f := feed.New(d.publisher, d.cfg.Feed.Subject, retry.FromConfig(d.cfg.Feed.Retry), d.logger)
	events, _ := d.bus.Subscribe(d.cfg.Feed.Buffer)
	d.workers.Go(func() { f.Run(ctx, events) })
	return nil
}

func (d *Daemon) mountDefinition(ctx context.Context) error {
	def, err := appdef.Load(d.cfg.App.Definition)
	if err != nil {
		return err
	}

	var mountErr error
	if err := d.loop.Do(ctx, func() { mountErr = d.app.Mount(def) }); err != nil {
		return err
	}
	if mountErr != nil {
		return mountErr
	}

	if !d.cfg.App.Watch {
		return nil
	}
	w, err := appdef.NewWatcher(d.cfg.App.Definition, d.cfg.App.DebounceDuration(), d.applyDefinition, d.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	d.watcher = w
	return nil
}

// applyDefinition hot-reloads def on the loop.
func (d *Daemon) applyDefinition(def *appdef.Definition) {
	d.loop.Post(func() {
		if err := d.app.Apply(def); err != nil {
			d.logger.Error("Failed to apply application definition",
				logfields.File(d.cfg.App.Definition),
				logfields.Error(err))
			return
		}
		d.logger.Info("Application definition applied",
			logfields.File(d.cfg.App.Definition),
			logfields.Paths(len(d.app.Paths())))
	})
}

func (d *Daemon) startStats() error {
	r, err := stats.NewReporter(stats.LoopSampler(d.loop, d.app.Container().Store()), d.recorder, d.logger)
	if err != nil {
		return err
	}
	if _, err := r.Schedule(d.cfg.Stats.IntervalDuration()); err != nil {
		_ = r.Stop()
		return err
	}
	r.Start()
	d.reporter = r
	return nil
}

func (d *Daemon) startInspector() {
	opts := inspector.Options{Metrics: d.metricsHandler, Logger: d.logger}
	if d.journal != nil {
		opts.History = d.journal
	}
	srv := inspector.NewServer(d.cfg.Inspector.Addr, d.loop, d.app, opts)
	d.inspector = srv
	d.workers.Go(func() {
		if err := srv.Start(); err != nil {
			d.fail(err)
		}
	})
}

func (d *Daemon) fail(err error) {
	d.logger.Error("Daemon component failed", logfields.Error(err))
	select {
	case d.errs <- err:
	default:
	}
}

// Stop gracefully shuts the daemon down. Events already flushed are drained
// into the journal and feed before it returns.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := d.GetStatus()
	if status == StatusStopped || status == StatusStopping || status == StatusClosed {
		return nil
	}
	d.status.Store(StatusStopping)
	d.logger.Info("Stopping treestate daemon")

	err := d.shutdown(ctx)
	d.status.Store(StatusClosed)
	d.logger.Info("treestate daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return err
}

// shutdown stops components in reverse start order.
func (d *Daemon) shutdown(ctx context.Context) error {
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Error("Failed to stop definition watcher", logfields.Error(err))
		}
		d.watcher = nil
	}
	if d.inspector != nil {
		if err := d.inspector.Shutdown(ctx); err != nil {
			d.logger.Error("Failed to stop inspector", logfields.Error(err))
		}
		d.inspector = nil
	}
	if d.reporter != nil {
		if err := d.reporter.Stop(); err != nil {
			d.logger.Error("Failed to stop statistics", logfields.Error(err))
		}
		d.reporter = nil
	}
	if d.detach != nil {
		detach := d.detach
		if err := d.loop.Do(ctx, detach); err != nil {
			d.logger.Debug("Change tap not detached", logfields.Error(err))
		}
		d.detach = nil
	}

	// Queued flushes still reach the bus; subscriber channels close after.
	d.loop.Close()
	select {
	case <-d.loop.Done():
	case <-ctx.Done():
	}
	d.bus.Close()
	err := d.workers.StopAndWait(ctx)
	if d.cancel != nil {
		d.cancel()
	}

	if d.publisher != nil {
		if cerr := d.publisher.Close(); cerr != nil {
			d.logger.Error("Failed to close feed publisher", logfields.Error(cerr))
		}
		d.publisher = nil
	}
	if d.journal != nil {
		if cerr := d.journal.Close(); cerr != nil {
			d.logger.Error("Failed to close journal", logfields.Error(cerr))
		}
		d.journal = nil
	}
	return err
}
