package state

import (
	"log/slog"

	"git.home.luguber.info/inful/treestate/internal/accessor"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/metrics"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
)

// Container creates, reconciles and updates entities stored in a pubsub.Store.
type Container struct {
	store    *pubsub.Store
	recorder metrics.Recorder
	logger   *slog.Logger
}

// ContainerOption configures a Container.
type ContainerOption func(*Container)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) ContainerOption {
	return func(c *Container) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ContainerOption {
	return func(c *Container) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewContainer returns a container over store.
func NewContainer(store *pubsub.Store, opts ...ContainerOption) *Container {
	c := &Container{
		store:    store,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logfields.StoreID(store.ID()))
	return c
}

// Store returns the underlying store.
func (c *Container) Store() *pubsub.Store { return c.store }

// Resolve implements accessor.Resolver.
func (c *Container) Resolve(path string) (any, bool) {
	return c.store.Get(path)
}

// Get returns the node at path without creating anything.
func (c *Container) Get(path string) accessor.Node {
	return accessor.Wrap(c, path)
}

// Entity returns the entity stored at path.
func (c *Container) Entity(path string) (Entity, bool) {
	v, ok := c.store.Get(path)
	if !ok {
		return nil, false
	}
	e, ok := v.(Entity)
	return e, ok
}

// GetOrCreate returns the entity at path, constructing it from kind and props
// when absent or when the stored entity is of another kind. When the kinds
// match, deep-equal props return the stored instance untouched and differing
// props store the result of WithProps.
//
// Kinds are compared by name: a Kind rebuilt under the same name keeps the
// stored instance. Updates an Initializer makes from Init are applied before
// the entity is first stored.
//
// An empty path or a zero kind is a programming error and panics.
func (c *Container) GetOrCreate(path string, kind Kind, props Props) accessor.Node {
	if path == "" {
		panic(ferrors.ValidationError("entity path must not be empty").Build())
	}
	if kind.IsZero() {
		panic(ferrors.ValidationError("entity kind must be declared with NewKind").
			WithPath(path).
			Build())
	}

	existing, ok := c.Entity(path)
	switch {
	case !ok:
		c.construct(path, kind, props)
		c.recorder.IncEntity(metrics.EntityConstructed)
	case existing.Kind() != kind.Name():
		c.logger.Debug("Entity kind changed, reinitialising",
			logfields.Path(path),
			logfields.PrevKind(existing.Kind()),
			logfields.Kind(kind.Name()))
		c.construct(path, kind, props)
		c.recorder.IncEntity(metrics.EntityReset)
	case PropsEqual(existing.Props(), props):
		c.recorder.IncEntity(metrics.EntityUnchanged)
	default:
		c.store.Set(path, existing.WithProps(props.Clone()))
		c.recorder.IncEntity(metrics.EntityReconciled)
	}
	return accessor.Wrap(c, path)
}

// GetOrUpdate is GetOrCreate under the name render code uses when it expects
// the entity to exist already.
func (c *Container) GetOrUpdate(path string, kind Kind, props Props) accessor.Node {
	return c.GetOrCreate(path, kind, props)
}

// Update merges changes into the entity at path.
func (c *Container) Update(path string, changes Values) error {
	e, ok := c.Entity(path)
	if !ok {
		return ErrNoEntity.WithPath(path)
	}
	return c.update(path, e.Kind(), changes)
}

func (c *Container) construct(path string, kind Kind, props Props) Entity {
	e := kind.New(props.Clone())
	if e == nil {
		panic(ferrors.InternalError("kind constructor returned nil").
			WithContext("kind", kind.Name()).
			Build())
	}
	if initializer, ok := e.(Initializer); ok {
		h := &hook{container: c, path: path, kind: kind.Name(), seed: e}
		initializer.Init(h)
		e, h.seed = h.seed, nil
	}
	c.store.Set(path, e)
	return e
}

func (c *Container) update(path, kind string, changes Values) error {
	latest, ok := c.Entity(path)
	if !ok {
		return ErrNoEntity.WithPath(path)
	}
	if latest.Kind() != kind {
		return ErrKindReplaced.WithPath(path)
	}

	next, changed := c.merge(latest, changes)
	if changed {
		c.store.Set(path, next)
	}
	return nil
}

// merge returns latest with changes applied, or latest itself when the
// merged values are deep-equal to the current ones.
func (c *Container) merge(latest Entity, changes Values) (Entity, bool) {
	merged := latest.Values().Clone()
	for k, v := range changes {
		merged[k] = v
	}
	if ValuesEqual(merged, latest.Values()) {
		c.recorder.IncEntity(metrics.EntityUnchanged)
		return latest, false
	}
	c.recorder.IncEntity(metrics.EntityUpdated)
	return latest.WithValues(merged), true
}

// hook binds one constructed entity to its path. While Init runs, seed holds
// the entity under construction and updates apply to it instead of the store.
type hook struct {
	container *Container
	path      string
	kind      string
	seed      Entity
}

func (h *hook) Path() string { return h.path }
func (h *hook) Kind() string { return h.kind }

func (h *hook) Latest() Entity {
	if h.seed != nil {
		return h.seed
	}
	e, _ := h.container.Entity(h.path)
	return e
}

func (h *hook) Update(changes Values) error {
	if h.seed != nil {
		h.seed, _ = h.container.merge(h.seed, changes)
		return nil
	}
	return h.container.update(h.path, h.kind, changes)
}

func (h *hook) ChildState(sub string) accessor.Node {
	return h.container.Get(pubsub.Join(h.path, sub))
}
