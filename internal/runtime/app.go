// Package runtime hosts a generated application: it mounts the element tree
// from a definition, gives every element a component bound to its state, and
// re-renders components whose state changed.
//
// Everything in this package runs on the event loop that drives the store.
package runtime

import (
	"log/slog"
	"slices"

	"git.home.luguber.info/inful/treestate/internal/appdef"
	"git.home.luguber.info/inful/treestate/internal/binding"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/loop"
	"git.home.luguber.info/inful/treestate/internal/metrics"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
	"git.home.luguber.info/inful/treestate/internal/state"
)

// App is a mounted application.
type App struct {
	container *state.Container
	binder    *binding.Binder
	registry  *state.Registry
	scheduler loop.Scheduler
	recorder  metrics.Recorder
	logger    *slog.Logger

	name       string
	components map[string]*component
	order      []string
}

type component struct {
	node    appdef.Node
	kind    state.Kind
	binding *binding.Binding
	dirty   bool
	renders uint64
}

// Option configures an App.
type Option func(*App)

// WithRegistry replaces the built-in kinds.
func WithRegistry(r *state.Registry) Option {
	return func(a *App) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(a *App) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() *state.Registry {
	r, err := state.NewRegistry(Builtins()...)
	if err != nil {
		panic(err)
	}
	return r
}

// New returns an unmounted app. Renders after the first are posted to scheduler.
func New(container *state.Container, scheduler loop.Scheduler, opts ...Option) *App {
	a := &App{
		container:  container,
		binder:     binding.NewBinder(container),
		scheduler:  scheduler,
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
		components: make(map[string]*component),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = NewRegistry()
	}
	a.logger = a.logger.With(logfields.Component("runtime"))
	return a
}

// Container returns the state container the app renders from.
func (a *App) Container() *state.Container { return a.container }

// Name returns the mounted application's name, or "" when unmounted.
func (a *App) Name() string { return a.name }

// Mounted reports whether an application is mounted.
func (a *App) Mounted() bool { return a.name != "" }

// Mount creates and renders a component for every element of def.
func (a *App) Mount(def *appdef.Definition) error {
	if a.Mounted() {
		return ferrors.RuntimeError("application already mounted").
			WithContext("app", a.name).
			Build()
	}
	nodes, kinds, err := a.resolve(def)
	if err != nil {
		return err
	}
	a.order = paths(nodes)
	for i, n := range nodes {
		a.mount(n, kinds[i])
	}
	a.renderAll()
	a.name = def.Name
	a.logger.Info("Application mounted", slog.String("app", def.Name), logfields.Paths(len(nodes)))
	return nil
}

// Apply hot-reloads def: existing components re-render with their new props
// and kinds, removed ones unmount and new ones mount. An invalid def leaves
// the app untouched.
func (a *App) Apply(def *appdef.Definition) error {
	if !a.Mounted() {
		return a.Mount(def)
	}
	nodes, kinds, err := a.resolve(def)
	if err != nil {
		return err
	}

	next := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		next[n.Path] = struct{}{}
	}
	removed := 0
	for _, p := range a.order {
		if _, keep := next[p]; !keep {
			a.components[p].binding.Unmount()
			delete(a.components, p)
			removed++
		}
	}

	a.order = paths(nodes)
	added, updated := 0, 0
	for i, n := range nodes {
		c, ok := a.components[n.Path]
		if !ok {
			a.mount(n, kinds[i])
			added++
			continue
		}
		c.node = n
		c.kind = kinds[i]
		updated++
	}
	a.renderAll()
	a.name = def.Name
	a.logger.Info("Application definition applied",
		slog.String("app", def.Name),
		slog.Int("added", added),
		slog.Int("removed", removed),
		slog.Int("updated", updated))
	return nil
}

// Dispatch merges changes into the element at path, as a user interaction would.
func (a *App) Dispatch(path string, changes state.Values) error {
	if _, ok := a.components[path]; !ok {
		return ferrors.NotFoundError("no mounted element at path").
			WithPath(path).
			Build()
	}
	return a.container.Update(path, changes)
}

// Renders returns how often the component at path has rendered.
func (a *App) Renders(path string) uint64 {
	if c, ok := a.components[path]; ok {
		return c.renders
	}
	return 0
}

// Paths returns the mounted element paths in tree order.
func (a *App) Paths() []string { return slices.Clone(a.order) }

// Unmount drops every component's subscription. Stored state stays behind.
func (a *App) Unmount() {
	for _, c := range a.components {
		c.binding.Unmount()
	}
	clear(a.components)
	a.order = nil
	if a.name != "" {
		a.logger.Info("Application unmounted", slog.String("app", a.name))
	}
	a.name = ""
}

func (a *App) resolve(def *appdef.Definition) ([]appdef.Node, []state.Kind, error) {
	if def == nil {
		return nil, nil, ferrors.DefinitionError("no application definition").Build()
	}
	if err := def.Validate(); err != nil {
		return nil, nil, err
	}
	nodes := def.Nodes()
	kinds := make([]state.Kind, len(nodes))
	for i, n := range nodes {
		k, ok := a.registry.Lookup(n.Kind)
		if !ok {
			return nil, nil, ferrors.DefinitionError("unknown element kind").
				WithPath(n.Path).
				WithContext("kind", n.Kind).
				Build()
		}
		kinds[i] = k
	}
	return nodes, kinds, nil
}

func (a *App) mount(n appdef.Node, kind state.Kind) {
	c := &component{node: n, kind: kind}
	c.binding = a.binder.Bind(func() { a.invalidate(c) })
	a.components[n.Path] = c
}

// renderAll renders every component in tree order. All components exist
// first, so a form tracks fields that have not been created yet.
func (a *App) renderAll() {
	for _, p := range a.order {
		a.render(a.components[p])
	}
}

// invalidate schedules at most one pending render per component.
func (a *App) invalidate(c *component) {
	if c.dirty {
		return
	}
	c.dirty = true
	a.scheduler.Post(func() {
		if !c.dirty || a.components[c.node.Path] != c {
			return
		}
		a.render(c)
	})
}

func (a *App) render(c *component) {
	c.dirty = false
	a.logger.Debug("Rendering element",
		logfields.Path(c.node.Path),
		logfields.Kind(c.kind.Name()),
		logfields.Renders(c.renders))

	c.binding.Use(c.node.Path, &c.kind, state.Props(c.node.Props))
	if c.kind.Name() == KindForm {
		a.recomputeForm(c)
	}
	c.renders++
	a.recorder.IncRenders(1)
}

// recomputeForm marks a form invalid while any required field below it is empty.
func (a *App) recomputeForm(c *component) {
	valid := true
	for _, p := range a.order {
		if p == c.node.Path || !pubsub.IsWithin(p, c.node.Path) {
			continue
		}
		child, ok := a.components[p]
		if !ok || child.kind.Name() != KindField {
			continue
		}
		if required, _ := child.node.Props["required"].(bool); !required {
			continue
		}
		if isEmpty(c.binding.Use(p, nil, nil).Primitive()) {
			valid = false
			break
		}
	}
	if err := a.container.Update(c.node.Path, state.Values{"valid": valid}); err != nil {
		a.logger.Warn("Failed to update form validity", logfields.Path(c.node.Path), logfields.Error(err))
	}
}

func paths(nodes []appdef.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Path
	}
	return out
}
