// Package binding ties a rendering component to the state it reads.
//
// A Binding subscribes lazily on first use and filters every flushed change
// batch down to the paths the component touched. A hit bumps a version
// counter and calls the component's invalidate callback; no values are
// passed, the component reads fresh state on its next render.
package binding

import (
	"slices"

	"git.home.luguber.info/inful/treestate/internal/accessor"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
	"git.home.luguber.info/inful/treestate/internal/state"
)

// Binder hands out Bindings over one container.
type Binder struct {
	container *state.Container
}

// NewBinder returns a binder over c.
func NewBinder(c *state.Container) *Binder {
	return &Binder{container: c}
}

// Container returns the container bindings read from.
func (b *Binder) Container() *state.Container { return b.container }

// Bind returns an unmounted binding for one component.
func (b *Binder) Bind(invalidate func()) *Binding {
	if invalidate == nil {
		invalidate = func() {}
	}
	return &Binding{container: b.container, invalidate: invalidate}
}

// Binding is one component's subscription to the store.
type Binding struct {
	container   *state.Container
	invalidate  func()
	paths       []string
	version     uint64
	unsubscribe func()
}

// Use returns the node at path. With a kind the entity is created or
// reconciled from props; without one it is only read. The first call
// subscribes the binding.
func (bd *Binding) Use(path string, kind *state.Kind, props state.Props) accessor.Node {
	bd.track(path)
	if bd.unsubscribe == nil {
		bd.unsubscribe = bd.container.Store().SubscribeAll(bd.onBatch)
	}
	if kind != nil {
		return bd.container.GetOrCreate(path, *kind, props)
	}
	return bd.container.Get(path)
}

// Unmount drops the subscription. Calling it again is a no-op.
func (bd *Binding) Unmount() {
	if bd.unsubscribe == nil {
		return
	}
	bd.unsubscribe()
	bd.unsubscribe = nil
	bd.paths = nil
}

// Version counts the batches that touched this binding.
func (bd *Binding) Version() uint64 { return bd.version }

// Mounted reports whether the binding currently holds a subscription.
func (bd *Binding) Mounted() bool { return bd.unsubscribe != nil }

// Paths returns the paths the binding watches.
func (bd *Binding) Paths() []string { return bd.paths }

func (bd *Binding) track(path string) {
	if !slices.Contains(bd.paths, path) {
		bd.paths = append(bd.paths, path)
	}
}

func (bd *Binding) onBatch(batch pubsub.ChangeBatch) {
	for _, p := range bd.paths {
		if batch.Touches(p) {
			bd.version++
			bd.invalidate()
			return
		}
	}
}
