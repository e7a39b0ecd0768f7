package state

import (
	"maps"

	"git.home.luguber.info/inful/treestate/internal/accessor"
)

// Props are the externally supplied construction inputs of an entity.
type Props map[string]any

// Clone returns a shallow copy; a nil receiver yields an empty map.
func (p Props) Clone() Props {
	if p == nil {
		return Props{}
	}
	return maps.Clone(p)
}

// Values is the internally accumulated state of an entity.
type Values map[string]any

// Clone returns a shallow copy; a nil receiver yields an empty map.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	return maps.Clone(v)
}

// Entity is one immutable version of the state stored at a path.
type Entity interface {
	Kind() string
	Props() Props
	Values() Values
	// WithProps returns a new version adopting props and keeping Values.
	WithProps(props Props) Entity
	// WithValues returns a new version with values and the same Props.
	WithValues(values Values) Entity
}

// Initializer is implemented by entities that want their Hook.
type Initializer interface {
	Init(h Hook)
}

// Hook is the container's callback surface handed to a new entity.
type Hook interface {
	Path() string
	Kind() string
	// Latest returns the version currently stored at Path.
	Latest() Entity
	// Update merges changes into the latest version's values and stores the result.
	Update(changes Values) error
	// ChildState returns the node at Path + "." + sub.
	ChildState(sub string) accessor.Node
}

// Base carries props, values and the hook for concrete entity kinds.
type Base struct {
	props  Props
	values Values
	hook   Hook
}

// NewBase returns a Base over a copy of props.
func NewBase(props Props) Base {
	return Base{props: props.Clone(), values: Values{}}
}

// NewBaseWithValues returns a Base with initial internal values.
func NewBaseWithValues(props Props, initial Values) Base {
	return Base{props: props.Clone(), values: initial.Clone()}
}

// Init records the container hook.
func (b *Base) Init(h Hook) { b.hook = h }

// Bound reports whether the entity was initialised by a container.
func (b *Base) Bound() bool { return b.hook != nil }

// Kind returns the kind name the container constructed this entity with.
func (b *Base) Kind() string {
	if b.hook == nil {
		return ""
	}
	return b.hook.Kind()
}

// Path returns the path the entity is stored at, or "" when unbound.
func (b *Base) Path() string {
	if b.hook == nil {
		return ""
	}
	return b.hook.Path()
}

// Props returns the construction inputs. Callers must not modify the map.
func (b *Base) Props() Props { return b.props }

// Values returns the accumulated state. Callers must not modify the map.
func (b *Base) Values() Values { return b.values }

// Value reads key from values, falling back to props.
func (b *Base) Value(key string) (any, bool) {
	if v, ok := b.values[key]; ok {
		return v, true
	}
	v, ok := b.props[key]
	return v, ok
}

// Member exposes Value to the hierarchical accessor.
func (b *Base) Member(name string) (any, bool) {
	return b.Value(name)
}

// Data returns props overlaid with values as a fresh map.
func (b *Base) Data() map[string]any {
	out := make(map[string]any, len(b.props)+len(b.values))
	maps.Copy(out, b.props)
	maps.Copy(out, b.values)
	return out
}

// Latest returns the newest stored version, or nil when unbound.
func (b *Base) Latest() Entity {
	if b.hook == nil {
		return nil
	}
	return b.hook.Latest()
}

// UpdateState merges changes into the latest stored version.
func (b *Base) UpdateState(changes Values) error {
	if b.hook == nil {
		return ErrUnbound
	}
	return b.hook.Update(changes)
}

// Child returns the node for a direct child of this entity's path.
func (b *Base) Child(name string) accessor.Node {
	if b.hook == nil {
		return accessor.Wrap(nil, name)
	}
	return b.hook.ChildState(name)
}

// DeriveProps returns a copy adopting props and keeping values and hook.
func (b Base) DeriveProps(props Props) Base {
	b.props = props.Clone()
	return b
}

// DeriveValues returns a copy with values, keeping props and hook.
func (b Base) DeriveValues(values Values) Base {
	b.values = values
	return b
}
