package state

import (
	"maps"
	"slices"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// Kind names an entity shape and knows how to construct it.
type Kind struct {
	name      string
	construct func(Props) Entity
}

// NewKind declares a kind.
func NewKind(name string, construct func(Props) Entity) Kind {
	return Kind{name: name, construct: construct}
}

// Name returns the kind name.
func (k Kind) Name() string { return k.name }

// IsZero reports whether k was never declared.
func (k Kind) IsZero() bool { return k.name == "" || k.construct == nil }

// New constructs an unbound entity of this kind.
func (k Kind) New(props Props) Entity {
	return k.construct(props)
}

// Registry maps kind names to kinds.
type Registry struct {
	kinds map[string]Kind
}

// NewRegistry returns a registry holding kinds.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		if err := r.Register(k); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds k. Names must be unique.
func (r *Registry) Register(k Kind) error {
	if k.IsZero() {
		return ferrors.ValidationError("kind must have a name and a constructor").Build()
	}
	if _, exists := r.kinds[k.name]; exists {
		return ferrors.ValidationError("kind already registered").
			WithContext("kind", k.name).
			Build()
	}
	r.kinds[k.name] = k
	return nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Names returns the registered kind names in lexical order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.kinds))
}
