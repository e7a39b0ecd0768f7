// Package accessor lets any stored entity be navigated as a tree.
//
// A Node pairs a path with whatever is stored there. Looking up a member the
// entity does not expose resolves to the node at path + "." + member, so a
// parent never needs to know its children. Paths with nothing stored yield
// placeholder nodes that are safe to read, chain and coerce.
package accessor

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/treestate/internal/pubsub"
)

// Resolver looks up the value stored at a path.
type Resolver interface {
	Resolve(path string) (any, bool)
}

// MemberReader is implemented by entities that expose named members of their own.
type MemberReader interface {
	Member(name string) (any, bool)
}

// Primitiver is implemented by entities with a primitive (scalar) form.
type Primitiver interface {
	Primitive() any
}

// Reserved member names that request primitive coercion instead of a child lookup.
const (
	MemberValueOf     = "valueOf"
	MemberToPrimitive = "toPrimitive"
)

type placeholder struct{}

func (placeholder) String() string { return "" }

// Placeholder is the sentinel stored in nodes whose path has no entity.
var Placeholder any = placeholder{}

// Node is an entity (or placeholder) addressed by path.
type Node struct {
	resolver Resolver
	path     string
	value    any
}

// Wrap resolves path and returns its node.
func Wrap(r Resolver, path string) Node {
	n := Node{resolver: r, path: path, value: Placeholder}
	if r == nil {
		return n
	}
	if v, ok := r.Resolve(path); ok && v != nil {
		n.value = v
	}
	return n
}

// Path returns the node's path.
func (n Node) Path() string { return n.path }

// Value returns the stored entity, or nil for a placeholder.
func (n Node) Value() any {
	if n.IsPlaceholder() {
		return nil
	}
	return n.value
}

// IsPlaceholder reports whether nothing is stored at the node's path.
func (n Node) IsPlaceholder() bool {
	_, ok := n.value.(placeholder)
	return ok || n.value == nil
}

// Child returns the node for path + "." + name.
func (n Node) Child(name string) Node {
	return Wrap(n.resolver, pubsub.Join(n.path, name))
}

// Lookup follows a dotted chain of member names.
func (n Node) Lookup(dotted string) Node {
	cur := n
	for _, seg := range strings.Split(dotted, pubsub.Separator) {
		if seg == "" {
			continue
		}
		cur = cur.Child(seg)
	}
	return cur
}

// Member reads a member. The entity's own members win; reserved coercion
// names return Primitive; anything else resolves to the child node.
func (n Node) Member(name string) any {
	switch name {
	case MemberValueOf, MemberToPrimitive:
		return n.Primitive()
	}
	if mr, ok := n.Value().(MemberReader); ok {
		if v, found := mr.Member(name); found {
			return v
		}
	}
	return n.Child(name)
}

// Primitive returns the scalar form of the entity: nil for a placeholder,
// the entity's own primitive when it has one, otherwise the entity itself.
func (n Node) Primitive() any {
	if n.IsPlaceholder() {
		return nil
	}
	if p, ok := n.value.(Primitiver); ok {
		return p.Primitive()
	}
	return n.value
}

// String formats the primitive form; placeholders format as "".
func (n Node) String() string {
	p := n.Primitive()
	if p == nil {
		return ""
	}
	if s, ok := p.(string); ok {
		return s
	}
	return fmt.Sprint(p)
}
