// Package state builds versioned, immutable state entities on top of the
// pub/sub store.
//
// Every element of a running application owns one Entity stored at its path.
// An entity is never edited in place: updates and props changes store a new
// version, and an attempt that changes nothing keeps the stored instance so
// identity comparisons in the render layer stay cheap.
//
// Concrete kinds embed Base and add two constructors:
//
//	type Field struct{ state.Base }
//
//	func (f *Field) WithProps(p state.Props) state.Entity   { return &Field{f.DeriveProps(p)} }
//	func (f *Field) WithValues(v state.Values) state.Entity { return &Field{f.DeriveValues(v)} }
//
//	var FieldKind = state.NewKind("field", func(p state.Props) state.Entity {
//		return &Field{state.NewBase(p)}
//	})
//
// Methods that change state must go through UpdateState, which always merges
// into the latest stored version rather than the receiver, so a reference held
// across several updates still composes correctly.
package state
