package runtime

import (
	"git.home.luguber.info/inful/treestate/internal/state"
)

// Built-in kind names.
const (
	KindApp     = "app"
	KindPage    = "page"
	KindForm    = "form"
	KindField   = "field"
	KindText    = "text"
	KindButton  = "button"
	KindList    = "list"
	KindCounter = "counter"
)

// Element is the state entity behind every built-in kind.
type Element struct {
	state.Base
}

// WithProps implements state.Entity.
func (e *Element) WithProps(p state.Props) state.Entity { return &Element{e.DeriveProps(p)} }

// WithValues implements state.Entity.
func (e *Element) WithValues(v state.Values) state.Entity { return &Element{e.DeriveValues(v)} }

// Primitive is the scalar an element coerces to: a field's value, a text's
// text, a counter's count, a list's length.
func (e *Element) Primitive() any {
	switch e.Kind() {
	case KindField:
		v, _ := e.Value("value")
		return v
	case KindText:
		v, _ := e.Value("text")
		return v
	case KindCounter:
		return e.Count()
	case KindList:
		return len(e.Items())
	case KindButton:
		v, _ := e.Value("clicks")
		return v
	case KindForm:
		return e.Valid()
	}
	v, _ := e.Value("title")
	return v
}

// SetValue stores a field's current input.
func (e *Element) SetValue(v any) error {
	return e.UpdateState(state.Values{"value": v})
}

// Increment adds n to a counter, reading the latest stored count.
func (e *Element) Increment(n int) error {
	latest, ok := e.Latest().(*Element)
	if !ok {
		return state.ErrUnbound
	}
	return e.UpdateState(state.Values{"count": latest.Count() + n})
}

// Press records a button click.
func (e *Element) Press() error {
	latest, ok := e.Latest().(*Element)
	if !ok {
		return state.ErrUnbound
	}
	clicks, _ := latest.Value("clicks")
	return e.UpdateState(state.Values{"clicks": toInt(clicks) + 1})
}

// Count returns a counter's count.
func (e *Element) Count() int {
	v, _ := e.Value("count")
	return toInt(v)
}

// Items returns a list's items.
func (e *Element) Items() []any {
	v, _ := e.Value("items")
	items, _ := v.([]any)
	return items
}

// Valid reports a form's last computed validity.
func (e *Element) Valid() bool {
	v, _ := e.Value("valid")
	b, _ := v.(bool)
	return b
}

// Builtins returns the kinds every application can use.
func Builtins() []state.Kind {
	return []state.Kind{
		elementKind(KindApp, nil),
		elementKind(KindPage, nil),
		elementKind(KindForm, func(state.Props) state.Values {
			return state.Values{"valid": true}
		}),
		elementKind(KindField, func(p state.Props) state.Values {
			return state.Values{"value": p["initial"]}
		}),
		elementKind(KindText, nil),
		elementKind(KindButton, func(state.Props) state.Values {
			return state.Values{"clicks": 0}
		}),
		elementKind(KindList, nil),
		elementKind(KindCounter, func(p state.Props) state.Values {
			return state.Values{"count": toInt(p["start"])}
		}),
	}
}

func elementKind(name string, initial func(state.Props) state.Values) state.Kind {
	return state.NewKind(name, func(p state.Props) state.Entity {
		var values state.Values
		if initial != nil {
			values = initial(p)
		}
		return &Element{state.NewBaseWithValues(p, values)}
	})
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
