// Package normalization canonicalises free-form configuration strings into
// typed enum values.
package normalization

import (
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// Normalizer maps case- and whitespace-insensitive strings onto values of T.
type Normalizer[T comparable] struct {
	values       map[string]T
	defaultValue T
	keys         []string
}

// NewNormalizer returns a normalizer over values. Unknown input maps to defaultValue.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	n := &Normalizer[T]{
		values:       make(map[string]T, len(values)),
		defaultValue: defaultValue,
		keys:         make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := clean(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	slices.Sort(n.keys)
	return n
}

// Normalize returns the value for raw, or the default when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.Lookup(raw); ok {
		return v
	}
	return n.defaultValue
}

// Lookup returns the value for raw and whether raw was recognised.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.values[clean(raw)]
	return v, ok
}

// Strict returns the value for raw or a validation error naming the field.
func (n *Normalizer[T]) Strict(field, raw string) (T, error) {
	if v, ok := n.Lookup(raw); ok {
		return v, nil
	}
	var zero T
	return zero, ferrors.ValidationError("unrecognised value").
		WithContext("field", field).
		WithContext("value", raw).
		WithContext("valid", strings.Join(n.keys, ", ")).
		Build()
}

// Default returns the fallback value.
func (n *Normalizer[T]) Default() T { return n.defaultValue }

// ValidKeys returns the accepted spellings in lexical order.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.keys)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
