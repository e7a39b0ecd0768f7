package state

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var equalOpts = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// PropsEqual reports whether a and b are structurally equal. Nil and empty
// containers compare equal.
func PropsEqual(a, b Props) bool {
	return cmp.Equal(map[string]any(a), map[string]any(b), equalOpts...)
}

// ValuesEqual reports whether a and b are structurally equal.
func ValuesEqual(a, b Values) bool {
	return cmp.Equal(map[string]any(a), map[string]any(b), equalOpts...)
}
