// Package errors provides the classified error primitives used across treestate.
//
// A ClassifiedError carries a category (config, state, store, journal, ...),
// a severity, a retry strategy and structured context. Errors are built with
// the fluent ErrorBuilder:
//
//	err := errors.NewError(errors.CategoryState, "entity is not bound to a container").
//		WithContext("kind", kind).
//		Build()
//
// The CLI and HTTP adapters turn classified errors into exit codes and JSON
// responses respectively.
package errors
