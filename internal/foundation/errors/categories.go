package errors

import (
	"log/slog"
	"maps"
	"slices"
)

// ErrorCategory routes an error to an exit code, an HTTP status and a log level.
type ErrorCategory string

const (
	// User input: configuration files, flags, definitions and request bodies.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryDefinition ErrorCategory = "definition"

	// CategoryState is misuse of an entity: unbound updates, stale hooks.
	CategoryState ErrorCategory = "state"

	// Change sinks.
	CategoryJournal ErrorCategory = "journal"
	CategoryFeed    ErrorCategory = "feed"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the command
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Degraded, keeps running
)

// RetryStrategy tells callers such as retry.Policy whether to try again.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Merge returns a new context holding c overlaid with other.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}

// Attrs renders the context as slog attributes in key order.
func (c ErrorContext) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(c))
	for _, k := range slices.Sorted(maps.Keys(c)) {
		attrs = append(attrs, slog.Any(k, c[k]))
	}
	return attrs
}
