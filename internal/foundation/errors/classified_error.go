package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
)

// contextPath is the context key holding the store path an error concerns.
const contextPath = "path"

// ClassifiedError is an error with a category, a severity, a retry strategy
// and structured context.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

// Error implements the standard error interface. The store path, when set,
// follows the message.
func (e *ClassifiedError) Error() string {
	msg := e.message
	if p := e.Path(); p != "" {
		msg = fmt.Sprintf("%s (path %s)", msg, p)
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, msg, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, msg)
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory { return e.category }

func (e *ClassifiedError) Severity() ErrorSeverity { return e.severity }

func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }

// Message returns the message without category, path or cause.
func (e *ClassifiedError) Message() string { return e.message }

func (e *ClassifiedError) Context() ErrorContext { return e.context }

// Path returns the store path the error concerns, or "".
func (e *ClassifiedError) Path() string {
	p, _ := e.context.GetString(contextPath)
	return p
}

// WithContext returns a copy of e with key set. e itself is left untouched,
// so package-level sentinel errors can be annotated per call.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	c := *e
	c.context = e.context.Merge(ErrorContext{key: value})
	return &c
}

// WithPath is WithContext for the store path.
func (e *ClassifiedError) WithPath(path string) *ClassifiedError {
	return e.WithContext(contextPath, path)
}

// Is matches another ClassifiedError with the same category and message,
// regardless of context.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.category == other.category && e.message == other.message
	}
	return false
}

// IsCategory checks if the error belongs to a specific category.
func (e *ClassifiedError) IsCategory(category ErrorCategory) bool {
	return e.category == category
}

// CanRetry reports whether trying the same operation again may succeed.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry == RetryBackoff
}

// IsFatal checks if the error is fatal (should stop execution).
func (e *ClassifiedError) IsFatal() bool {
	return e.severity == SeverityFatal
}

// LogAttrs returns the category, retryability and context as slog attributes.
func (e *ClassifiedError) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("category", string(e.category))}
	if e.CanRetry() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	return append(attrs, e.context.Attrs()...)
}

// AsClassified finds the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory checks if any error in the chain belongs to a category.
func HasCategory(err error, category ErrorCategory) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.IsCategory(category)
	}
	return false
}

// severityLevel maps a severity onto the slog level it is logged at.
func severityLevel(severity ErrorSeverity) slog.Level {
	if severity == SeverityWarning {
		return slog.LevelWarn
	}
	return slog.LevelError
}
