package errors

// ErrorBuilder assembles a ClassifiedError fluently.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error of category. Severity defaults to error and the
// error is not retryable.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}}
}

// WrapError starts an error of category caused by err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// WithPath records the store path the error concerns.
func (b *ErrorBuilder) WithPath(path string) *ErrorBuilder {
	return b.WithContext(contextPath, path)
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder   { return b.WithSeverity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.WithSeverity(SeverityWarning) }

// Retryable marks the error as transient.
func (b *ErrorBuilder) Retryable() *ErrorBuilder { return b.WithRetry(RetryBackoff) }

// UserAction marks the error as needing the user to change something first.
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build returns the error. The builder may keep being used; later calls do
// not affect errors already built.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.context = ErrorContext{}.Merge(b.err.context)
	return &e
}

// ConfigError creates a configuration error.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().UserAction()
}

// ValidationError creates a validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// NotFoundError creates a not-found error.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message)
}

// DefinitionError creates an application definition error.
func DefinitionError(message string) *ErrorBuilder {
	return NewError(CategoryDefinition, message).UserAction()
}

// StateError creates an entity misuse error.
func StateError(message string) *ErrorBuilder {
	return NewError(CategoryState, message).Fatal()
}

// JournalError creates a change journal error (typically retryable).
func JournalError(message string) *ErrorBuilder {
	return NewError(CategoryJournal, message).Retryable()
}

// FeedError creates a change feed error (typically retryable).
func FeedError(message string) *ErrorBuilder {
	return NewError(CategoryFeed, message).Retryable()
}

// RuntimeError creates a runtime error.
func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).Fatal()
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
