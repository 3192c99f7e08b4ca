package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder with error severity.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}}
}

// WrapError starts a builder around an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

// WithCategory overrides the category chosen at construction.
func (b *ErrorBuilder) WithCategory(category ErrorCategory) *ErrorBuilder {
	b.err.category = category
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

// Fatal marks errors that end the process or the whole operation.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Retryable marks the error as transient.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	b.err.retryable = true
	return b
}

// Build returns the error. The builder may be reused afterwards.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.context = make(ErrorContext, len(b.err.context))
	for k, v := range b.err.context {
		e.context[k] = v
	}
	return &e
}

// ValidationError is an InvalidRequest: malformed client input.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message)
}

func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// LaunchError is a LaunchFailure: the Task Launcher rejected or failed a submission.
func LaunchError(message string) *ErrorBuilder {
	return NewError(CategoryLaunch, message)
}

// BuildError is a BuildFailure: the build command failed or produced no output.
func BuildError(message string) *ErrorBuilder {
	return NewError(CategoryBuild, message).Fatal()
}

// UploadError is an UploadFailure for one or more artifacts.
func UploadError(message string) *ErrorBuilder {
	return NewError(CategoryUpload, message)
}

// RoutingError is an unroutable proxy request.
func RoutingError(message string) *ErrorBuilder {
	return NewError(CategoryRouting, message).WithSeverity(SeverityWarning)
}

func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message).WithSeverity(SeverityInfo)
}

func NetworkError(message string) *ErrorBuilder {
	return NewError(CategoryNetwork, message).Retryable()
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
