package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts a builder with SeverityError.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{category: category, severity: SeverityError, message: message}}
}

// WrapError starts a builder around cause.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.err.cause = cause
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	if b.err.context == nil {
		b.err.context = ErrorContext{}
	}
	b.err.context[key] = value
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	b.err.severity = SeverityFatal
	return b
}

func (b *ErrorBuilder) Warning() *ErrorBuilder {
	b.err.severity = SeverityWarning
	return b
}

// Info marks outcomes that are reported as errors but are not failures.
func (b *ErrorBuilder) Info() *ErrorBuilder {
	b.err.severity = SeverityInfo
	return b
}

func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	return &e
}

// ConfigError is a fatal configuration problem.
func ConfigError(message string) *ErrorBuilder { return NewError(CategoryConfig, message).Fatal() }

// ValidationError is a fatal problem with user input.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// ModuleError reports an optional module that could not be loaded. Callers
// usually recover these, hence the warning severity.
func ModuleError(message string) *ErrorBuilder { return NewError(CategoryModule, message).Warning() }

func WatchError(message string) *ErrorBuilder { return NewError(CategoryWatch, message) }

func InternalError(message string) *ErrorBuilder { return NewError(CategoryInternal, message).Fatal() }
