package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// ErrorCategory groups failures by the part of the build that produced them.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// one per kind of pipeline step
	CategoryModule      ErrorCategory = "module"
	CategoryHook        ErrorCategory = "hook"
	CategoryStage       ErrorCategory = "stage"
	CategoryExecution   ErrorCategory = "execution"
	CategoryPostProcess ErrorCategory = "postprocess"
	CategorySuperseded  ErrorCategory = "superseded"

	// watcher, scheduler and notifier failures
	CategoryWatch      ErrorCategory = "watch"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryNetwork    ErrorCategory = "network"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity tells the CLI whether a failure is worth a log line on top of
// the one-line message.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// ErrorContext is structured detail attached to a ClassifiedError.
type ErrorContext map[string]any

// GetString returns the value under key if it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// ClassifiedError is an error tagged with a category, a severity and context.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	head := fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
	if e.cause == nil {
		return head
	}
	return head + ": " + e.cause.Error()
}

func (e *ClassifiedError) Unwrap() error           { return e.cause }
func (e *ClassifiedError) Category() ErrorCategory { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity { return e.severity }
func (e *ClassifiedError) Message() string         { return e.message }
func (e *ClassifiedError) Cause() error            { return e.cause }
func (e *ClassifiedError) Context() ErrorContext   { return e.context }

// WithContext returns a copy of e with key set; e is left untouched.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	cp := *e
	cp.context = make(ErrorContext, len(e.context)+1)
	maps.Copy(cp.context, e.context)
	cp.context[key] = value
	return &cp
}

// AsClassified returns the outermost ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// HasCategory reports whether any ClassifiedError in the chain carries category.
// It keeps walking past classified wrappers of other categories, so a
// superseded failure is still found under the execution error wrapping it.
func HasCategory(err error, category ErrorCategory) bool {
	for ; err != nil; err = stderrors.Unwrap(err) {
		if ce, ok := err.(*ClassifiedError); ok && ce.category == category {
			return true
		}
	}
	return false
}

// GetCategory returns the category of the outermost ClassifiedError, or
// CategoryInternal for unclassified errors.
func GetCategory(err error) ErrorCategory {
	if ce, ok := AsClassified(err); ok {
		return ce.category
	}
	return CategoryInternal
}

// GetSeverity returns the severity of the outermost ClassifiedError, or
// SeverityError for unclassified errors.
func GetSeverity(err error) ErrorSeverity {
	if ce, ok := AsClassified(err); ok {
		return ce.severity
	}
	return SeverityError
}
