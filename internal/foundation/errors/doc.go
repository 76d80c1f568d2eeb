// Package errors provides the classified error primitives used across sitebuilder.
//
// Every failure that crosses a package boundary in the build pipeline is a
// ClassifiedError carrying a category (module, hook, stage, execution, ...),
// a severity and optional structured context. Callers route on the category
// rather than on message text.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryHook, "hook failed").
//		WithContext("checkpoint", "layoutsBefore").
//		Build()
package errors
