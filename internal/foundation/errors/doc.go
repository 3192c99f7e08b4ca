// Package errors classifies failures so every boundary reports them the same way.
//
// A ClassifiedError carries a category (validation, launch, build, upload,
// routing, ...), a severity, a retryable flag and structured context. The HTTP
// adapter maps the category to a status code and a JSON body; the CLI adapter
// maps it to a process exit code.
//
//	err := errors.LaunchError("task launch failed").
//		WithCause(originalErr).
//		WithContext("project_id", id).
//		Build()
package errors
