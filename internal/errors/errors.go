package errors

import (
	"errors"
	"fmt"
)

// Error is the structured error type for supportkb.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_203_CORRUPT_SNAPSHOT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Model, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new Error with a formatted message and no cause.
func Newf(code string, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinel errors for the retrieval engine's taxonomy. Callers use
// errors.Is against these to branch on error class.
var (
	// ErrUnsupportedFormat indicates a document with an unrecognized extension.
	// Per-document: skip with a warning, never fatal.
	ErrUnsupportedFormat = New(ErrCodeUnsupportedFormat, "unsupported document format", nil)

	// ErrReadError indicates an unreadable document.
	// Per-document: skip, recorded in the build record, never fatal.
	ErrReadError = New(ErrCodeReadError, "document read failed", nil)

	// ErrEmbeddingUnavailable indicates the embedding model cannot be reached.
	ErrEmbeddingUnavailable = New(ErrCodeEmbeddingUnavailable, "embedding model unavailable", nil)

	// ErrBuildInProgress indicates a concurrent build request was rejected.
	ErrBuildInProgress = New(ErrCodeBuildInProgress, "a build is already in progress", nil).
				WithSuggestion("wait for the current build to finish and retry")

	// ErrCorruptSnapshot indicates on-disk snapshot artifacts disagree.
	// Callers must fall back to a full rebuild, never serve a partial index.
	ErrCorruptSnapshot = New(ErrCodeCorruptSnapshot, "snapshot artifacts are inconsistent", nil).
				WithSuggestion("run 'supportkb build --mode=full' to rebuild the index")

	// ErrNoSnapshot indicates no published snapshot exists yet.
	ErrNoSnapshot = New(ErrCodeNoSnapshot, "no published snapshot", nil).
			WithSuggestion("run 'supportkb build' to create the index")

	// ErrConfirmRequired indicates a destructive operation was invoked
	// without explicit confirmation.
	ErrConfirmRequired = New(ErrCodeConfirmRequired, "destructive operation requires confirmation", nil)
)

// IsRetryable checks if an error is retryable.
// Returns true if the error is an Error with the Retryable flag set.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf returns the error code of err, or ErrCodeInternal if err is not
// a structured Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
