package common

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so retry, logging and audit code can branch on it
// without string matching.
type Kind string

const (
	KindMalformedJob         Kind = "malformed_job"
	KindMissingContent       Kind = "missing_content"
	KindExtractionStructural Kind = "extraction_structural"
	KindPersistence          Kind = "persistence"
	KindStatusGuard          Kind = "status_guard"
	KindInternal             Kind = "internal"
)

// ErrStatusGuard is returned by guarded status transitions that matched no row.
// Callers treat it as a no-op.
var ErrStatusGuard = errors.New("status transition guarded")

// ErrNotFound marks lookups that resolved to no row.
var ErrNotFound = errors.New("not found")

// AppError carries a Kind alongside the usual message and cause.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorKind lets errors.As-based classifiers read the kind.
func (e *AppError) ErrorKind() string {
	return string(e.Kind)
}

func NewAppError(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func Malformed(message string, cause error) error {
	return NewAppError(KindMalformedJob, message, cause)
}

func MissingContent(documentID int64) error {
	return NewAppError(KindMissingContent, fmt.Sprintf("document %d has no text", documentID), nil)
}

func Structural(message string) error {
	return NewAppError(KindExtractionStructural, message, nil)
}

// Persistence wraps a storage failure for op. Returns nil for a nil err so
// repositories can wrap unconditionally.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewAppError(KindPersistence, op, err)
}

// KindOf reports the classification of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrStatusGuard) {
		return KindStatusGuard
	}
	var app *AppError
	if errors.As(err, &app) {
		return app.Kind
	}
	return KindInternal
}
