// Package apperr defines the error kinds produced while screening a candidate.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry or surface it.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindUnsupportedFormat Kind = "UnsupportedFormatError"
	KindExtraction        Kind = "ExtractionError"
	KindExtractionTimeout Kind = "ExtractionTimeout"
	KindSchemaValidation  Kind = "SchemaValidationError"
	KindService           Kind = "ServiceError"
	KindMatchService      Kind = "MatchServiceError"
	KindStorage           Kind = "StorageError"
	KindNotification      Kind = "NotificationError"

	// Informational kinds never halt a run.
	KindNotificationSkipped Kind = "NotificationSkipped"
	KindStageDisabled       Kind = "StageDisabled"

	KindInternal Kind = "InternalError"
)

// Sentinels usable with errors.Is; matching is by kind only.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrExtraction        = &Error{Kind: KindExtraction}
	ErrExtractionTimeout = &Error{Kind: KindExtractionTimeout}
	ErrSchemaValidation  = &Error{Kind: KindSchemaValidation}
	ErrService           = &Error{Kind: KindService}
	ErrMatchService      = &Error{Kind: KindMatchService}
	ErrStorage           = &Error{Kind: KindStorage}
	ErrNotification      = &Error{Kind: KindNotification}
)

// Error is a classified failure with an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind. A nil cause yields nil.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the outermost *Error in the chain, or an empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether failures of this kind are transient.
// Schema and validation failures need different input, not another attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindService, KindExtractionTimeout, KindMatchService, KindStorage, KindNotification:
		return true
	default:
		return false
	}
}

// Retryable reports whether err is transient from the caller's point of view.
func Retryable(err error) bool {
	return KindOf(err).Retryable()
}
