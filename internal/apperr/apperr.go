// Package apperr gives every layer above the domain packages a small,
// closed set of error kinds to branch on, instead of matching on sentinel
// values or error strings. The HTTP façade maps a Kind to a status code;
// the ingest and answer pipelines use it to decide what recovers locally
// (extraction/embedding failure) versus what aborts a request.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error categories the service distinguishes.
type Kind string

const (
	InvalidInput         Kind = "invalid_input"
	SessionGone          Kind = "session_gone"
	Conflict             Kind = "conflict"
	UpstreamUnavailable  Kind = "upstream_unavailable"
	ExtractionMalformed  Kind = "extraction_malformed"
	EmbeddingUnavailable Kind = "embedding_unavailable"
	Internal             Kind = "internal"
)

// Error wraps a Kind, a user-safe message, and an optional cause that never
// reaches the caller — only server logs carry it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error. cause may be nil.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to Internal for anything that
// isn't an *Error — an unclassified failure is treated as our own bug, not
// the caller's mistake.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
