package apperr

import (
	"errors"
	"fmt"
)

// Kind tags an error with a stable, machine-readable category so callers
// can branch without string matching.
type Kind string

const (
	UnsupportedFormat Kind = "unsupported_format"
	ExtractionError   Kind = "extraction_error"
	SessionNotFound   Kind = "session_not_found"
	NoDocuments       Kind = "no_documents"
	EmbeddingFailure  Kind = "embedding_failure"
	GenerationFailure Kind = "generation_failure"
	InvalidInput      Kind = "invalid_input"
)

// Error carries a kind alongside the human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a kinded error with the given message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain. The second return is false
// when no kinded error is present.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
