// Package failure defines the typed errors raised by the clustering core.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies a class of clustering failure.
type Kind string

const (
	EmptyCorpus            Kind = "empty_corpus"
	InsufficientCorpusSize Kind = "insufficient_corpus_size"
	UnknownAlgorithm       Kind = "unknown_algorithm"
	Vectorization          Kind = "vectorization_error"
	DegenerateInput        Kind = "degenerate_input"
)

// BadInput reports whether the kind describes input the caller can correct.
// Vectorization failures are treated as internal computation failures.
func (k Kind) BadInput() bool {
	switch k {
	case EmptyCorpus, InsufficientCorpusSize, UnknownAlgorithm, DegenerateInput:
		return true
	default:
		return false
	}
}

// Error is a clustering failure with a stable kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, failure.New(kind, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind carrying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the kind of err. ok is false when err carries no *Error.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a failure of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
