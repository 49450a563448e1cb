// Package errs defines the error taxonomy shared by the search and
// circulation services. Handlers map kinds to HTTP status codes; the
// services themselves never retry.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	// KindStore is the default for unclassified persistence failures.
	KindStore Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindLimitExceeded
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindLimitExceeded:
		return "limit_exceeded"
	default:
		return "store"
	}
}

type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Kind() Kind {
	return e.kind
}

func Validationf(format string, args ...any) error {
	return &Error{kind: KindValidation, err: fmt.Errorf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{kind: KindNotFound, err: fmt.Errorf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{kind: KindConflict, err: fmt.Errorf(format, args...)}
}

func LimitExceededf(format string, args ...any) error {
	return &Error{kind: KindLimitExceeded, err: fmt.Errorf(format, args...)}
}

// Store wraps an underlying persistence error with a message, keeping the
// original cause for logging.
func Store(err error, msg string) error {
	return &Error{kind: KindStore, err: errors.Wrap(err, msg)}
}

// KindOf extracts the kind of err, defaulting to KindStore for errors that
// did not originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindStore
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
