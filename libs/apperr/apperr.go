// Package apperr defines the error kinds surfaced by booking and payment operations.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindSessionExpired means the caller's backend session is no longer valid and the
	// client must re-authenticate instead of retrying.
	KindSessionExpired
	KindFetchFailed
	KindMutationFailed
	// KindPermissionDenied is raised by a local capability check before any backend call.
	KindPermissionDenied
	KindValidationFailed
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindSessionExpired:
		return "session_expired"
	case KindFetchFailed:
		return "fetch_failed"
	case KindMutationFailed:
		return "mutation_failed"
	case KindPermissionDenied:
		return "permission_denied"
	case KindValidationFailed:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrSessionExpired   = &Error{Kind: KindSessionExpired, Msg: "session expired"}
	ErrFetchFailed      = &Error{Kind: KindFetchFailed, Msg: "fetch failed"}
	ErrMutationFailed   = &Error{Kind: KindMutationFailed, Msg: "mutation failed"}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied, Msg: "permission denied"}
	ErrValidationFailed = &Error{Kind: KindValidationFailed, Msg: "validation failed"}
	ErrNotFound         = &Error{Kind: KindNotFound, Msg: "not found"}
)

// Error carries a kind, a human-readable message and the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so errors.Is(err, apperr.ErrSessionExpired) works for any
// wrapped error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap keeps the cause's message verbatim unless msg is set.
func Wrap(kind Kind, err error, msg string) *Error {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func SessionExpired(err error) *Error {
	return Wrap(KindSessionExpired, err, "session expired, please sign in again")
}

func FetchFailed(err error) *Error {
	return Wrap(KindFetchFailed, err, "")
}

func MutationFailed(err error) *Error {
	return Wrap(KindMutationFailed, err, "")
}

func PermissionDenied(msg string) *Error {
	return New(KindPermissionDenied, msg)
}

func Validation(msg string) *Error {
	return New(KindValidationFailed, msg)
}

func NotFound(msg string) *Error {
	return New(KindNotFound, msg)
}

// Fetch wraps err as FetchFailed unless it already carries a kind.
func Fetch(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return FetchFailed(err)
}

// Mutation wraps err as MutationFailed unless it already carries a kind.
func Mutation(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return MutationFailed(err)
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindSessionExpired:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindFetchFailed, KindMutationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
