package service

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/iliyamo/fablab-reservation/internal/lifecycle"
	"github.com/iliyamo/fablab-reservation/internal/repository"
)

// Kind classifies a service error.  Handlers map kinds to HTTP status
// codes through Kind.Status.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindDependency        Kind = "dependency"
	KindInternal          Kind = "internal"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindDependency:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error is the error type returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, msg string) *Error { return &Error{Kind: k, Message: msg} }

// Validation reports a missing or malformed field.
func Validation(msg string, details any) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// NotFound reports that what names an absent entity.
func NotFound(what string) *Error { return newErr(KindNotFound, what+" not found") }

// Forbidden reports an authenticated caller without the right role or
// ownership.
func Forbidden(msg string) *Error { return newErr(KindForbidden, msg) }

// Conflict reports a duplicate or capacity conflict.
func Conflict(msg string, details any) *Error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// IsKind reports whether err is a service error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

// translate maps repository and lifecycle errors onto service kinds.
// what names the entity for not-found messages.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	var te *lifecycle.TransitionError
	switch {
	case errors.As(err, &te):
		return &Error{Kind: KindInvalidTransition, Message: te.Error(), Err: err}
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, repository.ErrNotFound):
		return NotFound(what)
	case errors.Is(err, repository.ErrForbidden):
		return Forbidden("not allowed for this " + what)
	case errors.Is(err, repository.ErrStaleStatus):
		return &Error{Kind: KindInvalidTransition, Message: what + " status changed concurrently", Err: err}
	case errors.Is(err, repository.ErrTokenUsed):
		return &Error{Kind: KindConflict, Message: "approval link has already been used", Err: err}
	case errors.Is(err, repository.ErrTokenExpired):
		return &Error{Kind: KindValidation, Message: "approval link has expired", Err: err}
	case errors.Is(err, repository.ErrNoCapacity):
		return &Error{Kind: KindConflict, Message: "no machine available for the requested time", Err: err}
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrDuplicate):
		return &Error{Kind: KindConflict, Message: what + " already exists", Err: err}
	}
	return Internal(what+" operation failed", err)
}
