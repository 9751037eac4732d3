// Package apperr defines the error taxonomy shared by every component:
// command handlers, the projection worker, the query service and the
// real-time gateway all surface one of these typed errors at their
// boundary, never a bare sentinel or a stack trace.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel domain errors. Components return these (or wrap them); the
// HTTP and WebSocket boundaries translate them via Translate.
var (
	ErrUsernameTaken       = errors.New("username already registered")
	ErrEmailTaken          = errors.New("email already registered")
	ErrStreamConflict      = errors.New("stream version conflict")
	ErrAggregateNotFound   = errors.New("aggregate not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrApiKeyNotFound      = errors.New("api key not found")
	ErrApiKeyAlreadyUsed   = errors.New("api key id already in use")
	ErrApiKeyRevoked       = errors.New("api key already revoked")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrBootstrapNotAllowed = errors.New("bootstrap not allowed: system already has users")
	ErrBootstrapKeyNotAllowed = errors.New("bootstrap api key not allowed: user already has a key")
	ErrInvariantViolation  = errors.New("aggregate invariant violation")
	ErrRateLimited         = errors.New("rate limited")
)

// Category is the stable taxonomy a caller can switch on without
// depending on a concrete error type.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryUnauthenticated Category = "unauthenticated"
	CategoryForbidden      Category = "forbidden"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryRateLimited    Category = "rate_limited"
	CategoryInternal       Category = "internal"
)

// AppError is the single typed error every outward-facing boundary deals
// in. Code is a short machine-stable identifier; Message is safe to show
// to a client; Err (when present) is the wrapped cause for logging.
type AppError struct {
	Category Category
	Code     string
	Message  string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func newErr(cat Category, code, msg string, cause error) *AppError {
	return &AppError{Category: cat, Code: code, Message: msg, Err: cause}
}

func Validation(msg string, cause error) *AppError {
	return newErr(CategoryValidation, "validation", msg, cause)
}

func Unauthenticated(msg string) *AppError {
	return newErr(CategoryUnauthenticated, "unauthenticated", msg, nil)
}

func Forbidden(msg string) *AppError {
	return newErr(CategoryForbidden, "forbidden", msg, nil)
}

func NotFound(msg string) *AppError {
	return newErr(CategoryNotFound, "not_found", msg, nil)
}

func Conflict(msg string, cause error) *AppError {
	return newErr(CategoryConflict, "conflict", msg, cause)
}

func RateLimited(msg string) *AppError {
	return newErr(CategoryRateLimited, "rate_limited", msg, nil)
}

func Internal(msg string, cause error) *AppError {
	return newErr(CategoryInternal, "internal", msg, cause)
}

// Translate maps a domain sentinel (or an already-typed *AppError) to the
// stable AppError taxonomy. Mirrors the teacher's ValidateBusinessError
// switch: one case per sentinel, defaulting to Internal so that an
// unrecognized error never leaks implementation detail to a client.
func Translate(err error) *AppError {
	if err == nil {
		return nil
	}

	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, ErrUsernameTaken):
		return Validation("username already registered", err)
	case errors.Is(err, ErrEmailTaken):
		return Validation("email already registered", err)
	case errors.Is(err, ErrInvariantViolation):
		return Validation("aggregate invariant violation", err)
	case errors.Is(err, ErrStreamConflict):
		return Conflict("stream was modified concurrently", err)
	case errors.Is(err, ErrApiKeyAlreadyUsed):
		return Conflict("api key id already in use", err)
	case errors.Is(err, ErrAggregateNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrApiKeyNotFound):
		return NotFound(err.Error())
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrApiKeyRevoked):
		return Unauthenticated("invalid credentials")
	case errors.Is(err, ErrBootstrapNotAllowed),
		errors.Is(err, ErrBootstrapKeyNotAllowed):
		return Forbidden(err.Error())
	case errors.Is(err, ErrRateLimited):
		return RateLimited("rate limited")
	default:
		return Internal("internal error", err)
	}
}
