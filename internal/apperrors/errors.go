package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds for every failure this subsystem surfaces. Callers
// classify with errors.Is; handlers map kinds to HTTP status codes and
// the gateway drops client-originated failures after logging them.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrConflict         = errors.New("conflict")
)

// Unauthenticated wraps a message as an authentication failure
func Unauthenticated(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrUnauthenticated)
}

// Forbidden wraps a message as an authorization failure
func Forbidden(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrForbidden)
}

// NotFound wraps a message as a missing-entity failure
func NotFound(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrNotFound)
}

// InvalidOperation wraps a message as a domain-rule violation
func InvalidOperation(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInvalidOperation)
}

// Conflict wraps a message as a concurrent-write conflict
func Conflict(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrConflict)
}
