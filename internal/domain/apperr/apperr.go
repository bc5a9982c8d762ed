// Package apperr holds the error taxonomy shared by every use case.
// Domain packages keep their own specific sentinels; use cases join them
// with one of these so the presentation layer can classify with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrAuthentication      = errors.New("authentication failure")
	// ErrConflict marks a double-apply caught by an idempotency guard.
	// Callers treat it as success.
	ErrConflict = errors.New("conflict")
)

// Wrap tags cause with kind. Both remain matchable with errors.Is.
func Wrap(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Invalid builds an ErrInvalidInput with a human readable reason.
func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

// Kind reports which taxonomy member err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalidInput, ErrProviderUnavailable, ErrAuthentication, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
