package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrRateLimited = errors.New("too many login attempts")
var ErrUnauthenticated = errors.New("authentication required")
var ErrForbidden = errors.New("access denied")
var ErrValidation = errors.New("validation failed")
var ErrSystem = errors.New("system error")
var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("already exists")

// ErrBranchViolation marks a denial caused by crossing a branch silo. It is a
// Forbidden error for callers; only logs and metrics tell the two apart.
var ErrBranchViolation = fmt.Errorf("branch violation: %w", ErrForbidden)

// ErrSystemRoleImmutable is returned when a write targets a seeded system role.
var ErrSystemRoleImmutable = fmt.Errorf("system role is immutable: %w", ErrForbidden)

// ValidationError wraps ErrValidation with a message that is safe to show to
// the client.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// SystemError wraps an unexpected infrastructure failure so it maps to a 500
// while keeping the cause for logs.
func SystemError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrSystem, err)
}

// IsDomainError reports whether err already carries one of the taxonomy
// sentinels and therefore must not be wrapped as a system error.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials, ErrRateLimited, ErrUnauthenticated, ErrForbidden,
		ErrValidation, ErrSystem, ErrNotFound, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
