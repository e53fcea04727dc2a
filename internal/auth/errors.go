package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrUsernameTaken      = errors.New("username already in use")
)

// ErrAccountLocked is surfaced only while the lock window is provably active.
type ErrAccountLocked struct {
	Until time.Time
}

func (e ErrAccountLocked) Error() string {
	return "account temporarily locked"
}

// ErrWeakPassword carries every violated strength rule.
type ErrWeakPassword struct {
	Reasons []string
}

func (e ErrWeakPassword) Error() string {
	return fmt.Sprintf("password too weak: %d rule(s) violated", len(e.Reasons))
}

// ErrAttemptsRemaining decorates ErrInvalidCredentials with a coarse hint
// once few attempts remain before lockout.
type ErrAttemptsRemaining struct {
	Remaining int
}

func (e ErrAttemptsRemaining) Error() string {
	return fmt.Sprintf("invalid credentials, %d attempt(s) remaining", e.Remaining)
}

func (e ErrAttemptsRemaining) Unwrap() error {
	return ErrInvalidCredentials
}
