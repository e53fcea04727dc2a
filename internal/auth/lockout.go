package auth

import "time"

// LockoutPolicy decides when repeated login failures lock an account. It only
// mutates the in-memory user; persisting the changed fields is the caller's
// job. Lockout counts attempts, not distinct guesses.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

func NewLockoutPolicy(maxAttempts int, lockDuration time.Duration) LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockDuration <= 0 {
		lockDuration = 30 * time.Minute
	}
	return LockoutPolicy{MaxAttempts: maxAttempts, LockDuration: lockDuration}
}

// RecordFailure increments the failure counter and reports whether this
// failure tripped the lock. The lock duration is fixed; it does not escalate
// across repeated lockouts.
func (p LockoutPolicy) RecordFailure(user *User, now time.Time) bool {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		user.LockedUntil = &until
		return true
	}
	return false
}

// RecordSuccess unconditionally clears the failure state and stamps the
// login time.
func (p LockoutPolicy) RecordSuccess(user *User, now time.Time) {
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	login := now
	user.LastLogin = &login
}

// IsLocked reports whether the lock window is still active. A lock heals by
// comparison once its instant passes; no explicit transition is needed.
func (p LockoutPolicy) IsLocked(user *User, now time.Time) bool {
	return user.LockedUntil != nil && now.Before(*user.LockedUntil)
}

// RemainingAttempts returns how many failures are left before the lock trips.
func (p LockoutPolicy) RemainingAttempts(user *User) int {
	remaining := p.MaxAttempts - user.FailedLoginAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}
