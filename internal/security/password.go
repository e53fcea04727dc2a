package security

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordPolicy controls what ValidateStrength accepts.
type PasswordPolicy struct {
	MinLength           int
	RequireUppercase    bool
	RequireLowercase    bool
	RequireDigits       bool
	RequireSpecialChars bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:           12,
		RequireUppercase:    true,
		RequireLowercase:    true,
		RequireDigits:       true,
		RequireSpecialChars: true,
	}
}

// PasswordHasher hashes and verifies credentials with bcrypt and validates
// candidate passwords against the configured policy.
type PasswordHasher struct {
	cost   int
	policy PasswordPolicy
}

func NewPasswordHasher(policy PasswordPolicy) *PasswordHasher {
	if policy.MinLength <= 0 {
		policy.MinLength = DefaultPasswordPolicy().MinLength
	}
	return &PasswordHasher{cost: bcrypt.DefaultCost, policy: policy}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. Malformed hashes are treated
// as a mismatch, never an error.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var (
	uppercaseRegex = regexp.MustCompile(`[A-Z]`)
	lowercaseRegex = regexp.MustCompile(`[a-z]`)
	digitRegex     = regexp.MustCompile(`[0-9]`)
	specialRegex   = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)

	predictablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(012|123|234|345|456|567|678|789|890)`),
		regexp.MustCompile(`(abc|bcd|cde|def|efg|fgh|ghi|hij|ijk|jkl|klm|lmn|mno|nop|opq|pqr|qrs|rst|stu|tuv|uvw|vwx|wxy|xyz)`),
	}
)

// hasRepeatedRun reports whether s contains the same rune three or more
// times in a row. RE2 has no backreferences, so this is a plain loop.
func hasRepeatedRun(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= 3 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// ValidateStrength checks password against every policy rule and returns all
// violations, not just the first.
func (h *PasswordHasher) ValidateStrength(password string) (bool, []string) {
	var errs []string

	if len(password) < h.policy.MinLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", h.policy.MinLength))
	}
	if h.policy.RequireUppercase && !uppercaseRegex.MatchString(password) {
		errs = append(errs, "password must contain an uppercase letter")
	}
	if h.policy.RequireLowercase && !lowercaseRegex.MatchString(password) {
		errs = append(errs, "password must contain a lowercase letter")
	}
	if h.policy.RequireDigits && !digitRegex.MatchString(password) {
		errs = append(errs, "password must contain a digit")
	}
	if h.policy.RequireSpecialChars && !specialRegex.MatchString(password) {
		errs = append(errs, "password must contain a special character")
	}

	lower := strings.ToLower(password)
	predictable := hasRepeatedRun(lower)
	if !predictable {
		for _, pattern := range predictablePatterns {
			if pattern.MatchString(lower) {
				predictable = true
				break
			}
		}
	}
	if predictable {
		errs = append(errs, "password must not contain predictable patterns")
	}

	return len(errs) == 0, errs
}
