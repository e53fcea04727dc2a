package auth

import (
	"strings"
	"time"
)

// User is an authenticatable principal. The email is stored encrypted; the
// repository only ever sees the ciphertext.
type User struct {
	ID             string
	Username       string
	EmailEncrypted string
	PasswordHash   string

	IsActive            bool
	IsVerified          bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time
	PasswordChangedAt   time.Time

	Roles []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// APIKey grants programmatic access scoped to its owner. Only the SHA-256
// hash of the raw secret is stored; the prefix exists for display.
type APIKey struct {
	ID        string
	UserID    string
	Name      string
	KeyHash   string
	KeyPrefix string

	Scopes []string

	ExpiresAt  *time.Time
	LastUsedAt *time.Time
	IsActive   bool
	CreatedAt  time.Time
}

func (k *APIKey) IsExpired(now time.Time) bool {
	if k.ExpiresAt == nil {
		return false
	}
	return now.After(*k.ExpiresAt)
}

// HasScope reports whether the key grants scope. The admin scope implies
// every other scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope || s == "admin" {
			return true
		}
	}
	return false
}

// TokenPair is the login/refresh response payload. ExpiresIn counts seconds
// until the access token expires.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
