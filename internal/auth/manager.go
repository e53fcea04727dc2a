package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"neo-guardian/internal/security"
)

// TokenManager issues, verifies, revokes and rotates token pairs. Verification
// fails closed: every failure cause collapses to a bare "not ok" so callers
// cannot be used as an oracle for token internals.
type TokenManager struct {
	codec      *Codec
	revoked    RevocationStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(codec *Codec, revoked RevocationStore, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		codec:      codec,
		revoked:    revoked,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source for the manager and its codec. Test
// hook.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	m.codec.WithClock(now)
	return m
}

func (m *TokenManager) CreateAccessToken(userID string, roles []string) (string, time.Time, error) {
	return m.create(userID, TokenTypeAccess, roles, m.accessTTL)
}

func (m *TokenManager) CreateRefreshToken(userID string) (string, time.Time, error) {
	return m.create(userID, TokenTypeRefresh, nil, m.refreshTTL)
}

func (m *TokenManager) create(userID, tokenType string, roles []string, ttl time.Duration) (string, time.Time, error) {
	jti, err := security.RandomToken(16)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	now := m.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		TokenType: tokenType,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  newNumericDate(now),
			ExpiresAt: newNumericDate(expiresAt),
			ID:        jti,
		},
	}

	token, err := m.codec.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (m *TokenManager) CreateTokenPair(userID string, roles []string) (TokenPair, error) {
	access, accessExp, err := m.CreateAccessToken(userID, roles)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := m.CreateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(accessExp.Sub(m.now()).Seconds()),
	}, nil
}

// Verify decodes token and checks type, expiry, signature and revocation.
// All failure causes are reported uniformly as ok=false.
func (m *TokenManager) Verify(ctx context.Context, token, expectedType string) (Claims, bool) {
	claims, err := m.codec.Decode(token, true)
	if err != nil {
		return Claims{}, false
	}
	if claims.TokenType != expectedType {
		return Claims{}, false
	}

	revoked, err := m.revoked.Contains(ctx, claims.ID)
	if err != nil || revoked {
		return Claims{}, false
	}

	return claims, true
}

// Revoke adds the token's id to the revocation set. Expired tokens are still
// revocable; only an undecodable token returns false.
func (m *TokenManager) Revoke(ctx context.Context, token string) bool {
	claims, err := m.codec.Decode(token, false)
	if err != nil {
		return false
	}

	if err := m.revoked.Add(ctx, claims.ID, m.revocationTTL(claims)); err != nil {
		return false
	}
	return true
}

// Refresh rotates a refresh token: the presented token is marked used before
// the new pair is issued, so of two concurrent submissions of the same token
// at most one succeeds.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string, roles []string) (TokenPair, bool) {
	claims, ok := m.Verify(ctx, refreshToken, TokenTypeRefresh)
	if !ok {
		return TokenPair{}, false
	}

	inserted, err := m.revoked.AddIfAbsent(ctx, claims.ID, m.revocationTTL(claims))
	if err != nil || !inserted {
		return TokenPair{}, false
	}

	pair, err := m.CreateTokenPair(claims.Subject, roles)
	if err != nil {
		return TokenPair{}, false
	}
	return pair, true
}

// ExtractSubject recovers the principal id from a token whose signature is
// valid but which may be expired. For audit correlation only.
func (m *TokenManager) ExtractSubject(token string) (string, bool) {
	claims, err := m.codec.Decode(token, false)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// revocationTTL keeps a revocation entry alive until the token would have
// expired on its own, with a small floor for already-expired tokens.
func (m *TokenManager) revocationTTL(claims Claims) time.Duration {
	remaining := claims.ExpiresAt.Time.Sub(m.now())
	if remaining < time.Minute {
		return time.Minute
	}
	return remaining
}
