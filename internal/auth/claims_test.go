package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims(tokenType string, issued time.Time, ttl time.Duration) Claims {
	return Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        "jti-1",
			IssuedAt:  newNumericDate(issued),
			ExpiresAt: newNumericDate(issued.Add(ttl)),
		},
	}
}

func TestNewCodecRejectsNonHMAC(t *testing.T) {
	_, err := NewCodec("secret", "RS256")
	assert.Error(t, err)

	_, err = NewCodec("secret", "none")
	assert.Error(t, err)

	_, err = NewCodec("secret", "nonsense")
	assert.Error(t, err)

	_, err = NewCodec("", "HS256")
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec, err := NewCodec("test-secret", "HS256")
	require.NoError(t, err)

	in := testClaims(TokenTypeAccess, time.Now().UTC(), time.Hour)
	in.Roles = []string{"user", "admin"}

	token, err := codec.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(token, true)
	require.NoError(t, err)
	assert.Equal(t, "user-1", out.Subject)
	assert.Equal(t, "jti-1", out.ID)
	assert.Equal(t, TokenTypeAccess, out.TokenType)
	assert.Equal(t, []string{"user", "admin"}, out.Roles)
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	codecA, err := NewCodec("secret-a", "HS256")
	require.NoError(t, err)
	codecB, err := NewCodec("secret-b", "HS256")
	require.NoError(t, err)

	token, err := codecA.Encode(testClaims(TokenTypeAccess, time.Now().UTC(), time.Hour))
	require.NoError(t, err)

	_, err = codecB.Decode(token, true)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestDecodeExpired(t *testing.T) {
	codec, err := NewCodec("test-secret", "HS256")
	require.NoError(t, err)

	token, err := codec.Encode(testClaims(TokenTypeAccess, time.Now().UTC().Add(-2*time.Hour), time.Hour))
	require.NoError(t, err)

	_, err = codec.Decode(token, true)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// Signature still verifies when expiry checking is off.
	claims, err := codec.Decode(token, false)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec, err := NewCodec("test-secret", "HS256")
	require.NoError(t, err)

	_, err = codec.Decode("definitely.not.ajwt", true)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	_, err = codec.Decode("", true)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestDecodeRejectsIncompleteClaims(t *testing.T) {
	codec, err := NewCodec("test-secret", "HS256")
	require.NoError(t, err)

	missingSubject := testClaims(TokenTypeAccess, time.Now().UTC(), time.Hour)
	missingSubject.Subject = ""
	token, err := codec.Encode(missingSubject)
	require.NoError(t, err)
	_, err = codec.Decode(token, true)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	badType := testClaims("session", time.Now().UTC(), time.Hour)
	token, err = codec.Encode(badType)
	require.NoError(t, err)
	_, err = codec.Decode(token, true)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
