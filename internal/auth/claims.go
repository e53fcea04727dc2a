package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

// Claims is the fixed signed payload of every token this service issues.
// Roles is a snapshot at issuance time and only present on access tokens;
// refresh tokens authorize re-issuance, not access.
type Claims struct {
	TokenType string   `json:"typ"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) validateShape() error {
	if c.Subject == "" || c.ID == "" || c.ExpiresAt == nil || c.IssuedAt == nil {
		return ErrTokenMalformed
	}
	if c.TokenType != TokenTypeAccess && c.TokenType != TokenTypeRefresh {
		return ErrTokenMalformed
	}
	return nil
}

// Codec signs and verifies claim sets. The signing key and algorithm are
// injected; only HMAC family algorithms are accepted.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

func NewCodec(secret, algorithm string) (*Codec, error) {
	method := jwt.GetSigningMethod(strings.ToUpper(strings.TrimSpace(algorithm)))
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm: %s", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}

	return &Codec{
		secret: []byte(secret),
		method: method,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source used for expiry validation. Test hook.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

func (c *Codec) Encode(claims Claims) (string, error) {
	token := jwt.NewWithClaims(c.method, claims)
	encoded, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return encoded, nil
}

// Decode verifies the signature and structure of token and returns its
// claims. With verifyExpiry false the expiry check is skipped; the signature
// is still verified, so the result is trustworthy for revocation bookkeeping
// and audit correlation but must never stand in for authentication.
func (c *Codec) Decode(token string, verifyExpiry bool) (Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if !verifyExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenMalformed
	}
	if !parsed.Valid {
		return Claims{}, ErrTokenMalformed
	}
	if err := claims.validateShape(); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

func newNumericDate(t time.Time) *jwt.NumericDate {
	return jwt.NewNumericDate(t)
}
