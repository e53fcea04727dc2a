package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"neo-guardian/internal/audit"
	"neo-guardian/internal/metrics"
	"neo-guardian/internal/security"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

// Service orchestrates registration, login, token refresh and password
// changes on top of the credential store and the token manager.
type Service struct {
	store     Store
	hasher    *security.PasswordHasher
	encryptor *security.Encryptor
	tokens    *TokenManager
	lockout   LockoutPolicy
	audit     audit.Recorder
	now       func() time.Time
}

func NewService(
	store Store,
	hasher *security.PasswordHasher,
	encryptor *security.Encryptor,
	tokens *TokenManager,
	lockout LockoutPolicy,
	recorder audit.Recorder,
) *Service {
	return &Service{
		store:     store,
		hasher:    hasher,
		encryptor: encryptor,
		tokens:    tokens,
		lockout:   lockout,
		audit:     recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register creates a new principal with the default user role.
func (s *Service) Register(ctx context.Context, username, email, password string) (User, error) {
	username = strings.ToLower(security.SanitizeInput(strings.TrimSpace(username)))
	if !usernameRegex.MatchString(username) {
		return User{}, fmt.Errorf("%w: username may only contain letters, digits and underscores", ErrInvalidCredentials)
	}

	if ok, reasons := s.hasher.ValidateStrength(password); !ok {
		return User{}, ErrWeakPassword{Reasons: reasons}
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		s.audit.Record(ctx, audit.Event{
			Action: "register_failed",
			Status: audit.StatusFailure,
			Detail: "username already exists",
		})
		return User{}, ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return User{}, err
	}

	encryptedEmail, err := s.encryptor.Encrypt(email)
	if err != nil {
		return User{}, fmt.Errorf("encrypt email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := s.now()
	user := User{
		ID:                id.String(),
		Username:          username,
		EmailEncrypted:    encryptedEmail,
		PasswordHash:      hash,
		IsActive:          true,
		Roles:             []string{"user"},
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return User{}, err
	}

	s.audit.Record(ctx, audit.Event{
		Action:       "user_registered",
		Status:       audit.StatusSuccess,
		UserID:       user.ID,
		ResourceType: "user",
		ResourceID:   user.ID,
	})

	return user, nil
}

// BootstrapAdmin seeds an administrator account on first start. Both values
// empty is a no-op; one empty is a configuration error. An existing account
// is left untouched.
func (s *Service) BootstrapAdmin(ctx context.Context, username, password, email string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" && password == "" {
		return nil
	}
	if username == "" || password == "" {
		return errors.New("admin bootstrap requires both username and password")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("admin bootstrap username is invalid")
	}
	if ok, reasons := s.hasher.ValidateStrength(password); !ok {
		return fmt.Errorf("admin bootstrap password rejected: %s", strings.Join(reasons, "; "))
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if email == "" {
		email = username + "@localhost"
	}
	encryptedEmail, err := s.encryptor.Encrypt(email)
	if err != nil {
		return fmt.Errorf("encrypt email: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}

	now := s.now()
	user := User{
		ID:                id.String(),
		Username:          username,
		EmailEncrypted:    encryptedEmail,
		PasswordHash:      hash,
		IsActive:          true,
		IsVerified:        true,
		Roles:             []string{"admin", "user"},
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Event{
		Action:       "admin_bootstrapped",
		Status:       audit.StatusSuccess,
		UserID:       user.ID,
		ResourceType: "user",
		ResourceID:   user.ID,
	})

	return nil
}

// Login authenticates a principal and issues a token pair. The lock check
// runs before password verification, so a locked account rejects even
// correct credentials with the lockout error.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	// Passwords are matched byte for byte; only the username is normalized.
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return TokenPair{}, ErrInvalidCredentials
	}

	now := s.now()
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.LoginsTotal.WithLabelValues("invalid").Inc()
			s.audit.Record(ctx, audit.Event{
				Action: "login_failed",
				Status: audit.StatusFailure,
				Detail: "unknown username",
			})
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		s.audit.Record(ctx, audit.Event{
			Action: "login_failed",
			Status: audit.StatusFailure,
			UserID: user.ID,
			Detail: "account inactive",
		})
		return TokenPair{}, ErrInvalidCredentials
	}

	if s.lockout.IsLocked(&user, now) {
		metrics.LoginsTotal.WithLabelValues("locked").Inc()
		s.audit.Record(ctx, audit.Event{
			Action: "login_blocked",
			Status: audit.StatusFailure,
			UserID: user.ID,
			Detail: "account locked",
		})
		return TokenPair{}, ErrAccountLocked{Until: *user.LockedUntil}
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		locked := s.lockout.RecordFailure(&user, now)
		if err := s.store.UpdateLoginState(ctx, user); err != nil {
			return TokenPair{}, err
		}

		s.audit.Record(ctx, audit.Event{
			Action: "login_failed",
			Status: audit.StatusFailure,
			UserID: user.ID,
			Detail: fmt.Sprintf("wrong password, attempt %d", user.FailedLoginAttempts),
		})

		if locked {
			metrics.LoginsTotal.WithLabelValues("locked").Inc()
			metrics.LockoutsTotal.Inc()
			s.audit.Record(ctx, audit.Event{
				Action: "account_locked",
				Status: audit.StatusFailure,
				UserID: user.ID,
			})
			return TokenPair{}, ErrAccountLocked{Until: *user.LockedUntil}
		}

		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		if remaining := s.lockout.RemainingAttempts(&user); remaining <= 3 {
			return TokenPair{}, ErrAttemptsRemaining{Remaining: remaining}
		}
		return TokenPair{}, ErrInvalidCredentials
	}

	s.lockout.RecordSuccess(&user, now)
	if err := s.store.UpdateLoginState(ctx, user); err != nil {
		return TokenPair{}, err
	}

	pair, err := s.tokens.CreateTokenPair(user.ID, user.Roles)
	if err != nil {
		return TokenPair{}, err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.audit.Record(ctx, audit.Event{
		Action: "login_success",
		Status: audit.StatusSuccess,
		UserID: user.ID,
	})

	return pair, nil
}

// Refresh rotates a refresh token into a fresh pair, re-reading the user's
// roles so the new access token reflects current grants.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, ErrUnauthenticated
	}

	// Subject extraction is best effort, for audit correlation of failures.
	subject, _ := s.tokens.ExtractSubject(refreshToken)

	var roles []string
	if subject != "" {
		user, err := s.store.GetUserByID(ctx, subject)
		switch {
		case errors.Is(err, sql.ErrNoRows), err == nil && !user.IsActive:
			s.audit.Record(ctx, audit.Event{
				Action: "token_refresh_failed",
				Status: audit.StatusFailure,
				UserID: subject,
				Detail: "subject missing or inactive",
			})
			return TokenPair{}, ErrUnauthenticated
		case err != nil:
			return TokenPair{}, err
		}
		roles = user.Roles
	}

	pair, ok := s.tokens.Refresh(ctx, refreshToken, roles)
	if !ok {
		metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		s.audit.Record(ctx, audit.Event{
			Action: "token_refresh_failed",
			Status: audit.StatusFailure,
			UserID: subject,
			Detail: "refresh token invalid, expired or already used",
		})
		return TokenPair{}, ErrUnauthenticated
	}

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	s.audit.Record(ctx, audit.Event{
		Action: "token_refreshed",
		Status: audit.StatusSuccess,
		UserID: subject,
	})

	return pair, nil
}

// Logout revokes the presented tokens. Revocation of an undecodable token is
// a no-op, not an error.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) {
	var subject string
	if accessToken != "" {
		subject, _ = s.tokens.ExtractSubject(accessToken)
		s.tokens.Revoke(ctx, accessToken)
	}
	if refreshToken != "" {
		if subject == "" {
			subject, _ = s.tokens.ExtractSubject(refreshToken)
		}
		s.tokens.Revoke(ctx, refreshToken)
	}

	s.audit.Record(ctx, audit.Event{
		Action: "logout",
		Status: audit.StatusSuccess,
		UserID: subject,
	})
}

// ChangePassword verifies the current password before accepting a new one.
func (s *Service) ChangePassword(ctx context.Context, user User, currentPassword, newPassword string) error {
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		s.audit.Record(ctx, audit.Event{
			Action: "password_change_failed",
			Status: audit.StatusFailure,
			UserID: user.ID,
			Detail: "current password incorrect",
		})
		return ErrInvalidCredentials
	}

	if ok, reasons := s.hasher.ValidateStrength(newPassword); !ok {
		return ErrWeakPassword{Reasons: reasons}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Event{
		Action: "password_changed",
		Status: audit.StatusSuccess,
		UserID: user.ID,
	})

	return nil
}

// Email decrypts a user's stored contact address.
func (s *Service) Email(user User) (string, error) {
	return s.encryptor.Decrypt(user.EmailEncrypted)
}
