package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store is the credential store contract the auth core depends on. All
// operations are point lookups or single-row updates keyed by unique
// identifiers or hashes. Not-found is reported as sql.ErrNoRows.
type Store interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdateLoginState(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error

	CreateAPIKey(ctx context.Context, key APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error)
	GetAPIKeyByID(ctx context.Context, id, userID string) (APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error)
	DeactivateAPIKey(ctx context.Context, id, userID string) error
	ReplaceAPIKeySecret(ctx context.Context, id, userID, newHash, newPrefix string) error
	TouchAPIKeyUsage(ctx context.Context, id string, usedAt time.Time) error
}

// Repository is the Postgres-backed Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `
	id, username, email_encrypted, password_hash,
	is_active, is_verified, failed_login_attempts, locked_until, last_login,
	password_changed_at, roles, created_at, updated_at`

func (r *Repository) CreateUser(ctx context.Context, user User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, username, email_encrypted, password_hash,
			is_active, is_verified, failed_login_attempts, locked_until, last_login,
			password_changed_at, roles, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, user.ID, user.Username, user.EmailEncrypted, user.PasswordHash,
		user.IsActive, user.IsVerified, user.FailedLoginAttempts, user.LockedUntil, user.LastLogin,
		user.PasswordChangedAt, joinList(user.Roles), user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE username = $1
	`, username)

	return scanUser(row)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var user User
	var roles string
	var lockedUntil, lastLogin sql.NullTime
	err := row.Scan(
		&user.ID, &user.Username, &user.EmailEncrypted, &user.PasswordHash,
		&user.IsActive, &user.IsVerified, &user.FailedLoginAttempts, &lockedUntil, &lastLogin,
		&user.PasswordChangedAt, &roles, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		user.LockedUntil = &value
	}
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		user.LastLogin = &value
	}
	user.Roles = splitList(roles)

	return user, nil
}

// UpdateLoginState persists the lockout bookkeeping fields after a login
// attempt.
func (r *Repository) UpdateLoginState(ctx context.Context, user User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = $2, locked_until = $3, last_login = $4, updated_at = $5
		WHERE id = $1
	`, user.ID, user.FailedLoginAttempts, user.LockedUntil, user.LastLogin, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update login state: %w", err)
	}

	return nil
}

func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3, updated_at = $3
		WHERE id = $1
	`, userID, passwordHash, changedAt.UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func (r *Repository) CreateAPIKey(ctx context.Context, key APIKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, expires_at, last_used_at, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix,
		joinList(key.Scopes), key.ExpiresAt, key.LastUsedAt, key.IsActive, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}

	return nil
}

const apiKeyColumns = `
	id, user_id, name, key_hash, key_prefix, scopes, expires_at, last_used_at, is_active, created_at`

func (r *Repository) GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+apiKeyColumns+`
		FROM api_keys
		WHERE key_hash = $1 AND is_active = TRUE
	`, keyHash)

	return scanAPIKey(row)
}

func (r *Repository) GetAPIKeyByID(ctx context.Context, id, userID string) (APIKey, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT`+apiKeyColumns+`
		FROM api_keys
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	return scanAPIKey(row)
}

func scanAPIKey(row *sql.Row) (APIKey, error) {
	var key APIKey
	var scopes string
	var expiresAt, lastUsedAt sql.NullTime
	err := row.Scan(
		&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.KeyPrefix,
		&scopes, &expiresAt, &lastUsedAt, &key.IsActive, &key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return APIKey{}, err
		}
		return APIKey{}, fmt.Errorf("query api key: %w", err)
	}

	if expiresAt.Valid {
		value := expiresAt.Time.UTC()
		key.ExpiresAt = &value
	}
	if lastUsedAt.Valid {
		value := lastUsedAt.Time.UTC()
		key.LastUsedAt = &value
	}
	key.Scopes = splitList(scopes)

	return key, nil
}

func (r *Repository) ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+apiKeyColumns+`
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]APIKey, 0)
	for rows.Next() {
		var key APIKey
		var scopes string
		var expiresAt, lastUsedAt sql.NullTime
		if err := rows.Scan(
			&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.KeyPrefix,
			&scopes, &expiresAt, &lastUsedAt, &key.IsActive, &key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		if expiresAt.Valid {
			value := expiresAt.Time.UTC()
			key.ExpiresAt = &value
		}
		if lastUsedAt.Valid {
			value := lastUsedAt.Time.UTC()
			key.LastUsedAt = &value
		}
		key.Scopes = splitList(scopes)
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}

	return keys, nil
}

// DeactivateAPIKey revokes a key in place. Keys are never physically deleted
// so the audit trail stays intact.
func (r *Repository) DeactivateAPIKey(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate api key rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// ReplaceAPIKeySecret swaps the stored hash and prefix, invalidating the
// previous secret immediately.
func (r *Repository) ReplaceAPIKeySecret(ctx context.Context, id, userID, newHash, newPrefix string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE api_keys
		SET key_hash = $3, key_prefix = $4, is_active = TRUE
		WHERE id = $1 AND user_id = $2
	`, id, userID, newHash, newPrefix)
	if err != nil {
		return fmt.Errorf("replace api key secret: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace api key secret rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *Repository) TouchAPIKeyUsage(ctx context.Context, id string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE api_keys
		SET last_used_at = $2
		WHERE id = $1
	`, id, usedAt.UTC())
	if err != nil {
		return fmt.Errorf("touch api key usage: %w", err)
	}

	return nil
}

// CleanupResult summarizes a maintenance sweep over stale auth data.
type CleanupResult struct {
	DeactivatedAPIKeys int64 `json:"deactivated_api_keys"`
	DeletedAuditLogs   int64 `json:"deleted_audit_logs"`
}

// CleanupStaleAuthData deactivates expired API keys and prunes old audit
// rows in bounded batches.
func (r *Repository) CleanupStaleAuthData(ctx context.Context, auditRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if auditRetention <= 0 {
		auditRetention = 90 * 24 * time.Hour
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at < NOW()
	`)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("deactivate expired api keys: %w", err)
	}
	deactivated, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("expired api keys rows affected: %w", err)
	}

	cutoff := time.Now().UTC().Add(-auditRetention)
	res, err = r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM audit_logs
			WHERE created_at < $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM audit_logs t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete stale audit logs: %w", err)
	}
	deletedAudit, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("stale audit logs rows affected: %w", err)
	}

	return CleanupResult{
		DeactivatedAPIKeys: deactivated,
		DeletedAuditLogs:   deletedAudit,
	}, nil
}
