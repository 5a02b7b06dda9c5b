// internal/repository/postgres/auth_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitbridge-service/internal/domain/auth"
	xerrors "fitbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

// ========== Identity Methods ==========

// FindIdentityByID retrieves an identity by ID
func (r *AuthRepository) FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	query := `
		SELECT id, email, full_name, status, last_login, created_at, updated_at, deleted_at
		FROM auth_identities
		WHERE id = $1 AND deleted_at IS NULL
	`

	var identity auth.Identity
	err := r.db.QueryRow(ctx, query, id).Scan(
		&identity.ID, &identity.Email, &identity.FullName, &identity.Status,
		&identity.LastLogin, &identity.CreatedAt, &identity.UpdatedAt, &identity.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &identity, nil
}

// FindIdentityByProvider retrieves an identity through its provider link.
func (r *AuthRepository) FindIdentityByProvider(ctx context.Context, provider, providerUserID string) (*auth.Identity, error) {
	query := `
		SELECT i.id, i.email, i.full_name, i.status, i.last_login, i.created_at, i.updated_at, i.deleted_at
		FROM auth_identities i
		JOIN auth_providers p ON p.identity_id = i.id
		WHERE p.provider = $1 AND p.provider_user_id = $2 AND i.deleted_at IS NULL
	`

	var identity auth.Identity
	err := r.db.QueryRow(ctx, query, provider, providerUserID).Scan(
		&identity.ID, &identity.Email, &identity.FullName, &identity.Status,
		&identity.LastLogin, &identity.CreatedAt, &identity.UpdatedAt, &identity.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity by provider: %w", err)
	}

	return &identity, nil
}

// CreateIdentity creates a new identity
func (r *AuthRepository) CreateIdentity(ctx context.Context, identity *auth.Identity) error {
	query := `
		INSERT INTO auth_identities (email, full_name, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query, identity.Email, identity.FullName, identity.Status).
		Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
}

// CreateProvider links an identity to an external provider account.
func (r *AuthRepository) CreateProvider(ctx context.Context, provider *auth.Provider) error {
	query := `
		INSERT INTO auth_providers (identity_id, provider, provider_user_id, provider_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		provider.IdentityID, provider.Provider, provider.ProviderUserID, provider.ProviderEmail,
	).Scan(&provider.ID, &provider.CreatedAt, &provider.UpdatedAt)
}

// UpdateIdentityLastLogin updates the last login timestamp
func (r *AuthRepository) UpdateIdentityLastLogin(ctx context.Context, id int64) error {
	query := `UPDATE auth_identities SET last_login = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

// ========== Session Methods ==========

// CreateSession creates a new session
func (r *AuthRepository) CreateSession(ctx context.Context, session *auth.Session) error {
	query := `
		INSERT INTO auth_sessions (identity_id, session_token, provider, device_id, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, login_at, last_activity_at
	`

	return r.db.QueryRow(ctx, query,
		session.IdentityID, session.SessionToken, session.Provider,
		session.DeviceID, session.IPAddress, session.UserAgent, session.ExpiresAt,
	).Scan(&session.ID, &session.LoginAt, &session.LastActivityAt)
}

// FindSessionByToken finds an active session by its JTI.
func (r *AuthRepository) FindSessionByToken(ctx context.Context, token string) (*auth.Session, error) {
	query := `
		SELECT id, identity_id, session_token, provider, device_id, ip_address, user_agent,
		       status, login_at, last_activity_at, expires_at, logout_at
		FROM auth_sessions
		WHERE session_token = $1 AND status = 'active' AND expires_at > NOW()
	`

	var session auth.Session
	err := r.db.QueryRow(ctx, query, token).Scan(
		&session.ID, &session.IdentityID, &session.SessionToken, &session.Provider,
		&session.DeviceID, &session.IPAddress, &session.UserAgent, &session.Status,
		&session.LoginAt, &session.LastActivityAt, &session.ExpiresAt, &session.LogoutAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &session, nil
}

// ListActiveSessions lists active sessions for an identity.
func (r *AuthRepository) ListActiveSessions(ctx context.Context, identityID int64) ([]*auth.Session, error) {
	query := `
		SELECT id, identity_id, session_token, provider, device_id, ip_address, user_agent,
		       status, login_at, last_activity_at, expires_at, logout_at
		FROM auth_sessions
		WHERE identity_id = $1 AND status = 'active' AND expires_at > NOW()
		ORDER BY last_activity_at DESC
	`

	rows, err := r.db.Query(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		var s auth.Session
		if err := rows.Scan(
			&s.ID, &s.IdentityID, &s.SessionToken, &s.Provider,
			&s.DeviceID, &s.IPAddress, &s.UserAgent, &s.Status,
			&s.LoginAt, &s.LastActivityAt, &s.ExpiresAt, &s.LogoutAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}

	return sessions, rows.Err()
}

// InvalidateSession invalidates a session
func (r *AuthRepository) InvalidateSession(ctx context.Context, id int64) error {
	query := `
		UPDATE auth_sessions
		SET status = 'revoked', logout_at = $1
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

// InvalidateAllUserSessions invalidates all sessions for a user
func (r *AuthRepository) InvalidateAllUserSessions(ctx context.Context, identityID int64) error {
	query := `
		UPDATE auth_sessions
		SET status = 'revoked', logout_at = $1
		WHERE identity_id = $2 AND status = 'active'
	`
	_, err := r.db.Exec(ctx, query, time.Now(), identityID)
	return err
}
