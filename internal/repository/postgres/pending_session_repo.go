// internal/repository/postgres/pending_session_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitbridge-service/internal/domain/handoff"
	xerrors "fitbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PendingSessionRepository struct {
	db *pgxpool.Pool
}

func NewPendingSessionRepository(db *pgxpool.Pool) *PendingSessionRepository {
	return &PendingSessionRepository{db: db}
}

// Create supersedes any live record for the device and inserts the new one
// in a single transaction, so at most one live pending session exists per
// device at any point.
func (r *PendingSessionRepository) Create(ctx context.Context, ps *handoff.PendingSession) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	supersede := `
		UPDATE pending_sessions
		SET superseded_at = NOW()
		WHERE device_id = $1 AND consumed_at IS NULL AND superseded_at IS NULL
	`
	if _, err := tx.Exec(ctx, supersede, ps.DeviceID); err != nil {
		return fmt.Errorf("failed to supersede pending sessions: %w", err)
	}

	insert := `
		INSERT INTO pending_sessions (device_id, identity_id, session_handle, provider, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, insert,
		ps.DeviceID, ps.IdentityID, ps.SessionHandle, ps.Provider, ps.ExpiresAt,
	).Scan(&ps.ID, &ps.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pending session: %w", err)
	}

	return tx.Commit(ctx)
}

// Lookup returns the live record for a device. Expired, consumed and
// superseded records are absent, not errors.
func (r *PendingSessionRepository) Lookup(ctx context.Context, deviceID string) (*handoff.PendingSession, error) {
	query := `
		SELECT id, device_id, identity_id, session_handle, provider,
		       created_at, expires_at, consumed_at, superseded_at
		FROM pending_sessions
		WHERE device_id = $1
		  AND consumed_at IS NULL
		  AND superseded_at IS NULL
		  AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	var ps handoff.PendingSession
	err := r.db.QueryRow(ctx, query, deviceID).Scan(
		&ps.ID, &ps.DeviceID, &ps.IdentityID, &ps.SessionHandle, &ps.Provider,
		&ps.CreatedAt, &ps.ExpiresAt, &ps.ConsumedAt, &ps.SupersededAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup pending session: %w", err)
	}

	return &ps, nil
}

// Consume atomically marks the record consumed. The conditional UPDATE is
// the linearization point: under concurrent consumes for one handle exactly
// one caller gets the row back, everyone else disambiguates below.
func (r *PendingSessionRepository) Consume(ctx context.Context, sessionHandle string) (*handoff.PendingSession, error) {
	update := `
		UPDATE pending_sessions
		SET consumed_at = NOW()
		WHERE session_handle = $1
		  AND consumed_at IS NULL
		  AND superseded_at IS NULL
		  AND expires_at > NOW()
		RETURNING id, device_id, identity_id, session_handle, provider,
		          created_at, expires_at, consumed_at, superseded_at
	`

	var ps handoff.PendingSession
	err := r.db.QueryRow(ctx, update, sessionHandle).Scan(
		&ps.ID, &ps.DeviceID, &ps.IdentityID, &ps.SessionHandle, &ps.Provider,
		&ps.CreatedAt, &ps.ExpiresAt, &ps.ConsumedAt, &ps.SupersededAt,
	)
	if err == nil {
		return &ps, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to consume pending session: %w", err)
	}

	// The row was not consumable; find out why for the caller's taxonomy.
	probe := `
		SELECT consumed_at IS NOT NULL, superseded_at IS NOT NULL OR expires_at <= NOW()
		FROM pending_sessions
		WHERE session_handle = $1
	`
	var consumed, expired bool
	err = r.db.QueryRow(ctx, probe, sessionHandle).Scan(&consumed, &expired)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to probe pending session: %w", err)
	}
	if consumed {
		return nil, xerrors.ErrAlreadyConsumed
	}
	if expired {
		return nil, xerrors.ErrHandoffExpired
	}
	// Row became consumable between UPDATE and probe; treat as lost race.
	return nil, xerrors.ErrAlreadyConsumed
}

// DeleteExpired garbage-collects rows past their retention window.
func (r *PendingSessionRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM pending_sessions WHERE expires_at < $1`
	tag, err := r.db.Exec(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pending sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
