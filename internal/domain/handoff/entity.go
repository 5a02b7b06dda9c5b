// internal/domain/handoff/entity.go
package handoff

import (
	"database/sql"
	"time"
)

// PendingSession bridges a browser-side login to an app-side session pickup.
// It is keyed by device for lookup and by session handle for consumption.
// For a given device at most one unconsumed, unexpired, unsuperseded record
// exists at a time; a new login supersedes any earlier one.
type PendingSession struct {
	ID            int64        `json:"id" db:"id"`
	DeviceID      string       `json:"device_id" db:"device_id"`
	IdentityID    int64        `json:"identity_id" db:"identity_id"`
	SessionHandle string       `json:"session_handle" db:"session_handle"`
	Provider      string       `json:"provider" db:"provider"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	ExpiresAt     time.Time    `json:"expires_at" db:"expires_at"`
	ConsumedAt    sql.NullTime `json:"consumed_at" db:"consumed_at"`
	SupersededAt  sql.NullTime `json:"-" db:"superseded_at"`
}

// Live reports whether the record is still eligible for lookup/consume.
func (p *PendingSession) Live(now time.Time) bool {
	return !p.ConsumedAt.Valid && !p.SupersededAt.Valid && now.Before(p.ExpiresAt)
}

// AppSession is the credential material handed to the client once a pending
// session has been consumed. It is the app's normal authenticated session,
// not the pending record itself.
type AppSession struct {
	AccessToken string    `json:"access_token"`
	SessionID   string    `json:"session_id"`
	IdentityID  int64     `json:"identity_id"`
	DeviceID    string    `json:"device_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}
