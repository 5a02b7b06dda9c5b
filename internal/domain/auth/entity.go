// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

// Identity represents the core user identity. Accounts are created through
// identity-provider sign-in only; there is no local password provider.
type Identity struct {
	ID        int64          `json:"id" db:"id"`
	Email     sql.NullString `json:"email" db:"email"`
	FullName  sql.NullString `json:"full_name" db:"full_name"`
	Status    string         `json:"status" db:"status"` // active, inactive, suspended
	LastLogin sql.NullTime   `json:"last_login" db:"last_login"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt sql.NullTime   `json:"-" db:"deleted_at"`
}

// Provider links an identity to an external identity provider account.
type Provider struct {
	ID             int64          `json:"id" db:"id"`
	IdentityID     int64          `json:"identity_id" db:"identity_id"`
	Provider       string         `json:"provider" db:"provider"` // google, apple
	ProviderUserID string         `json:"provider_user_id" db:"provider_user_id"`
	ProviderEmail  sql.NullString `json:"provider_email" db:"provider_email"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Session is the durable record of an issued app session. Redis is the fast
// path; this row is the audit trail and revocation anchor.
type Session struct {
	ID             int64          `json:"id" db:"id"`
	IdentityID     int64          `json:"identity_id" db:"identity_id"`
	SessionToken   string         `json:"-" db:"session_token"` // JWT JTI
	Provider       string         `json:"provider" db:"provider"`
	DeviceID       sql.NullString `json:"device_id" db:"device_id"`
	IPAddress      sql.NullString `json:"ip_address" db:"ip_address"`
	UserAgent      sql.NullString `json:"user_agent" db:"user_agent"`
	Status         string         `json:"status" db:"status"` // active, revoked
	LoginAt        time.Time      `json:"login_at" db:"login_at"`
	LastActivityAt time.Time      `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time      `json:"expires_at" db:"expires_at"`
	LogoutAt       sql.NullTime   `json:"logout_at" db:"logout_at"`
}
