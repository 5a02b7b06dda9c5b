// internal/pkg/session/types.go
package session

import "time"

// SessionData is the Redis-resident app session. The auth_sessions row is
// the audit trail; this is the record the auth middleware consults.
type SessionData struct {
	JTI            string    `json:"jti"`
	IdentityID     int64     `json:"identity_id"`
	SessionID      int64     `json:"session_id"` // DB session ID
	Email          string    `json:"email"`
	DeviceID       string    `json:"device_id,omitempty"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	Provider       string    `json:"provider"` // google, apple
	LoginAt        time.Time `json:"login_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
