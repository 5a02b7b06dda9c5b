// internal/domain/auth/dto.go
package auth

import "time"

// Principal is the outcome of identity-provider token verification.
// Verification itself is an external concern behind the IdentityVerifier
// boundary; the rest of the system only sees this shape.
type Principal struct {
	Provider string `json:"provider"`
	Subject  string `json:"subject"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// SessionInfo is what session listing endpoints expose.
type SessionInfo struct {
	SessionID      int64     `json:"session_id"`
	Provider       string    `json:"provider"`
	DeviceID       string    `json:"device_id"`
	LoginAt        time.Time `json:"login_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// UserInfo minimal user information
type UserInfo struct {
	IdentityID int64  `json:"identity_id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
}
