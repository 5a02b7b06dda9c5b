// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims carried by app session tokens.
type Claims struct {
	IdentityID     int64  `json:"identity_id"`
	DeviceID       string `json:"device_id,omitempty"`
	Provider       string `json:"provider,omitempty"`
	SessionPurpose string `json:"session_purpose"` // access
	jwt.RegisteredClaims
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}
	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}
	return false
}
