// internal/domain/handoff/dto.go
package handoff

import "time"

// ConsumeStatus is the wire status of a consume/materialize call.
type ConsumeStatus string

const (
	StatusOK              ConsumeStatus = "ok"
	StatusAlreadyConsumed ConsumeStatus = "already_consumed"
	StatusExpired         ConsumeStatus = "expired"
	StatusNotFound        ConsumeStatus = "not_found"
)

// CreateRequest stages a pending session after identity verification.
// Internal endpoint: only the OAuth callback handler calls it.
type CreateRequest struct {
	DeviceID   string `json:"device_id" binding:"required"`
	IdentityID int64  `json:"user_id" binding:"required"`
	Provider   string `json:"provider"`
}

// CreateResponse returns the staged handle and its lifetime.
type CreateResponse struct {
	SessionHandle string    `json:"session_handle"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// LookupRequest asks whether a pending session exists for a device.
type LookupRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// LookupResponse never errors for "nothing pending"; found is false then.
// The principal travels as user_id on the wire, same as the deep link query.
type LookupResponse struct {
	Found         bool   `json:"found"`
	SessionHandle string `json:"session_handle,omitempty"`
	IdentityID    int64  `json:"user_id,omitempty"`
}

// ConsumeRequest consumes a pending session by handle.
type ConsumeRequest struct {
	SessionHandle string `json:"session_handle" binding:"required"`
}

// ConsumeResponse carries the app session only when status is "ok".
type ConsumeResponse struct {
	Status     ConsumeStatus `json:"status"`
	AppSession *AppSession   `json:"app_session,omitempty"`
}
