// internal/appclient/deeplink.go
package appclient

import (
	"net/url"
	"strconv"
)

// Deep link shape delivered by the OS when the external browser redirects
// back into the app: fitbridge://auth/callback?session_handle=...&user_id=...
const (
	DeepLinkScheme = "fitbridge"
	callbackHost   = "auth"
	callbackPath   = "/callback"
)

// HandoffRequest is the parsed content of an auth callback deep link.
// IdentityID is diagnostic only; the server is the source of truth for who
// the session belongs to once the handle is consumed.
type HandoffRequest struct {
	SessionHandle string
	IdentityID    int64
}

// ParseLaunchURL extracts a handoff request from a launch URL. It returns
// false for anything that is not a recognized auth callback; the OS may
// redeliver the last launch URL on every relaunch, and unrelated links must
// be ignored silently, not treated as errors. Parsing is side-effect free
// and never deduplicates; that is the idempotency guard's job.
func ParseLaunchURL(raw string) (HandoffRequest, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return HandoffRequest{}, false
	}
	if u.Scheme != DeepLinkScheme || u.Host != callbackHost || u.Path != callbackPath {
		return HandoffRequest{}, false
	}

	q := u.Query()
	handle := q.Get("session_handle")
	if handle == "" {
		return HandoffRequest{}, false
	}

	identityID, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)
	return HandoffRequest{SessionHandle: handle, IdentityID: identityID}, true
}
