package appclient

import "testing"

func TestParseLaunchURL(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantOK     bool
		wantHandle string
		wantID     int64
	}{
		{
			name:       "valid callback",
			raw:        "fitbridge://auth/callback?session_handle=abc123&user_id=42",
			wantOK:     true,
			wantHandle: "abc123",
			wantID:     42,
		},
		{
			name:       "missing diagnostic user id",
			raw:        "fitbridge://auth/callback?session_handle=abc123",
			wantOK:     true,
			wantHandle: "abc123",
		},
		{
			name:       "url-escaped handle",
			raw:        "fitbridge://auth/callback?session_handle=a%2Bb%2Fc&user_id=7",
			wantOK:     true,
			wantHandle: "a+b/c",
			wantID:     7,
		},
		{
			name: "missing handle",
			raw:  "fitbridge://auth/callback?user_id=42",
		},
		{
			name: "wrong scheme",
			raw:  "https://auth/callback?session_handle=abc123",
		},
		{
			name: "wrong host",
			raw:  "fitbridge://share/callback?session_handle=abc123",
		},
		{
			name: "wrong path",
			raw:  "fitbridge://auth/settings?session_handle=abc123",
		},
		{
			name: "unrelated deep link",
			raw:  "fitbridge://workout/123",
		},
		{
			name: "empty",
			raw:  "",
		},
		{
			name: "garbage",
			raw:  "::::not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := ParseLaunchURL(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if req.SessionHandle != tt.wantHandle {
				t.Errorf("SessionHandle = %q, want %q", req.SessionHandle, tt.wantHandle)
			}
			if req.IdentityID != tt.wantID {
				t.Errorf("IdentityID = %d, want %d", req.IdentityID, tt.wantID)
			}
		})
	}
}
