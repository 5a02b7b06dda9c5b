package appclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fitbridge-service/internal/domain/handoff"
)

func TestLookupPendingWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/pending/lookup" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["device_id"] != "device-1" {
			t.Errorf("request device_id = %v", req["device_id"])
		}

		w.Header().Set("Content-Type", "application/json")
		// The principal travels as user_id, matching the deep link query.
		fmt.Fprint(w, `{"success":true,"message":"lookup complete","data":{"found":true,"session_handle":"h1","user_id":7}}`)
	}))
	defer srv.Close()

	resp, err := NewAPIClient(srv.URL).LookupPending(context.Background(), "device-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !resp.Found || resp.SessionHandle != "h1" {
		t.Fatalf("resp = %+v, want found h1", resp)
	}
	if resp.IdentityID != 7 {
		t.Fatalf("IdentityID = %d, want 7 decoded from user_id", resp.IdentityID)
	}
}

func TestLookupResponseMarshalsUserID(t *testing.T) {
	data, err := json.Marshal(handoff.LookupResponse{Found: true, SessionHandle: "h1", IdentityID: 7})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := wire["user_id"]; !ok {
		t.Fatalf("wire = %s, want a user_id field", data)
	}
	if _, ok := wire["identity_id"]; ok {
		t.Fatalf("wire = %s, identity_id must not leak", data)
	}
}

func TestConsumePendingWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/pending/consume" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"message":"consume complete","data":{"status":"ok","app_session":{"access_token":"tok","session_id":"jti-1","identity_id":7,"device_id":"device-1"}}}`)
	}))
	defer srv.Close()

	resp, err := NewAPIClient(srv.URL).ConsumePending(context.Background(), "h1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if resp.Status != handoff.StatusOK {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	if resp.AppSession == nil || resp.AppSession.AccessToken != "tok" || resp.AppSession.IdentityID != 7 {
		t.Fatalf("app session = %+v", resp.AppSession)
	}
}

func TestTransportSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success":false,"message":"lookup failed"}`)
	}))
	defer srv.Close()

	if _, err := NewAPIClient(srv.URL).LookupPending(context.Background(), "device-1"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
