// internal/appclient/transport.go
package appclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fitbridge-service/internal/domain/handoff"
)

const defaultRequestTimeout = 5 * time.Second

// envelope mirrors the server's standard response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// APIClient talks to the handoff endpoints. Every call carries a per-request
// timeout; nothing in the reconciliation flow may block indefinitely.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

// LookupPending asks whether a pending session exists for the device.
// "Nothing pending" is a normal found:false response, never an error.
func (c *APIClient) LookupPending(ctx context.Context, deviceID string) (*handoff.LookupResponse, error) {
	var out handoff.LookupResponse
	if err := c.post(ctx, "/api/v1/auth/pending/lookup", handoff.LookupRequest{DeviceID: deviceID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConsumePending consumes a pending session by handle. All terminal states
// come back as HTTP 200 with a status discriminator.
func (c *APIClient) ConsumePending(ctx context.Context, handle string) (*handoff.ConsumeResponse, error) {
	var out handoff.ConsumeResponse
	if err := c.post(ctx, "/api/v1/auth/pending/consume", handoff.ConsumeRequest{SessionHandle: handle}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
