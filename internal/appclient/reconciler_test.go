package appclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fitbridge-service/internal/domain/handoff"

	"go.uber.org/zap"
)

// memStorage is an in-memory Storage standing in for the durable KV store.
type memStorage struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{values: make(map[string]string)}
}

func (s *memStorage) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *memStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// fakeClient scripts the server side. Consume honors at-most-once per
// handle, like the real store.
type fakeClient struct {
	mu       sync.Mutex
	pending  map[string]string // deviceID -> handle, drained nothing
	expired  map[string]bool   // handle -> expired
	unknown  map[string]bool   // handle -> not_found
	consumed map[string]bool
	lookups  int
	consumes int
	// lookupAfter delays a found result until the given attempt number.
	lookupAfter int
	lookupErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pending:  make(map[string]string),
		expired:  make(map[string]bool),
		unknown:  make(map[string]bool),
		consumed: make(map[string]bool),
	}
}

func (c *fakeClient) LookupPending(_ context.Context, deviceID string) (*handoff.LookupResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	handle, ok := c.pending[deviceID]
	if !ok || c.consumed[handle] || c.lookups < c.lookupAfter {
		return &handoff.LookupResponse{Found: false}, nil
	}
	return &handoff.LookupResponse{Found: true, SessionHandle: handle, IdentityID: 1}, nil
}

func (c *fakeClient) ConsumePending(_ context.Context, handle string) (*handoff.ConsumeResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumes++
	switch {
	case c.unknown[handle]:
		return &handoff.ConsumeResponse{Status: handoff.StatusNotFound}, nil
	case c.expired[handle]:
		return &handoff.ConsumeResponse{Status: handoff.StatusExpired}, nil
	case c.consumed[handle]:
		return &handoff.ConsumeResponse{Status: handoff.StatusAlreadyConsumed}, nil
	}
	c.consumed[handle] = true
	return &handoff.ConsumeResponse{
		Status: handoff.StatusOK,
		AppSession: &handoff.AppSession{
			AccessToken: "token",
			SessionID:   "jti-1",
			IdentityID:  1,
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}, nil
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func newTestReconciler(t *testing.T, client Client, storage Storage) *Reconciler {
	t.Helper()
	r, err := NewReconciler(client, storage, Config{Sleep: noSleep}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return r
}

func TestHandleLaunchURLMaterializesOnce(t *testing.T) {
	client := newFakeClient()
	r := newTestReconciler(t, client, newMemStorage())

	link := "fitbridge://auth/callback?session_handle=h1&user_id=1"
	res := r.HandleLaunchURL(context.Background(), link)
	if res.Status != StatusComplete {
		t.Fatalf("status = %q, want %q", res.Status, StatusComplete)
	}
	if res.AppSession == nil || res.AppSession.AccessToken != "token" {
		t.Fatal("expected an app session")
	}

	// The OS redelivers the same launch URL on relaunch; the guard must
	// block a second network call entirely.
	res = r.HandleLaunchURL(context.Background(), link)
	if res.Status != StatusNoop {
		t.Fatalf("redelivered status = %q, want %q", res.Status, StatusNoop)
	}
	if client.consumes != 1 {
		t.Fatalf("consume calls = %d, want 1", client.consumes)
	}
}

func TestHandleLaunchURLIgnoresUnrelatedLinks(t *testing.T) {
	client := newFakeClient()
	r := newTestReconciler(t, client, newMemStorage())

	res := r.HandleLaunchURL(context.Background(), "fitbridge://workout/123")
	if res.Status != StatusNoop {
		t.Fatalf("status = %q, want %q", res.Status, StatusNoop)
	}
	if client.consumes != 0 || client.lookups != 0 {
		t.Fatal("unrelated link must not touch the network")
	}
}

func TestGuardSurvivesRelaunch(t *testing.T) {
	// App killed right after marking: a fresh Reconciler over the same
	// durable storage must still refuse the sticky handle, and a new
	// login's handle must go through.
	storage := newMemStorage()
	client := newFakeClient()

	r1 := newTestReconciler(t, client, storage)
	if err := r1.guard.MarkProcessing("h1"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	r2 := newTestReconciler(t, client, storage)
	res := r2.HandleLaunchURL(context.Background(), "fitbridge://auth/callback?session_handle=h1")
	if res.Status != StatusNoop {
		t.Fatalf("sticky handle status = %q, want %q", res.Status, StatusNoop)
	}
	if client.consumes != 0 {
		t.Fatal("blocked handle must not reach the network")
	}
	if r1.DeviceID() != r2.DeviceID() {
		t.Fatal("device id must be stable across relaunches")
	}

	res = r2.HandleLaunchURL(context.Background(), "fitbridge://auth/callback?session_handle=h2")
	if res.Status != StatusComplete {
		t.Fatalf("fresh handle status = %q, want %q", res.Status, StatusComplete)
	}
}

func TestOnForegroundRetryBound(t *testing.T) {
	client := newFakeClient() // nothing ever pending
	r := newTestReconciler(t, client, newMemStorage())

	res := r.OnForeground(context.Background())
	if res.Status != StatusPending {
		t.Fatalf("status = %q, want %q", res.Status, StatusPending)
	}
	if client.lookups != defaultMaxAttempts {
		t.Fatalf("lookup attempts = %d, want %d", client.lookups, defaultMaxAttempts)
	}
}

func TestOnForegroundFindsLateCallback(t *testing.T) {
	// The browser callback lands while the poller is mid-sequence.
	client := newFakeClient()
	r := newTestReconciler(t, client, newMemStorage())
	client.pending[r.DeviceID()] = "h1"
	client.lookupAfter = 3

	res := r.OnForeground(context.Background())
	if res.Status != StatusComplete {
		t.Fatalf("status = %q, want %q", res.Status, StatusComplete)
	}
	if client.lookups != 3 {
		t.Fatalf("lookup attempts = %d, want 3", client.lookups)
	}
}

func TestOnForegroundTransientErrorsCountAgainstBudget(t *testing.T) {
	client := newFakeClient()
	client.lookupErr = errors.New("timeout")
	r := newTestReconciler(t, client, newMemStorage())

	res := r.OnForeground(context.Background())
	if res.Status != StatusPending {
		t.Fatalf("status = %q, want %q", res.Status, StatusPending)
	}
	if client.lookups != defaultMaxAttempts {
		t.Fatalf("lookup attempts = %d, want %d", client.lookups, defaultMaxAttempts)
	}
}

func TestDeepLinkAndPollerRace(t *testing.T) {
	// Both trigger paths fire for the same login: exactly one materializes,
	// the other settles as a no-op, and the server sees one consume.
	client := newFakeClient()
	r := newTestReconciler(t, client, newMemStorage())
	client.pending[r.DeviceID()] = "h1"

	first := r.HandleLaunchURL(context.Background(), "fitbridge://auth/callback?session_handle=h1&user_id=1")
	second := r.OnForeground(context.Background())

	if first.Status != StatusComplete {
		t.Fatalf("deep link status = %q, want %q", first.Status, StatusComplete)
	}
	if second.Status != StatusNoop {
		t.Fatalf("poller status = %q, want %q", second.Status, StatusNoop)
	}
	if client.consumes != 1 {
		t.Fatalf("consume calls = %d, want 1", client.consumes)
	}
}

func TestNewForegroundAbandonsStaleSequence(t *testing.T) {
	client := newFakeClient()
	r := newTestReconciler(t, client, newMemStorage())

	// The stale sequence observes the bumped generation at its next
	// scheduling point and stops instead of stacking onto the new one.
	release := make(chan struct{})
	r.cfg.Sleep = func(ctx context.Context, _ time.Duration) error {
		<-release
		return nil
	}

	done := make(chan Result, 1)
	go func() {
		done <- r.OnForeground(context.Background())
	}()

	// Wait for the stale sequence to finish its first attempt and park.
	for {
		client.mu.Lock()
		n := client.lookups
		client.mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	r.generation.Add(1)
	close(release)

	res := <-done
	if res.Status != StatusPending {
		t.Fatalf("stale sequence status = %q, want %q", res.Status, StatusPending)
	}
	client.mu.Lock()
	n := client.lookups
	client.mu.Unlock()
	if n != 1 {
		t.Fatalf("stale sequence issued %d lookups, want 1", n)
	}
}

func TestExpiredAndUnknownOutcomes(t *testing.T) {
	client := newFakeClient()
	client.expired["h-old"] = true
	client.unknown["h-forged"] = true
	r := newTestReconciler(t, client, newMemStorage())

	res := r.HandleLaunchURL(context.Background(), "fitbridge://auth/callback?session_handle=h-old")
	if res.Status != StatusExpired {
		t.Fatalf("expired status = %q, want %q", res.Status, StatusExpired)
	}

	res = r.HandleLaunchURL(context.Background(), "fitbridge://auth/callback?session_handle=h-forged")
	if res.Status != StatusError {
		t.Fatalf("forged status = %q, want %q", res.Status, StatusError)
	}
}

func TestLogoutClearsGuard(t *testing.T) {
	client := newFakeClient()
	r := newTestReconciler(t, client, newMemStorage())

	link := "fitbridge://auth/callback?session_handle=h1"
	if res := r.HandleLaunchURL(context.Background(), link); res.Status != StatusComplete {
		t.Fatalf("status = %q, want %q", res.Status, StatusComplete)
	}
	if err := r.OnLogout(); err != nil {
		t.Fatalf("logout: %v", err)
	}

	// After logout the marker is gone; the same handle would be processed
	// again (the server still refuses it, which is the correct division of
	// responsibility).
	res := r.HandleLaunchURL(context.Background(), link)
	if res.Status != StatusNoop {
		t.Fatalf("status = %q, want %q", res.Status, StatusNoop)
	}
	if client.consumes != 2 {
		t.Fatalf("consume calls = %d, want 2", client.consumes)
	}
}
