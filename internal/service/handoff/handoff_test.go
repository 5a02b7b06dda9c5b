package handoff

import (
	"context"
	"sync"
	"testing"
	"time"

	"fitbridge-service/internal/domain/auth"
	"fitbridge-service/internal/domain/handoff"
	xerrors "fitbridge-service/internal/pkg/errors"
	"fitbridge-service/internal/pkg/session"
	ws "fitbridge-service/internal/websocket"

	"go.uber.org/zap"
)

// memStore is an in-memory Store with the same consume semantics as the
// Postgres repository: a single guarded conditional update per handle.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	records []*handoff.PendingSession
}

func (s *memStore) Create(_ context.Context, ps *handoff.PendingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, r := range s.records {
		if r.DeviceID == ps.DeviceID && !r.ConsumedAt.Valid && !r.SupersededAt.Valid {
			r.SupersededAt.Time = now
			r.SupersededAt.Valid = true
		}
	}

	s.nextID++
	ps.ID = s.nextID
	ps.CreatedAt = now
	cp := *ps
	s.records = append(s.records, &cp)
	return nil
}

func (s *memStore) Lookup(_ context.Context, deviceID string) (*handoff.PendingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var newest *handoff.PendingSession
	for _, r := range s.records {
		if r.DeviceID == deviceID && r.Live(now) {
			if newest == nil || r.CreatedAt.After(newest.CreatedAt) {
				newest = r
			}
		}
	}
	if newest == nil {
		return nil, xerrors.ErrNotFound
	}
	cp := *newest
	return &cp, nil
}

func (s *memStore) Consume(_ context.Context, sessionHandle string) (*handoff.PendingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, r := range s.records {
		if r.SessionHandle != sessionHandle {
			continue
		}
		if r.ConsumedAt.Valid {
			return nil, xerrors.ErrAlreadyConsumed
		}
		if r.SupersededAt.Valid || !now.Before(r.ExpiresAt) {
			return nil, xerrors.ErrHandoffExpired
		}
		r.ConsumedAt.Time = now
		r.ConsumedAt.Valid = true
		cp := *r
		return &cp, nil
	}
	return nil, xerrors.ErrNotFound
}

func (s *memStore) DeleteExpired(_ context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.ExpiresAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

// expire force-ages the record with the given handle past its TTL.
func (s *memStore) expire(sessionHandle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SessionHandle == sessionHandle {
			r.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

type memDirectory struct {
	mu         sync.Mutex
	identities map[int64]*auth.Identity
	sessions   []*auth.Session
	lastLogins map[int64]int
}

func newMemDirectory(ids ...int64) *memDirectory {
	d := &memDirectory{
		identities: make(map[int64]*auth.Identity),
		lastLogins: make(map[int64]int),
	}
	for _, id := range ids {
		d.identities[id] = &auth.Identity{ID: id, Status: "active"}
	}
	return d
}

func (d *memDirectory) FindIdentityByID(_ context.Context, id int64) (*auth.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ident, ok := d.identities[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return ident, nil
}

func (d *memDirectory) CreateSession(_ context.Context, s *auth.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s.ID = int64(len(d.sessions) + 1)
	d.sessions = append(d.sessions, s)
	return nil
}

func (d *memDirectory) UpdateIdentityLastLogin(_ context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastLogins[id]++
	return nil
}

type stubTokens struct{}

func (stubTokens) GenerateAccessToken(identityID int64, deviceID, provider string) (string, string, error) {
	return "token", "jti-1", nil
}

type memCache struct {
	mu       sync.Mutex
	sessions []*session.SessionData
}

func (c *memCache) CreateSession(_ context.Context, s *session.SessionData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = append(c.sessions, s)
	return nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (p *memPublisher) Publish(e ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func newTestService(t *testing.T) (*Service, *memStore, *memPublisher) {
	t.Helper()
	store := &memStore{}
	pub := &memPublisher{}
	svc := NewService(
		store,
		newMemDirectory(1, 2),
		stubTokens{},
		&memCache{},
		pub,
		Config{TTL: 5 * time.Minute},
		zap.NewNop(),
	)
	return svc, store, pub
}

func TestCreateSupersedesPriorRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "device-1", 1, "google")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.Create(ctx, "device-1", 1, "google")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.SessionHandle == second.SessionHandle {
		t.Fatal("expected distinct session handles")
	}

	lookup, err := svc.Lookup(ctx, "device-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !lookup.Found {
		t.Fatal("expected a live pending session")
	}
	if lookup.SessionHandle != second.SessionHandle {
		t.Fatalf("lookup returned %q, want the superseding handle %q", lookup.SessionHandle, second.SessionHandle)
	}

	// The superseded handle is inert even though its TTL has not elapsed.
	resp, err := svc.Materialize(ctx, first.SessionHandle, "", "")
	if err != nil {
		t.Fatalf("materialize superseded: %v", err)
	}
	if resp.Status != handoff.StatusExpired {
		t.Fatalf("superseded consume status = %q, want %q", resp.Status, handoff.StatusExpired)
	}
}

func TestLookupNothingPending(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, err := svc.Lookup(context.Background(), "device-unknown")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if resp.Found {
		t.Fatal("expected found=false for a device with no pending session")
	}
}

func TestMaterializeIssuesAppSessionOnce(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	ps, err := svc.Create(ctx, "device-1", 1, "google")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := svc.Materialize(ctx, ps.SessionHandle, "10.0.0.1", "ua")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if resp.Status != handoff.StatusOK {
		t.Fatalf("status = %q, want %q", resp.Status, handoff.StatusOK)
	}
	if resp.AppSession == nil || resp.AppSession.AccessToken == "" {
		t.Fatal("expected an app session with an access token")
	}
	if resp.AppSession.IdentityID != 1 || resp.AppSession.DeviceID != "device-1" {
		t.Fatalf("app session bound to %d/%q, want 1/device-1", resp.AppSession.IdentityID, resp.AppSession.DeviceID)
	}

	// The losing path sees already_consumed, never a second session.
	again, err := svc.Materialize(ctx, ps.SessionHandle, "10.0.0.1", "ua")
	if err != nil {
		t.Fatalf("second materialize: %v", err)
	}
	if again.Status != handoff.StatusAlreadyConsumed {
		t.Fatalf("second status = %q, want %q", again.Status, handoff.StatusAlreadyConsumed)
	}
	if again.AppSession != nil {
		t.Fatal("already_consumed must not carry an app session")
	}

	if len(pub.events) != 1 || pub.events[0].Type != "handoff_complete" {
		t.Fatalf("expected one handoff_complete event, got %v", pub.events)
	}
}

func TestMaterializeConcurrentSingleWinner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ps, err := svc.Create(ctx, "device-1", 1, "google")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const callers = 16
	results := make(chan handoff.ConsumeStatus, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Materialize(ctx, ps.SessionHandle, "", "")
			if err != nil {
				t.Errorf("materialize: %v", err)
				return
			}
			results <- resp.Status
		}()
	}
	wg.Wait()
	close(results)

	var ok, consumed int
	for status := range results {
		switch status {
		case handoff.StatusOK:
			ok++
		case handoff.StatusAlreadyConsumed:
			consumed++
		default:
			t.Fatalf("unexpected status %q", status)
		}
	}
	if ok != 1 {
		t.Fatalf("got %d winners, want exactly 1", ok)
	}
	if consumed != callers-1 {
		t.Fatalf("got %d already_consumed, want %d", consumed, callers-1)
	}
}

func TestExpiredRecordBehavior(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	ps, err := svc.Create(ctx, "device-1", 1, "google")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.expire(ps.SessionHandle)

	lookup, err := svc.Lookup(ctx, "device-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if lookup.Found {
		t.Fatal("expired record must be absent from lookup")
	}

	resp, err := svc.Materialize(ctx, ps.SessionHandle, "", "")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if resp.Status != handoff.StatusExpired {
		t.Fatalf("status = %q, want %q", resp.Status, handoff.StatusExpired)
	}

	// A later login for the same device gets a fresh, independent record.
	fresh, err := svc.Create(ctx, "device-1", 1, "google")
	if err != nil {
		t.Fatalf("fresh create: %v", err)
	}
	resp, err = svc.Materialize(ctx, fresh.SessionHandle, "", "")
	if err != nil {
		t.Fatalf("fresh materialize: %v", err)
	}
	if resp.Status != handoff.StatusOK {
		t.Fatalf("fresh status = %q, want %q", resp.Status, handoff.StatusOK)
	}
}

func TestMaterializeUnknownHandle(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, err := svc.Materialize(context.Background(), "no-such-handle", "", "")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if resp.Status != handoff.StatusNotFound {
		t.Fatalf("status = %q, want %q", resp.Status, handoff.StatusNotFound)
	}
}

func TestCreateRejectsEmptyDevice(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Create(context.Background(), "", 1, "google"); !xerrors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPurgeExpiredRetention(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	old, err := svc.Create(ctx, "device-old", 1, "google")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, "device-live", 2, "google"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Age the first record far past TTL plus the default retention window.
	store.mu.Lock()
	for _, r := range store.records {
		if r.SessionHandle == old.SessionHandle {
			r.ExpiresAt = time.Now().Add(-48 * time.Hour)
		}
	}
	store.mu.Unlock()

	svc.PurgeExpired(ctx)

	store.mu.Lock()
	remaining := len(store.records)
	store.mu.Unlock()
	if remaining != 1 {
		t.Fatalf("got %d records after purge, want 1", remaining)
	}
}
