// internal/service/handoff/handoff.go
package handoff

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"fitbridge-service/internal/domain/auth"
	"fitbridge-service/internal/domain/handoff"
	xerrors "fitbridge-service/internal/pkg/errors"
	"fitbridge-service/internal/pkg/session"
	ws "fitbridge-service/internal/websocket"

	"go.uber.org/zap"
)

// Store is the pending-session persistence contract. Consume must be
// linearizable per session handle: under concurrent calls exactly one
// succeeds and the rest see ErrAlreadyConsumed.
type Store interface {
	Create(ctx context.Context, ps *handoff.PendingSession) error
	Lookup(ctx context.Context, deviceID string) (*handoff.PendingSession, error)
	Consume(ctx context.Context, sessionHandle string) (*handoff.PendingSession, error)
	DeleteExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Directory is the slice of the auth repository the materializer needs.
type Directory interface {
	FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error)
	CreateSession(ctx context.Context, s *auth.Session) error
	UpdateIdentityLastLogin(ctx context.Context, id int64) error
}

// TokenIssuer signs app session access tokens.
type TokenIssuer interface {
	GenerateAccessToken(identityID int64, deviceID, provider string) (token, jti string, err error)
}

// SessionCache stores the issued session where the auth middleware reads it.
type SessionCache interface {
	CreateSession(ctx context.Context, s *session.SessionData) error
}

// Publisher pushes best-effort handoff events to connected app shells.
type Publisher interface {
	Publish(event ws.Event)
}

type Config struct {
	TTL       time.Duration // pending record lifetime, minutes not hours
	Retention time.Duration // how long consumed/expired rows are kept for GC
	TokenTTL  time.Duration // issued app session lifetime
}

// Service is the server side of the handoff protocol: it stages pending
// sessions after identity verification and materializes them into normal
// app sessions exactly once.
type Service struct {
	store    Store
	dir      Directory
	tokens   TokenIssuer
	sessions SessionCache
	events   Publisher
	cfg      Config
	logger   *zap.Logger
}

func NewService(
	store Store,
	dir Directory,
	tokens TokenIssuer,
	sessions SessionCache,
	events Publisher,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 720 * time.Hour
	}
	return &Service{
		store:    store,
		dir:      dir,
		tokens:   tokens,
		sessions: sessions,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}

// Create stages a pending session for a device after the identity provider
// verified the user in the browser. Any earlier live record for the device
// is superseded inside the store.
func (s *Service) Create(ctx context.Context, deviceID string, identityID int64, provider string) (*handoff.PendingSession, error) {
	if deviceID == "" {
		return nil, xerrors.ErrInvalidInput
	}

	ps := &handoff.PendingSession{
		DeviceID:      deviceID,
		IdentityID:    identityID,
		SessionHandle: generateHandle(),
		Provider:      provider,
		ExpiresAt:     time.Now().Add(s.cfg.TTL),
	}

	if err := s.store.Create(ctx, ps); err != nil {
		return nil, fmt.Errorf("failed to create pending session: %w", err)
	}

	s.logger.Info("pending session staged",
		zap.String("device_id", deviceID),
		zap.Int64("identity_id", identityID),
	)
	return ps, nil
}

// Lookup answers the poller's "is there a login waiting for me". Nothing
// pending is a normal found:false response, never an error.
func (s *Service) Lookup(ctx context.Context, deviceID string) (*handoff.LookupResponse, error) {
	ps, err := s.store.Lookup(ctx, deviceID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return &handoff.LookupResponse{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup pending session: %w", err)
	}

	return &handoff.LookupResponse{
		Found:         true,
		SessionHandle: ps.SessionHandle,
		IdentityID:    ps.IdentityID,
	}, nil
}

// Materialize consumes a pending session and issues the app's normal
// authenticated session. already_consumed is a success-shaped no-op: the
// other trigger path (deep link vs poller) finished the handoff first.
func (s *Service) Materialize(ctx context.Context, sessionHandle, ip, userAgent string) (*handoff.ConsumeResponse, error) {
	ps, err := s.store.Consume(ctx, sessionHandle)
	switch {
	case err == nil:
		// fallthrough to issuance
	case xerrors.Is(err, xerrors.ErrAlreadyConsumed):
		s.logger.Debug("pending session already consumed", zap.String("handle", sessionHandle))
		return &handoff.ConsumeResponse{Status: handoff.StatusAlreadyConsumed}, nil
	case xerrors.Is(err, xerrors.ErrHandoffExpired):
		return &handoff.ConsumeResponse{Status: handoff.StatusExpired}, nil
	case xerrors.Is(err, xerrors.ErrNotFound):
		// A handle that never existed implies a corrupted or forged deep link.
		s.logger.Error("consume of unknown session handle", zap.String("handle", sessionHandle))
		return &handoff.ConsumeResponse{Status: handoff.StatusNotFound}, nil
	default:
		return nil, fmt.Errorf("failed to consume pending session: %w", err)
	}

	appSession, err := s.issueAppSession(ctx, ps, ip, userAgent)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Publish(ws.Event{
			Type:       "handoff_complete",
			DeviceID:   ps.DeviceID,
			IdentityID: ps.IdentityID,
		})
	}

	return &handoff.ConsumeResponse{Status: handoff.StatusOK, AppSession: appSession}, nil
}

// PurgeExpired garbage-collects pending rows past their retention window.
func (s *Service) PurgeExpired(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx, s.cfg.Retention)
	if err != nil {
		s.logger.Error("pending session purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("purged expired pending sessions", zap.Int64("rows", n))
	}
}

func (s *Service) issueAppSession(ctx context.Context, ps *handoff.PendingSession, ip, userAgent string) (*handoff.AppSession, error) {
	identity, err := s.dir.FindIdentityByID(ctx, ps.IdentityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity %d: %w", ps.IdentityID, err)
	}

	token, jti, err := s.tokens.GenerateAccessToken(identity.ID, ps.DeviceID, ps.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	expiresAt := time.Now().Add(s.cfg.TokenTTL)

	dbSession := &auth.Session{
		IdentityID:   identity.ID,
		SessionToken: jti,
		Provider:     ps.Provider,
		DeviceID:     sql.NullString{String: ps.DeviceID, Valid: true},
		IPAddress:    sql.NullString{String: ip, Valid: ip != ""},
		UserAgent:    sql.NullString{String: userAgent, Valid: userAgent != ""},
		ExpiresAt:    expiresAt,
	}
	if err := s.dir.CreateSession(ctx, dbSession); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sessionData := &session.SessionData{
		JTI:            jti,
		IdentityID:     identity.ID,
		SessionID:      dbSession.ID,
		Email:          identity.Email.String,
		DeviceID:       ps.DeviceID,
		IPAddress:      ip,
		UserAgent:      userAgent,
		Provider:       ps.Provider,
		LoginAt:        time.Now(),
		LastActivityAt: time.Now(),
		ExpiresAt:      expiresAt,
	}
	if err := s.sessions.CreateSession(ctx, sessionData); err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	if err := s.dir.UpdateIdentityLastLogin(ctx, identity.ID); err != nil {
		s.logger.Error("failed to update last login", zap.Error(err))
	}

	s.logger.Info("handoff materialized",
		zap.Int64("identity_id", identity.ID),
		zap.String("device_id", ps.DeviceID),
	)

	return &handoff.AppSession{
		AccessToken: token,
		SessionID:   jti,
		IdentityID:  identity.ID,
		DeviceID:    ps.DeviceID,
		ExpiresAt:   expiresAt,
	}, nil
}

func generateHandle() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
