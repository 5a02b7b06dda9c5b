// internal/service/auth/auth.go
package auth

import (
	"context"
	"database/sql"
	"fmt"

	"fitbridge-service/internal/domain/auth"
	xerrors "fitbridge-service/internal/pkg/errors"
	"fitbridge-service/internal/pkg/jwt"
	"fitbridge-service/internal/pkg/session"
	"fitbridge-service/internal/repository/postgres"

	"go.uber.org/zap"
)

type AuthService struct {
	authRepo       *postgres.AuthRepository
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	verifier       IdentityVerifier
	logger         *zap.Logger
}

func NewAuthService(
	authRepo *postgres.AuthRepository,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	rateLimiter *session.RateLimiter,
	verifier IdentityVerifier,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		authRepo:       authRepo,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		verifier:       verifier,
		logger:         logger,
	}
}

// VerifyProviderToken runs the opaque IdP verification and returns the
// established principal.
func (s *AuthService) VerifyProviderToken(ctx context.Context, provider, idToken string) (*auth.Principal, error) {
	principal, err := s.verifier.Verify(ctx, provider, idToken)
	if err != nil {
		return nil, fmt.Errorf("identity verification failed: %w", err)
	}
	return principal, nil
}

// EnsureIdentity finds the identity linked to the provider subject, creating
// identity and provider link on first sign-in.
func (s *AuthService) EnsureIdentity(ctx context.Context, principal *auth.Principal) (*auth.Identity, error) {
	identity, err := s.authRepo.FindIdentityByProvider(ctx, principal.Provider, principal.Subject)
	if err == nil {
		return identity, nil
	}
	if !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	identity = &auth.Identity{
		Email:    sql.NullString{String: principal.Email, Valid: principal.Email != ""},
		FullName: sql.NullString{String: principal.FullName, Valid: principal.FullName != ""},
		Status:   "active",
	}
	if err := s.authRepo.CreateIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	link := &auth.Provider{
		IdentityID:     identity.ID,
		Provider:       principal.Provider,
		ProviderUserID: principal.Subject,
		ProviderEmail:  sql.NullString{String: principal.Email, Valid: principal.Email != ""},
	}
	if err := s.authRepo.CreateProvider(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create provider link: %w", err)
	}

	s.logger.Info("identity created from provider sign-in",
		zap.Int64("identity_id", identity.ID),
		zap.String("provider", principal.Provider),
	)
	return identity, nil
}

// CheckLoginAllowed applies the callback rate limit.
func (s *AuthService) CheckLoginAllowed(ctx context.Context, ip, deviceID string) error {
	allowed, _, err := s.rateLimiter.CheckLoginAttempt(ctx, ip, deviceID)
	if err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return xerrors.ErrRateLimited
	}
	return nil
}

// ValidateToken verifies an app session token and checks session liveness.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessionManager.GetSession(ctx, claims.IdentityID, claims.ID); err != nil {
		return nil, xerrors.ErrSessionExpired
	}

	go func() {
		_ = s.sessionManager.TouchSession(context.Background(), claims.IdentityID, claims.ID)
	}()

	return claims, nil
}

// Logout revokes one session in both Redis and the database.
func (s *AuthService) Logout(ctx context.Context, identityID int64, jti string) error {
	if err := s.sessionManager.InvalidateSession(ctx, identityID, jti); err != nil {
		s.logger.Warn("failed to delete redis session", zap.Error(err))
	}

	dbSession, err := s.authRepo.FindSessionByToken(ctx, jti)
	if err == nil {
		if err := s.authRepo.InvalidateSession(ctx, dbSession.ID); err != nil {
			return fmt.Errorf("failed to invalidate session: %w", err)
		}
	}
	return nil
}

// LogoutAllSessions revokes every session for an identity.
func (s *AuthService) LogoutAllSessions(ctx context.Context, identityID int64) error {
	if err := s.sessionManager.InvalidateAllUserSessions(ctx, identityID); err != nil {
		s.logger.Warn("failed to delete redis sessions", zap.Error(err))
	}
	return s.authRepo.InvalidateAllUserSessions(ctx, identityID)
}

// GetActiveSessions lists the identity's live sessions.
func (s *AuthService) GetActiveSessions(ctx context.Context, identityID int64) ([]auth.SessionInfo, error) {
	sessions, err := s.authRepo.ListActiveSessions(ctx, identityID)
	if err != nil {
		return nil, err
	}

	infos := make([]auth.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, auth.SessionInfo{
			SessionID:      sess.ID,
			Provider:       sess.Provider,
			DeviceID:       sess.DeviceID.String,
			LoginAt:        sess.LoginAt,
			LastActivityAt: sess.LastActivityAt,
			ExpiresAt:      sess.ExpiresAt,
		})
	}
	return infos, nil
}

// GetMe returns the minimal user info for the authenticated identity.
func (s *AuthService) GetMe(ctx context.Context, identityID int64) (*auth.UserInfo, error) {
	identity, err := s.authRepo.FindIdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return &auth.UserInfo{
		IdentityID: identity.ID,
		Email:      identity.Email.String,
		FullName:   identity.FullName.String,
	}, nil
}
