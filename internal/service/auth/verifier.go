// internal/service/auth/verifier.go
package auth

import (
	"context"
	"fmt"

	"fitbridge-service/internal/domain/auth"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityVerifier is the opaque "verify token, get principal" boundary.
// Real deployments wire a Google/Apple verifier behind it; this service
// never inspects provider tokens itself.
type IdentityVerifier interface {
	Verify(ctx context.Context, provider, idToken string) (*auth.Principal, error)
}

// UnverifiedClaimsVerifier decodes the ID token's claims without checking
// its signature. Development and test wiring only; enabled by
// IDP_VERIFIER=unverified and never in production config.
type UnverifiedClaimsVerifier struct{}

type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

func (UnverifiedClaimsVerifier) Verify(_ context.Context, provider, idToken string) (*auth.Principal, error) {
	var claims idTokenClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, &claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("id token has no subject")
	}

	return &auth.Principal{
		Provider: provider,
		Subject:  claims.Subject,
		Email:    claims.Email,
		FullName: claims.Name,
	}, nil
}
