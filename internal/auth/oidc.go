package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCClaims are the JWT claims extracted from a verified ID token.
type OIDCClaims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	TenantSlug string `json:"tenant_slug"`
	Role       string `json:"role"`
}

// OIDCAuthenticator validates OIDC ID tokens and extracts claims. Forge
// treats the ID token itself as the bearer credential on every request
// rather than issuing its own session token, so verification happens
// per-request against the provider's cached public keys.
type OIDCAuthenticator struct {
	Verifier *oidc.IDTokenVerifier
	// Endpoint is the provider's discovered authorization/token endpoints,
	// for constructing the oauth2.Config used by the login flow.
	Endpoint oauth2.Endpoint
}

// NewOIDCAuthenticator performs OIDC discovery against issuerURL and builds
// a verifier scoped to clientID. This makes a network call to fetch the
// provider's configuration and public keys.
func NewOIDCAuthenticator(ctx context.Context, issuerURL, clientID string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering OIDC provider %s: %w", issuerURL, err)
	}
	return &OIDCAuthenticator{
		Verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		Endpoint: provider.Endpoint(),
	}, nil
}

// Authenticate validates a bearer ID token and returns the extracted claims.
func (a *OIDCAuthenticator) Authenticate(ctx context.Context, bearerToken string) (*OIDCClaims, error) {
	token := strings.TrimPrefix(bearerToken, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty bearer token")
	}

	idToken, err := a.Verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extracting claims: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing sub claim")
	}
	if claims.TenantSlug == "" {
		return nil, fmt.Errorf("token missing tenant_slug claim")
	}
	if !IsValidRole(claims.Role) {
		claims.Role = RoleReadonly
	}
	return &claims, nil
}
