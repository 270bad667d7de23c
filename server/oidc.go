package server

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"golang.org/x/oauth2"
)

type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// getOidcConfig discovers the identity provider on first successful use.
func (s *Server) getOidcConfig(ctx context.Context) (OidcConfig, error) {
	if !s.config.OIDCEnabled() {
		return OidcConfig{}, apperrors.ErrNotConfigured
	}

	s.oidcLock.Lock()
	defer s.oidcLock.Unlock()
	if s.oidcConfig.OidcProvider != nil {
		return s.oidcConfig, nil
	}

	provider, err := oidc.NewProvider(ctx, s.config.GetOIDCIssuer())
	if err != nil {
		return OidcConfig{}, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	s.oidcConfig = OidcConfig{
		OidcProvider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     s.config.GetOIDCClientID(),
			ClientSecret: s.config.GetOIDCClientSecret(),
			Endpoint:     provider.Endpoint(),
			RedirectURL:  s.config.GetBaseURL() + RouteCallback,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{
			ClientID: s.config.GetOIDCClientID(),
		}),
	}
	return s.oidcConfig, nil
}
