package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/study-assistant/callback"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/server/authflowrepo"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// callbackWaitTimeout bounds how long the callback waits for its own SIGNED_IN event
const callbackWaitTimeout = 5 * time.Second

// OAuthStartHandler redirects to the external identity provider (GET /auth/oauth)
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oidcConfig, err := s.getOidcConfig(r.Context())
		if apperrors.Is(err, apperrors.ErrNotConfigured) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.Err(err).Msg("[OAuth] identity provider unavailable")
			redirectWithError(w, r, s.rules.SignIn, "External sign in is unavailable")
			return
		}

		state := generateRandomString(32)
		flow := &authflowrepo.AuthFlowState{
			CodeVerifier: generateRandomString(32),
			Nonce:        generateRandomString(16),
			ClientID:     clientIDFromContext(r.Context()),
			CreatedAt:    time.Now(),
		}
		if err := s.authFlows.Upsert(r.Context(), state, flow); err != nil {
			log.Err(err).Msg("[OAuth] failed to store auth flow")
			redirectWithError(w, r, s.rules.SignIn, "External sign in is unavailable")
			return
		}

		authURL := oidcConfig.OAuth2Config.AuthCodeURL(state,
			oidc.Nonce(flow.Nonce),
			oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(flow.CodeVerifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// AuthCallbackHandler completes a sign in (GET /auth/callback). With a state parameter the
// code comes from the identity provider, without one it is a sign-in or confirmation code.
// The browser is sent to the dashboard once the SIGNED_IN event for this browser context
// arrives.
func (s *Server) AuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if errorParam := r.FormValue("error"); errorParam != "" {
			log.Warn().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("[Callback] authorization failed")
			redirectWithError(w, r, s.rules.SignIn, "Sign in was not completed")
			return
		}

		code := r.FormValue("code")
		if code == "" {
			redirectWithError(w, r, s.rules.SignIn, "Missing sign in code")
			return
		}

		clientID := clientIDFromContext(r.Context())
		nav := newHTTPNavigator(w, r)
		listener := callback.Listen(s.auth, clientID, nav, s.rules.Dashboard)
		defer listener.Close()

		session, err := s.exchangeCallbackCode(r, clientID, code, r.FormValue("state"))
		if err != nil {
			log.Warn().Err(err).Msg("[Callback] code exchange failed")
			redirectWithError(w, r, s.rules.SignIn, callbackErrorMessage(err))
			return
		}
		s.setSessionCookies(w, r, session)

		ctx, cancel := context.WithTimeout(r.Context(), callbackWaitTimeout)
		defer cancel()
		if err := listener.Wait(ctx); err != nil {
			log.Warn().Err(err).Str("client_id", clientID).Msg("[Callback] no sign in event received")
			redirectWithError(w, r, s.rules.SignIn, "Sign in was not completed")
		}
	}
}

func (s *Server) exchangeCallbackCode(r *http.Request, clientID, code, state string) (*sessions.Session, error) {
	if state == "" {
		return s.auth.ExchangeCode(r.Context(), clientID, code)
	}

	flow, err := s.authFlows.Take(r.Context(), state)
	if err != nil {
		return nil, err
	}
	if flow.ClientID != clientID {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidState, "flow started in another browser context")
	}

	oidcConfig, err := s.getOidcConfig(r.Context())
	if err != nil {
		return nil, err
	}

	oauth2Token, err := oidcConfig.OAuth2Config.Exchange(
		r.Context(),
		code,
		oauth2.SetAuthURLParam("code_verifier", flow.CodeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "no ID token in response")
	}

	idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "ID token verification failed: %v", err)
	}

	var claims struct {
		Nonce         string `json:"nonce"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	if claims.Nonce != flow.Nonce {
		return nil, apperrors.ErrInvalidNonce
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, apperrors.Wrapf(apperrors.ErrUserNotVerified, "identity provider has not verified %s", claims.Email)
	}

	return s.auth.SignInWithIdentity(r.Context(), clientID, claims.Email, claims.Name)
}

func callbackErrorMessage(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrCodeExpired):
		return "This link has expired, please request a new one"
	case apperrors.Is(err, apperrors.ErrInvalidCode):
		return "This link is invalid or has already been used"
	case apperrors.Is(err, apperrors.ErrUserNotVerified):
		return "Your email address has not been verified"
	default:
		return "Sign in failed, please try again"
	}
}
