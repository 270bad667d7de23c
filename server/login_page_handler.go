package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/rs/zerolog/log"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName     string
	Error       string
	Message     string
	Email       string // Preserve email on error
	OIDCEnabled bool
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		data := LoginPageData{
			AppName:     s.config.GetAppName(),
			Error:       query.Get("error"),
			Message:     query.Get("message"),
			Email:       query.Get("email"),
			OIDCEnabled: s.config.OIDCEnabled(),
		}
		s.renderPage(w, pageLogin, data)
	}
}

// LoginSubmissionHandler signs in with email and password (POST /login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := r.FormValue("email")
		password := r.FormValue("password")
		if email == "" || password == "" {
			redirectWithErrorAndEmail(w, r, s.rules.SignIn, "Email and password are required", email)
			return
		}

		session, err := s.auth.SignInWithPassword(r.Context(), clientIDFromContext(r.Context()), email, password)
		switch {
		case err == nil:
		case apperrors.Is(err, apperrors.ErrInvalidCredentials), apperrors.Is(err, apperrors.ErrInvalidEmail):
			redirectWithErrorAndEmail(w, r, s.rules.SignIn, "Invalid email or password", email)
			return
		case apperrors.Is(err, apperrors.ErrUserNotVerified):
			redirectWithErrorAndEmail(w, r, s.rules.SignIn, "Please confirm your email address first", email)
			return
		default:
			log.Err(err).Msg("[Login] sign in failed")
			redirectWithErrorAndEmail(w, r, s.rules.SignIn, "Sign in failed, please try again", email)
			return
		}

		s.setSessionCookies(w, r, session)
		redirectSuccess(w, r, s.rules.Dashboard)
	}
}

// MagicLinkHandler emails a one-time sign-in link (POST /auth/magic-link)
func (s *Server) MagicLinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := r.FormValue("email")
		code, err := s.auth.IssueSignInCode(r.Context(), email)
		switch {
		case err == nil:
			s.sendSignInLink(r.Context(), email, code)
		case apperrors.Is(err, apperrors.ErrInvalidEmail):
			redirectWithErrorAndEmail(w, r, s.rules.SignIn, "Please enter a valid email address", email)
			return
		case apperrors.Is(err, apperrors.ErrUserNotFound):
			// Same answer as success so addresses can't be probed
		default:
			log.Err(err).Msg("[MagicLink] failed to issue sign-in code")
			redirectWithErrorAndEmail(w, r, s.rules.SignIn, "Could not send a sign-in link, please try again", email)
			return
		}

		redirectWithMessage(w, r, s.rules.SignIn, "Check your email for a sign-in link")
	}
}

// RefreshHandler rotates the session tokens held in the cookies (POST /auth/refresh)
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := cookieValue(r, refreshCookieName)
		if refreshToken == "" {
			writeJSONError(w, "no session", http.StatusUnauthorized)
			return
		}

		session, err := s.auth.RefreshSession(r.Context(), clientIDFromContext(r.Context()), refreshToken)
		if err != nil {
			log.Debug().Err(err).Msg("[Refresh] refresh rejected")
			s.clearSessionCookies(w, r)
			writeJSONError(w, "session expired", http.StatusUnauthorized)
			return
		}

		s.setSessionCookies(w, r, session)
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutHandler signs out the browser context (POST /logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.auth.SignOut(r.Context(), clientIDFromContext(r.Context()), cookieValue(r, sessionCookieName))
		if err != nil {
			log.Err(err).Msg("[Logout] sign out failed")
		}
		s.clearSessionCookies(w, r)
		redirectSuccess(w, r, s.rules.SignIn)
	}
}
