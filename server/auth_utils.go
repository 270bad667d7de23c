package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/study-assistant/sessions"
)

const (
	// sessionCookieName holds the access token of the signed in browser context
	sessionCookieName = "study_session"
	// refreshCookieName holds the refresh token used by /auth/refresh
	refreshCookieName = "study_refresh"
	// clientCookieName identifies the browser context that auth events are scoped to
	clientCookieName = "study_client"

	clientCookieMaxAge = 365 * 24 * 3600
)

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// generateCodeChallenge creates a PKCE code challenge from a verifier
func generateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func setCookie(w http.ResponseWriter, r *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// setSessionCookies stores the session tokens. The access token cookie lives as long as
// the session so the gate sees an expired token (and refresh can still run) rather than
// no cookie at all.
func (s *Server) setSessionCookies(w http.ResponseWriter, r *http.Request, session *sessions.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	setCookie(w, r, sessionCookieName, session.AccessToken, maxAge)
	setCookie(w, r, refreshCookieName, session.RefreshToken, maxAge)
}

func (s *Server) clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	setCookie(w, r, sessionCookieName, "", -1)
	setCookie(w, r, refreshCookieName, "", -1)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	redirectWithQuery(w, r, path, "error", errorMsg)
}

// redirectWithErrorAndEmail helper for htmx-aware error redirects that preserves email
func redirectWithErrorAndEmail(w http.ResponseWriter, r *http.Request, path, errorMsg, email string) {
	query := url.Values{"error": {errorMsg}}
	if email != "" {
		query.Set("email", email)
	}
	redirectSuccess(w, r, path+"?"+query.Encode())
}

// redirectWithMessage redirects with an informational message for the target page
func redirectWithMessage(w http.ResponseWriter, r *http.Request, path, message string) {
	redirectWithQuery(w, r, path, "message", message)
}

func redirectWithQuery(w http.ResponseWriter, r *http.Request, path, key, value string) {
	redirectSuccess(w, r, path+"?"+key+"="+url.QueryEscape(value))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
