// Package gate decides, before any handler runs, whether a request may reach its route.
package gate

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/study-assistant/internal/config"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/rs/zerolog/log"
)

type Decision int

const (
	Pass Decision = iota
	RedirectSignIn
	RedirectDashboard
)

func (d Decision) String() string {
	switch d {
	case Pass:
		return "pass"
	case RedirectSignIn:
		return "redirect-sign-in"
	case RedirectDashboard:
		return "redirect-dashboard"
	}
	return "unknown"
}

// SessionLookup resolves an access token to its session.
type SessionLookup interface {
	GetSession(ctx context.Context, accessToken string) (*sessions.Session, error)
}

// Gate applies route rules using a fresh session lookup per request.
type Gate struct {
	lookup     SessionLookup
	rules      config.RouteRules
	cookieName string
}

func New(lookup SessionLookup, rules config.RouteRules, cookieName string) *Gate {
	return &Gate{
		lookup:     lookup,
		rules:      rules,
		cookieName: cookieName,
	}
}

// Decide classifies the path and checks for a session only when the path needs one.
// A failed lookup counts as no session.
func (g *Gate) Decide(ctx context.Context, path, accessToken string) Decision {
	protected := g.isProtected(path)
	authOnly := g.isAuthOnly(path)
	if !protected && !authOnly {
		return Pass
	}

	hasSession := g.hasSession(ctx, path, accessToken)
	switch {
	case protected && !hasSession:
		return RedirectSignIn
	case authOnly && hasSession:
		return RedirectDashboard
	}
	return Pass
}

// Middleware runs the gate in front of next. Passed requests reach next unmodified.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var accessToken string
		if cookie, err := r.Cookie(g.cookieName); err == nil {
			accessToken = cookie.Value
		}

		switch g.Decide(r.Context(), r.URL.Path, accessToken) {
		case RedirectSignIn:
			redirect(w, r, g.rules.SignIn)
		case RedirectDashboard:
			redirect(w, r, g.rules.Dashboard)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (g *Gate) hasSession(ctx context.Context, path, accessToken string) bool {
	if accessToken == "" {
		return false
	}
	session, err := g.lookup.GetSession(ctx, accessToken)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("[Gate] session lookup failed, treating as signed out")
		return false
	}
	return session != nil
}

func (g *Gate) isProtected(path string) bool {
	for _, prefix := range g.rules.ProtectedPrefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}

func (g *Gate) isAuthOnly(path string) bool {
	for _, p := range g.rules.AuthOnlyPaths {
		if path == p {
			return true
		}
	}
	return false
}

// redirect sends HTMX requests an HX-Redirect and everything else a 303.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
