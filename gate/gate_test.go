package gate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/study-assistant/gate"
	"github.com/jrsteele09/study-assistant/internal/config"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/stretchr/testify/require"
)

const (
	cookieName = "study_session"
	validToken = "valid-token"
)

type fakeLookup struct {
	err   error
	calls int
}

func (f *fakeLookup) GetSession(_ context.Context, accessToken string) (*sessions.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if accessToken != validToken {
		return nil, apperrors.ErrSessionNotFound
	}
	return &sessions.Session{ID: "sess-1", User: sessions.UserRef{ID: "user-1"}}, nil
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		token    string
		expected gate.Decision
	}{
		{name: "protected root without session", path: "/dashboard", expected: gate.RedirectSignIn},
		{name: "protected subpath without session", path: "/dashboard/notes", token: "stale", expected: gate.RedirectSignIn},
		{name: "protected subpath with session", path: "/dashboard/notes", token: validToken, expected: gate.Pass},
		{name: "sibling path is not protected", path: "/dashboardx", expected: gate.Pass},
		{name: "sign in with session", path: "/login", token: validToken, expected: gate.RedirectDashboard},
		{name: "sign up with session", path: "/signup", token: validToken, expected: gate.RedirectDashboard},
		{name: "sign in without session", path: "/login", expected: gate.Pass},
		{name: "public page with session", path: "/", token: validToken, expected: gate.Pass},
		{name: "api path", path: "/api/assistant", expected: gate.Pass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gate.New(&fakeLookup{}, config.DefaultRouteRules(), cookieName)
			require.Equal(t, tt.expected, g.Decide(context.Background(), tt.path, tt.token))
		})
	}
}

func TestDecideLookupFailureIsNoSession(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("store unavailable")}
	g := gate.New(lookup, config.DefaultRouteRules(), cookieName)

	require.Equal(t, gate.RedirectSignIn, g.Decide(context.Background(), "/dashboard", validToken))
	require.Equal(t, gate.Pass, g.Decide(context.Background(), "/login", validToken))
	require.Equal(t, 2, lookup.calls, "no caching between requests")
}

func TestDecideSkipsLookupForUngatedPaths(t *testing.T) {
	lookup := &fakeLookup{}
	g := gate.New(lookup, config.DefaultRouteRules(), cookieName)

	require.Equal(t, gate.Pass, g.Decide(context.Background(), "/static/app.css", validToken))
	require.Zero(t, lookup.calls)
}

func TestMiddleware(t *testing.T) {
	g := gate.New(&fakeLookup{}, config.DefaultRouteRules(), cookieName)

	var reached bool
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("redirects to sign in", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.False(t, reached)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("htmx redirect", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/signup", nil)
		req.Header.Set("HX-Request", "true")
		req.AddCookie(&http.Cookie{Name: cookieName, Value: validToken})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.False(t, reached)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "/dashboard", rec.Header().Get("HX-Redirect"))
	})

	t.Run("passes through", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/dashboard/notes", nil)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: validToken})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.True(t, reached)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCustomRules(t *testing.T) {
	rules := config.RouteRules{
		ProtectedPrefixes: []string{"/study/"},
		AuthOnlyPaths:     []string{"/welcome"},
		SignIn:            "/welcome",
		Dashboard:         "/study",
	}
	g := gate.New(&fakeLookup{}, rules, cookieName)

	require.Equal(t, gate.RedirectSignIn, g.Decide(context.Background(), "/study/quiz", ""))
	require.Equal(t, gate.RedirectDashboard, g.Decide(context.Background(), "/welcome", validToken))
}
