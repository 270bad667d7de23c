package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/study-assistant/authstate"
	"github.com/jrsteele09/study-assistant/guard"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DashboardPageData is the template model for the dashboard
type DashboardPageData struct {
	AppName string
	User    sessions.UserRef
	Page    string
	Loading bool
}

// runProvider starts an auth state provider for the request's browser context. The returned
// stop function cancels it and waits for it to unsubscribe.
func (s *Server) runProvider(r *http.Request) (*authstate.Provider, context.Context, func()) {
	provider := authstate.New(s.auth, clientIDFromContext(r.Context()), cookieValue(r, sessionCookieName))

	ctx, cancel := context.WithCancel(r.Context())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return provider.Run(gctx)
	})

	return provider, ctx, func() {
		cancel()
		if err := g.Wait(); err != nil {
			log.Err(err).Msg("Auth state provider stopped with error")
		}
	}
}

// DashboardHandler renders protected pages behind the client guard. The edge gate has
// already checked the session; the guard re-checks it from the auth state of this browser
// context.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ctx, stop := s.runProvider(r)
		defer stop()

		if _, err := provider.WaitResolved(ctx); err != nil {
			log.Debug().Err(err).Msg("[Dashboard] auth state not resolved")
		}

		data := DashboardPageData{
			AppName: s.config.GetAppName(),
			Page:    r.PathValue("page"),
		}
		nav := newHTTPNavigator(w, r)
		guard.New(provider, nav, s.rules.SignIn).Render(
			func() {
				if user := provider.Snapshot().User; user != nil {
					data.User = *user
				}
				s.renderPage(w, pageDashboard, data)
			},
			func() {
				if nav.navigated() != "" {
					return
				}
				data.Loading = true
				s.renderPage(w, pageDashboard, data)
			},
		)
	}
}
