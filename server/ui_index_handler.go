package server

import (
	"net/http"
)

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// GET / also matches every unregistered path
		if r.URL.Path != RouteIndex {
			http.NotFound(w, r)
			return
		}

		data := map[string]interface{}{
			"AppName":   s.config.GetAppName(),
			"SignIn":    s.rules.SignIn,
			"Dashboard": s.rules.Dashboard,
		}
		s.renderPage(w, pageIndex, data)
	}
}
