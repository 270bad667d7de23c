package server

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	pageIndex     = "index.html"
	pageLogin     = "login.html"
	pageSignup    = "signup.html"
	pageDashboard = "dashboard.html"
)

//go:embed templates/*.html
var templateFiles embed.FS

// parsePages parses every page into one set, each named after its file.
func parsePages() (*template.Template, error) {
	return template.ParseFS(templateFiles, "templates/*.html")
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
