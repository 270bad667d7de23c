package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

// LinkSender delivers sign-in and confirmation links to a user.
type LinkSender interface {
	SendSignInLink(ctx context.Context, email, link string) error
}

// logLinkSender writes links to the log. Links are only logged in DEV.
type logLinkSender struct {
	env string
}

func (l logLinkSender) SendSignInLink(_ context.Context, email, link string) error {
	if l.env != "DEV" {
		log.Warn().Str("email", email).Msg("No email delivery configured, sign-in link not sent")
		return nil
	}
	log.Info().Str("email", email).Str("link", link).Msg("Sign-in link")
	return nil
}

// sendSignInLink builds the callback link for code and hands it to the link sender
func (s *Server) sendSignInLink(ctx context.Context, email, code string) {
	link := s.config.GetBaseURL() + RouteCallback + "?code=" + url.QueryEscape(code)
	if err := s.links.SendSignInLink(ctx, email, link); err != nil {
		log.Err(err).Str("email", email).Msg("Failed to send sign-in link")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
