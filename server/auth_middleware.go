package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClientID stores the browser context ID
	ContextKeyClientID ContextKey = "client_id"
)

// ClientIDMiddleware makes sure every request carries a browser context ID, assigning a
// new one on first contact.
func (s *Server) ClientIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := cookieValue(r, clientCookieName)
		if _, err := uuid.Parse(clientID); err != nil {
			clientID = uuid.NewString()
			setCookie(w, r, clientCookieName, clientID, clientCookieMaxAge)
		}

		ctx := context.WithValue(r.Context(), ContextKeyClientID, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIDFromContext returns the browser context ID set by ClientIDMiddleware
func clientIDFromContext(ctx context.Context) string {
	clientID, _ := ctx.Value(ContextKeyClientID).(string)
	return clientID
}
