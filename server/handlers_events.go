package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/study-assistant/authstate"
	"github.com/jrsteele09/study-assistant/sessions"
)

// AuthStateMessage is one server-sent event of the auth state stream
type AuthStateMessage struct {
	Status string            `json:"status"`
	User   *sessions.UserRef `json:"user,omitempty"`
	Seq    uint64            `json:"seq"`
}

// AuthEventsHandler streams the auth state of the browser context as server-sent events,
// one message per state change, starting with the current state.
func (s *Server) AuthEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		provider, ctx, stop := s.runProvider(r)
		defer stop()

		for {
			changed := provider.Changes()
			if err := writeAuthState(w, provider.Snapshot()); err != nil {
				return
			}
			flusher.Flush()

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}
}

func writeAuthState(w http.ResponseWriter, snap authstate.Snapshot) error {
	data, err := json.Marshal(AuthStateMessage{
		Status: snap.Status.String(),
		User:   snap.User,
		Seq:    snap.Seq,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: auth\ndata: %s\n\n", data)
	return err
}
