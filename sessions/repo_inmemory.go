package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session
	refresh  map[string]string // refresh token -> session ID
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Session),
		refresh:  make(map[string]string),
	}
}

// Upsert creates or updates a session
func (r *InMemoryRepo) Upsert(_ context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[session.ID]; ok && old.RefreshToken != session.RefreshToken {
		delete(r.refresh, old.RefreshToken)
	}

	// Store a copy to avoid external modifications
	r.sessions[session.ID] = *session
	if session.RefreshToken != "" {
		r.refresh[session.RefreshToken] = session.ID
	}
	return nil
}

// Rotate swaps in the session's new refresh token if the stored one still matches
func (r *InMemoryRepo) Rotate(_ context.Context, oldRefreshToken string, session *Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[session.ID]
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	if current.RefreshToken != oldRefreshToken {
		return apperrors.ErrInvalidRefreshToken
	}

	delete(r.refresh, oldRefreshToken)
	r.sessions[session.ID] = *session
	if session.RefreshToken != "" {
		r.refresh[session.RefreshToken] = session.ID
	}
	return nil
}

// Get retrieves a session by ID
func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return &session, nil
}

// GetByRefreshToken retrieves a session by its refresh token
func (r *InMemoryRepo) GetByRefreshToken(_ context.Context, refreshToken string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.refresh[refreshToken]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return &session, nil
}

// Delete removes a session
func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil // Already doesn't exist, no error
	}
	delete(r.refresh, session.RefreshToken)
	delete(r.sessions, sessionID)
	return nil
}

// DeleteExpired removes all sessions that have expired
func (r *InMemoryRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.refresh, session.RefreshToken)
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
