package sessions

import (
	"context"
	"time"
)

// UserRef identifies the signed in user a session belongs to.
type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is an authenticated session issued by the auth service.
// The access token is short-lived; the refresh token keeps the session alive until ExpiresAt.
type Session struct {
	ID              string    `json:"id"`
	User            UserRef   `json:"user"`
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// Expired reports whether the session itself (not just its access token) has ended.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Repo defines the interface for session storage operations.
type Repo interface {
	// Upsert creates or updates a session, replacing any previous refresh token index
	Upsert(ctx context.Context, session *Session) error

	// Rotate replaces the session only if its stored refresh token is still oldRefreshToken,
	// returning ErrInvalidRefreshToken when another rotation got there first
	Rotate(ctx context.Context, oldRefreshToken string, session *Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, sessionID string) (*Session, error)

	// GetByRefreshToken retrieves a session by its current refresh token
	GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired removes sessions that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
