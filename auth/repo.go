package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/jrsteele09/study-assistant/users"
)

// SignInCode is a one-time code that signs the holder in as Email (magic link or email
// confirmation). Codes are stored by hash.
type SignInCode struct {
	Hash      string
	Email     string
	ExpiresAt time.Time
}

// CodeRepo stores one-time sign-in codes.
type CodeRepo interface {
	Put(ctx context.Context, code SignInCode) error
	// Take removes and returns the code so it can only be used once
	Take(ctx context.Context, hash string) (*SignInCode, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users    users.Repo    // Repository for user data
	Sessions sessions.Repo // Repository for session data
	Codes    CodeRepo      // Repository for one-time sign-in codes
}
