package users

import (
	"context"
	"time"
)

// Repo stores user accounts. Implementations return copies so callers can't mutate
// stored state.
type Repo interface {
	// Create inserts a new user, failing with ErrUserExists when the email is taken
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	SetVerified(ctx context.Context, email string, verified bool) error
	SetLastLogin(ctx context.Context, email string, at time.Time) error
}
