package users

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory user repository
type InMemoryRepo struct {
	lock     sync.RWMutex
	users    map[string]User
	emailIDs map[string]string // email to user id
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		users:    make(map[string]User),
		emailIDs: make(map[string]string),
	}
}

// Create stores a new user under a fresh ID. The email check and the insert happen under
// one lock so two callers can't both claim an address.
func (ur *InMemoryRepo) Create(_ context.Context, user *User) error {
	if user == nil || user.Email == "" {
		return fmt.Errorf("user email is required")
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIDs[user.Email]; ok {
		return apperrors.ErrUserExists
	}
	user.ID = uuid.New().String()
	ur.users[user.ID] = *user
	ur.emailIDs[user.Email] = user.ID
	return nil
}

func (ur *InMemoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIDs[email]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	user := ur.users[id]
	return &user, nil
}

func (ur *InMemoryRepo) GetByID(_ context.Context, id string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return &user, nil
}

func (ur *InMemoryRepo) SetVerified(_ context.Context, email string, verified bool) error {
	return ur.update(email, func(u *User) { u.Verified = verified })
}

func (ur *InMemoryRepo) SetLastLogin(_ context.Context, email string, at time.Time) error {
	return ur.update(email, func(u *User) { u.LastLogin = at })
}

func (ur *InMemoryRepo) update(email string, fn func(*User)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIDs[email]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	user := ur.users[id]
	fn(&user)
	ur.users[id] = user
	return nil
}
