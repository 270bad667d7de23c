package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
)

var _ CodeRepo = (*InMemoryCodeRepo)(nil)

// InMemoryCodeRepo is a thread-safe in-memory CodeRepo
type InMemoryCodeRepo struct {
	mu    sync.Mutex
	codes map[string]SignInCode
}

func NewInMemoryCodeRepo() *InMemoryCodeRepo {
	return &InMemoryCodeRepo{codes: make(map[string]SignInCode)}
}

func (r *InMemoryCodeRepo) Put(_ context.Context, code SignInCode) error {
	if code.Hash == "" {
		return fmt.Errorf("code hash is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.Hash] = code
	return nil
}

func (r *InMemoryCodeRepo) Take(_ context.Context, hash string) (*SignInCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[hash]
	if !ok {
		return nil, apperrors.ErrInvalidCode
	}
	delete(r.codes, hash)
	return &code, nil
}

func (r *InMemoryCodeRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for hash, code := range r.codes {
		if !now.Before(code.ExpiresAt) {
			delete(r.codes, hash)
			removed++
		}
	}
	return removed, nil
}
