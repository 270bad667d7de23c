package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

// RedisRepo stores sessions as JSON documents with a TTL matching the session expiry.
// Keys:
//
//	<prefix>:sess:<sessionID>      session JSON
//	<prefix>:refresh:<token>       session ID
type RedisRepo struct {
	client  redis.UniversalClient
	prefix  string
	nowTime func() time.Time
}

// RedisOption configures a RedisRepo.
type RedisOption func(*RedisRepo)

// WithRedisNowFunc sets the clock used to derive key TTLs from session expiry.
func WithRedisNowFunc(nowFunc func() time.Time) RedisOption {
	return func(r *RedisRepo) {
		r.nowTime = nowFunc
	}
}

// NewRedisRepo creates a Redis backed session repository
func NewRedisRepo(client redis.UniversalClient, prefix string, options ...RedisOption) *RedisRepo {
	if prefix == "" {
		prefix = "study"
	}
	r := &RedisRepo{client: client, prefix: prefix, nowTime: time.Now}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *RedisRepo) sessionKey(sessionID string) string {
	return r.prefix + ":sess:" + sessionID
}

func (r *RedisRepo) refreshKey(token string) string {
	return r.prefix + ":refresh:" + token
}

func (r *RedisRepo) encode(session *Session) ([]byte, time.Duration, error) {
	if session == nil || session.ID == "" {
		return nil, 0, fmt.Errorf("session ID is required")
	}
	ttl := session.ExpiresAt.Sub(r.nowTime())
	if ttl <= 0 {
		return nil, 0, apperrors.ErrSessionExpired
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal session: %w", err)
	}
	return data, ttl, nil
}

// Upsert writes the session and its refresh token index. The session key is watched so a
// concurrent write between the read of the old refresh token and the update aborts it.
func (r *RedisRepo) Upsert(ctx context.Context, session *Session) error {
	data, ttl, err := r.encode(session)
	if err != nil {
		return fmt.Errorf("[RedisRepo Upsert] %w", err)
	}

	key := r.sessionKey(session.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := decodeSession(tx.Get(ctx, key))
		if err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != nil && old.RefreshToken != "" && old.RefreshToken != session.RefreshToken {
				pipe.Del(ctx, r.refreshKey(old.RefreshToken))
			}
			r.write(ctx, pipe, session, data, ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("[RedisRepo Upsert] %w", err)
	}
	return nil
}

// Rotate replaces the session only while its stored refresh token is oldRefreshToken.
// A concurrent rotation either changes the token first or aborts the transaction; both
// surface as ErrInvalidRefreshToken.
func (r *RedisRepo) Rotate(ctx context.Context, oldRefreshToken string, session *Session) error {
	data, ttl, err := r.encode(session)
	if err != nil {
		return fmt.Errorf("[RedisRepo Rotate] %w", err)
	}

	key := r.sessionKey(session.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := decodeSession(tx.Get(ctx, key))
		if err != nil {
			return err
		}
		if current.RefreshToken != oldRefreshToken {
			return apperrors.ErrInvalidRefreshToken
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.refreshKey(oldRefreshToken))
			r.write(ctx, pipe, session, data, ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return apperrors.ErrInvalidRefreshToken
	case errors.Is(err, apperrors.ErrInvalidRefreshToken), errors.Is(err, apperrors.ErrSessionNotFound):
		return err
	case err != nil:
		return fmt.Errorf("[RedisRepo Rotate] %w", err)
	}
	return nil
}

func (r *RedisRepo) write(ctx context.Context, pipe redis.Pipeliner, session *Session, data []byte, ttl time.Duration) {
	pipe.Set(ctx, r.sessionKey(session.ID), data, ttl)
	if session.RefreshToken != "" {
		pipe.Set(ctx, r.refreshKey(session.RefreshToken), session.ID, ttl)
	}
}

func decodeSession(cmd *redis.StringCmd) (*Session, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupt session: %w", err)
	}
	return &session, nil
}

// Get retrieves a session by ID
func (r *RedisRepo) Get(ctx context.Context, sessionID string) (*Session, error) {
	session, err := decodeSession(r.client.Get(ctx, r.sessionKey(sessionID)))
	if err != nil && !errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, fmt.Errorf("[RedisRepo Get] %s: %w", sessionID, err)
	}
	return session, err
}

// GetByRefreshToken resolves the refresh token index and loads the session
func (r *RedisRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	sessionID, err := r.client.Get(ctx, r.refreshKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[RedisRepo GetByRefreshToken] %w", err)
	}
	return r.Get(ctx, sessionID)
}

// Delete removes the session and its refresh token index
func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	session, err := r.Get(ctx, sessionID)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	keys := []string{r.sessionKey(sessionID)}
	if session.RefreshToken != "" {
		keys = append(keys, r.refreshKey(session.RefreshToken))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("[RedisRepo Delete] %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (r *RedisRepo) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
