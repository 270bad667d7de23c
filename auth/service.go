package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/study-assistant/events"
	"github.com/jrsteele09/study-assistant/internal/config"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/sessions"
	"github.com/jrsteele09/study-assistant/token"
	"github.com/jrsteele09/study-assistant/users"
)

// Service is the auth backend: it owns users, sessions and sign-in codes and announces
// every auth state change on the event broker, scoped to the browser context (clientID)
// that caused it.
type Service struct {
	repos   Repos                // All repository dependencies
	tokens  *token.Manager       // Issues and verifies access tokens
	broker  *events.Broker       // Auth state change fan-out
	config  config.SessionConfig // Expiry and token length settings
	nowTime func() time.Time     // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(repos Repos, tokens *token.Manager, broker *events.Broker, cfg config.SessionConfig, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewService] Sessions repo is required")
	}
	if repos.Codes == nil {
		return nil, errors.New("[NewService] Codes repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if broker == nil {
		return nil, errors.New("[NewService] event broker is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewService] session config is required")
	}

	s := &Service{
		repos:   repos,
		tokens:  tokens,
		broker:  broker,
		config:  cfg,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// SignUp registers an unverified user and returns the confirmation code that verifies the
// address and signs the user in when exchanged.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (*users.User, string, error) {
	email, err := users.NormaliseEmail(email)
	if err != nil {
		return nil, "", apperrors.Wrapf(apperrors.ErrInvalidEmail, "[SignUp] %v", err)
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, "", apperrors.Wrapf(apperrors.ErrWeakPassword, "[SignUp] %v", err)
	}

	if _, err := s.repos.Users.GetByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("[SignUp] %s: %w", email, apperrors.ErrUserExists)
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, "", fmt.Errorf("[SignUp] lookup user: %w", err)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("[SignUp] hash password: %w", err)
	}

	user := &users.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		DateJoined:   s.nowTime(),
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("[SignUp] store user %s: %w", email, err)
	}

	code, err := s.issueCode(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("[SignUp] %w", err)
	}
	return user, code, nil
}

// IssueSignInCode creates a one-time sign-in code (magic link) for an existing user.
func (s *Service) IssueSignInCode(ctx context.Context, email string) (string, error) {
	email, err := users.NormaliseEmail(email)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidEmail, "[IssueSignInCode] %v", err)
	}
	if _, err := s.repos.Users.GetByEmail(ctx, email); err != nil {
		return "", fmt.Errorf("[IssueSignInCode] %w", err)
	}
	return s.issueCode(ctx, email)
}

// ExchangeCode redeems a one-time code, verifying the user's email, and starts a session.
func (s *Service) ExchangeCode(ctx context.Context, clientID, code string) (*sessions.Session, error) {
	if code == "" {
		return nil, apperrors.ErrInvalidCode
	}

	stored, err := s.repos.Codes.Take(ctx, hashCode(code))
	if err != nil {
		return nil, fmt.Errorf("[ExchangeCode] %w", err)
	}
	if !s.nowTime().Before(stored.ExpiresAt) {
		return nil, apperrors.ErrCodeExpired
	}

	if err := s.repos.Users.SetVerified(ctx, stored.Email, true); err != nil {
		return nil, fmt.Errorf("[ExchangeCode] verify user: %w", err)
	}
	user, err := s.repos.Users.GetByEmail(ctx, stored.Email)
	if err != nil {
		return nil, fmt.Errorf("[ExchangeCode] %w", err)
	}
	return s.signIn(ctx, clientID, user)
}

// SignInWithPassword checks the user's credentials and starts a session.
func (s *Service) SignInWithPassword(ctx context.Context, clientID, email, password string) (*sessions.Session, error) {
	email, err := users.NormaliseEmail(email)
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := s.repos.Users.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("[SignInWithPassword] %w", err)
	}
	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, apperrors.ErrUserNotVerified
	}
	return s.signIn(ctx, clientID, user)
}

// SignInWithIdentity starts a session for an identity asserted by an external provider,
// creating a verified user on first sign in.
func (s *Service) SignInWithIdentity(ctx context.Context, clientID, email, name string) (*sessions.Session, error) {
	email, err := users.NormaliseEmail(email)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidEmail, "[SignInWithIdentity] %v", err)
	}

	user, err := s.repos.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		user = &users.User{Email: email, Name: name, Verified: true, DateJoined: s.nowTime()}
		err = s.repos.Users.Create(ctx, user)
		if errors.Is(err, apperrors.ErrUserExists) {
			// Lost a race with another first sign in for the same address.
			if user, err = s.repos.Users.GetByEmail(ctx, email); err == nil && !user.Verified {
				err = s.repos.Users.SetVerified(ctx, email, true)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("[SignInWithIdentity] store user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("[SignInWithIdentity] %w", err)
	case !user.Verified:
		if err := s.repos.Users.SetVerified(ctx, email, true); err != nil {
			return nil, fmt.Errorf("[SignInWithIdentity] verify user: %w", err)
		}
	}
	return s.signIn(ctx, clientID, user)
}

// GetSession resolves an access token to its live session.
func (s *Service) GetSession(ctx context.Context, accessToken string) (*sessions.Session, error) {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	session, err := s.repos.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.nowTime()) {
		return nil, apperrors.ErrSessionExpired
	}
	return session, nil
}

// RefreshSession rotates the session's tokens using its current refresh token.
func (s *Service) RefreshSession(ctx context.Context, clientID, refreshToken string) (*sessions.Session, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrInvalidRefreshToken
	}

	session, err := s.repos.Sessions.GetByRefreshToken(ctx, refreshToken)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("[RefreshSession] %w", err)
	}
	if session.Expired(s.nowTime()) {
		_ = s.repos.Sessions.Delete(ctx, session.ID)
		return nil, apperrors.ErrSessionExpired
	}

	if err := s.issueTokens(session); err != nil {
		return nil, fmt.Errorf("[RefreshSession] %w", err)
	}
	err = s.repos.Sessions.Rotate(ctx, refreshToken, session)
	if errors.Is(err, apperrors.ErrInvalidRefreshToken) || errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("[RefreshSession] store session: %w", err)
	}

	s.publish(events.TokenRefreshed, clientID, session)
	return session, nil
}

// SignOut ends the session behind accessToken. Signing out without a valid session still
// announces SIGNED_OUT so every listener settles on the signed out state.
func (s *Service) SignOut(ctx context.Context, clientID, accessToken string) error {
	defer s.publish(events.SignedOut, clientID, nil)

	if accessToken == "" {
		return nil
	}
	sessionID, err := s.tokens.SessionIDFromToken(accessToken)
	if err != nil {
		return nil
	}
	if err := s.repos.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("[SignOut] %w", err)
	}
	return nil
}

// OnAuthStateChange subscribes to auth state changes for a browser context.
func (s *Service) OnAuthStateChange(clientID string) *events.Subscription {
	return s.broker.Subscribe(clientID)
}

// PurgeExpired removes expired sessions and sign-in codes.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.nowTime()
	sessionCount, err := s.repos.Sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("[PurgeExpired] sessions: %w", err)
	}
	codeCount, err := s.repos.Codes.DeleteExpired(ctx, now)
	if err != nil {
		return sessionCount, fmt.Errorf("[PurgeExpired] codes: %w", err)
	}
	return sessionCount + codeCount, nil
}

func (s *Service) signIn(ctx context.Context, clientID string, user *users.User) (*sessions.Session, error) {
	now := s.nowTime()
	session := &sessions.Session{
		ID:        uuid.New().String(),
		User:      sessions.UserRef{ID: user.ID, Email: user.Email, Name: user.DisplayName()},
		ExpiresAt: now.Add(s.config.GetRefreshTokenExpiry()),
		CreatedAt: now,
	}
	if err := s.issueTokens(session); err != nil {
		return nil, fmt.Errorf("[signIn] %w", err)
	}
	if err := s.repos.Sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("[signIn] store session: %w", err)
	}
	if err := s.repos.Users.SetLastLogin(ctx, user.Email, now); err != nil {
		return nil, fmt.Errorf("[signIn] %w", err)
	}

	s.publish(events.SignedIn, clientID, session)
	return session, nil
}

// issueTokens sets a fresh access and refresh token on the session. The access token never
// outlives the session.
func (s *Service) issueTokens(session *sessions.Session) error {
	accessExpiry := s.nowTime().Add(s.config.GetAccessTokenExpiry())
	if accessExpiry.After(session.ExpiresAt) {
		accessExpiry = session.ExpiresAt
	}

	accessToken, err := s.tokens.IssueAccessToken(session.ID, session.User, accessExpiry)
	if err != nil {
		return err
	}
	refreshToken, err := token.NewOpaqueToken(s.config.GetRefreshTokenLength())
	if err != nil {
		return err
	}

	session.AccessToken = accessToken
	session.AccessExpiresAt = accessExpiry
	session.RefreshToken = refreshToken
	return nil
}

func (s *Service) issueCode(ctx context.Context, email string) (string, error) {
	code, err := token.NewOpaqueToken(s.config.GetSignInCodeLength())
	if err != nil {
		return "", err
	}
	err = s.repos.Codes.Put(ctx, SignInCode{
		Hash:      hashCode(code),
		Email:     email,
		ExpiresAt: s.nowTime().Add(s.config.GetSignInCodeTTL()),
	})
	if err != nil {
		return "", fmt.Errorf("store sign-in code: %w", err)
	}
	return code, nil
}

func (s *Service) publish(typ events.Type, clientID string, session *sessions.Session) {
	if clientID == "" {
		return
	}
	var copied *sessions.Session
	if session != nil {
		c := *session
		copied = &c
	}
	s.broker.Publish(events.Event{Type: typ, ClientID: clientID, Session: copied, At: s.nowTime()})
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
