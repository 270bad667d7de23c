package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/sessions"
)

const defaultIssuer = "study-assistant"

// Claims are the claims carried by a session access token.
type Claims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session access tokens.
type Manager struct {
	signer  Signer
	issuer  string
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func NewManager(signer Signer, opts ...ManagerOption) *Manager {
	m := &Manager{
		signer:  signer,
		issuer:  defaultIssuer,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateSecret returns a random HMAC secret for tokens that only need to survive the process.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	return secret, nil
}

// IssueAccessToken signs an access token for the session's user that expires at expiresAt.
func (m *Manager) IssueAccessToken(sessionID string, user sessions.UserRef, expiresAt time.Time) (string, error) {
	now := m.nowFunc()
	claims := Claims{
		SessionID: sessionID,
		Email:     user.Email,
		Name:      user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}
	return m.signer.Sign(claims)
}

// ParseAccessToken verifies the signature, issuer and expiry of an access token.
func (m *Manager) ParseAccessToken(raw string) (*Claims, error) {
	if raw == "" {
		return nil, apperrors.ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, apperrors.Wrapf(apperrors.ErrTokenExpired, "%v", err)
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing session or subject", apperrors.ErrInvalidToken)
	}
	return claims, nil
}

// SessionIDFromToken verifies the signature of an access token without checking its expiry
// and returns the session ID. Used to end sessions whose access token already lapsed.
func (m *Manager) SessionIDFromToken(raw string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
	}
	if claims.SessionID == "" {
		return "", fmt.Errorf("%w: missing session", apperrors.ErrInvalidToken)
	}
	return claims.SessionID, nil
}

// NewOpaqueToken returns a random hex token of length bytes, used for refresh tokens and
// sign-in codes.
func NewOpaqueToken(length int) (string, error) {
	tokenBytes := make([]byte, length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(tokenBytes), nil
}
