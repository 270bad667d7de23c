package config

import "time"

type SessionConfig interface {
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetSignInCodeTTL() time.Duration
	GetSignInCodeLength() int
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (Session) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

func (Session) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (Session) GetSignInCodeTTL() time.Duration {
	return 15 * time.Minute
}

func (Session) GetSignInCodeLength() int {
	return 32
}
