package config

import (
	"os"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	baseURLVar     = "BASE_URL"
	redisAddrVar   = "REDIS_ADDR"
	tokenSecretVar = "TOKEN_SECRET"
	routesFileVar  = "ROUTES_FILE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Study Assistant")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the externally visible URL of the app (e.g., "https://study.example.com").
// Used for the OIDC redirect URI.
func (EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(GetEnv(baseURLVar, "http://localhost:8080"), "/")
}

// GetRedisAddr returns the Redis address used for session storage. Empty selects the
// in-memory session repo.
func (EnvVars) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "")
}

// GetTokenSecret returns the HMAC secret for session access tokens. Empty means a random
// secret is generated at startup, which invalidates sessions on restart.
func (EnvVars) GetTokenSecret() string {
	return GetEnv(tokenSecretVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
