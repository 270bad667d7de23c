package config

import "fmt"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	AssistantConfig
	OIDCConfig
	RoutesConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetRedisAddr() string
	GetTokenSecret() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Assistant
	OIDC
	Routes
}

// New builds the configuration from environment variables. When ROUTES_FILE is set the
// gate rules are loaded from that YAML file.
func New() (Config, error) {
	routes, err := LoadRoutes(GetEnv(routesFileVar, ""))
	if err != nil {
		return nil, fmt.Errorf("[config New] %w", err)
	}
	return mainConfig{Routes: routes}, nil
}
