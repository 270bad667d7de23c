package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/jrsteele09/study-assistant/assistant"
	"github.com/jrsteele09/study-assistant/auth"
	"github.com/jrsteele09/study-assistant/events"
	"github.com/jrsteele09/study-assistant/gate"
	"github.com/jrsteele09/study-assistant/internal/config"
	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/server/authflowrepo"
	"github.com/jrsteele09/study-assistant/token"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    config.Config
	rules     config.RouteRules
	auth      *auth.Service
	gate      *gate.Gate
	authFlows authflowrepo.Repo
	completer assistant.Completer
	links     LinkSender
	pages     *template.Template

	serviceOptions []auth.ServiceOption

	oidcLock   sync.Mutex
	oidcConfig OidcConfig
}

// Option configures a Server.
type Option func(*Server)

// WithServiceOptions passes options through to the auth service.
func WithServiceOptions(options ...auth.ServiceOption) Option {
	return func(s *Server) {
		s.serviceOptions = append(s.serviceOptions, options...)
	}
}

// WithLinkSender replaces the default sign-in link delivery.
func WithLinkSender(sender LinkSender) Option {
	return func(s *Server) {
		s.links = sender
	}
}

// New wires the auth service, edge gate and routes. completer may be nil, in which case the
// assistant endpoint answers with an error.
func New(config config.Config, repos auth.Repos, authFlowRepo authflowrepo.Repo, completer assistant.Completer, options ...Option) (*Server, error) {
	if authFlowRepo == nil {
		return nil, errors.New("[Server New] auth flow repo is required")
	}
	if completer == nil {
		completer = unconfiguredCompleter{}
	}

	pages, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		rules:     config.GetRouteRules(),
		authFlows: authFlowRepo,
		completer: completer,
		pages:     pages,
	}
	s.links = logLinkSender{env: s.env}
	for _, opt := range options {
		opt(s)
	}

	secret := []byte(config.GetTokenSecret())
	if len(secret) == 0 {
		generated, err := token.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to generate token secret: %w", err)
		}
		secret = generated
		log.Warn().Msg("TOKEN_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	tokens := token.NewManager(token.NewHMACSigner(secret))
	authService, err := auth.NewService(repos, tokens, events.NewBroker(), config, s.serviceOptions...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create auth service: %w", err)
	}
	s.auth = authService
	s.gate = gate.New(authService, s.rules, sessionCookieName)
	s.handler = s.ClientIDMiddleware(s.gate.Middleware(s.mux))

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Auth exposes the auth service backing the server.
func (s *Server) Auth() *auth.Service {
	return s.auth
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}

type unconfiguredCompleter struct{}

func (unconfiguredCompleter) Complete(context.Context, string) (string, error) {
	return "", apperrors.Wrapf(apperrors.ErrNotConfigured, "assistant requires GENAI_API_KEY")
}
