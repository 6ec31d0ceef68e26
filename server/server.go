package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-service/token"
	"github.com/jrsteele09/go-token-service/token/keys"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// KeySetProvider publishes the public verification keys of the token service
type KeySetProvider interface {
	JWKS() (*keys.JWKS, error)
}

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	tokens        token.Service
	keySet        KeySetProvider
	refreshTokens *refresh.Manager
	logger        zerolog.Logger
}

type Option func(*Server)

func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithKeySet overrides the key set served on the JWKS route. By default the
// token service is used when it publishes keys.
func WithKeySet(keySet KeySetProvider) Option {
	return func(s *Server) {
		s.keySet = keySet
	}
}

// WithRefreshTokens enables revocation of a user's refresh tokens on logout
func WithRefreshTokens(m *refresh.Manager) Option {
	return func(s *Server) {
		s.refreshTokens = m
	}
}

func New(tokens token.Service, options ...Option) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		tokens: tokens,
		logger: log.Logger,
	}
	if keySet, ok := tokens.(KeySetProvider); ok {
		s.keySet = keySet
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
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
			s.logger.Info().Msg(formatRoute(parts[0], parts[1]))
		} else {
			s.logger.Info().Msg(formatRoute("", parts[0]))
		}
	}
}

func formatRoute(method, path string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s%s%s] %s", color, paddedMethod, ResetColor, path)
}
