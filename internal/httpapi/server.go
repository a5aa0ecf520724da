package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sawpanic/ai-ratelimit-advisor/internal/advisor"
)

// ServerConfig holds transport-level server settings, following the
// teacher's ServerConfig/DefaultServerConfig pattern
// (internal/interfaces/http/server.go).
type ServerConfig struct {
	Host                   string
	Port                   int
	ReadTimeout            time.Duration
	WriteTimeout           time.Duration
	IdleTimeout            time.Duration
	SelfProtectionRps      float64
	SelfProtectionBurst    int
}

// DefaultServerConfig mirrors the teacher's DefaultServerConfig. It returns
// fixed literal defaults and does not read the environment; the serve
// command sets Host and Port from its flags.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:                "0.0.0.0",
		Port:                8080,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        10 * time.Second,
		IdleTimeout:         60 * time.Second,
		SelfProtectionRps:   200,
		SelfProtectionBurst: 400,
	}
}

// Server is the advisor's HTTP entrypoint (spec.md §4.6): one decision
// endpoint, a health endpoint, a metrics endpoint, plus the ambient /version
// surface, wrapped in the teacher's middleware chain
// (internal/interfaces/http/server.go).
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *Handlers
	config   ServerConfig
}

// algorithmLabels lists every ai_last_algorithm label value (spec.md §6).
var algorithmLabels = []advisor.Algorithm{advisor.AlgoFixed, advisor.AlgoSliding, advisor.AlgoToken}

// NewServer builds a Server bound to engine, using config for transport
// settings and log for request/panic logging.
func NewServer(config ServerConfig, engine *advisor.Engine, metrics *MetricsRegistry, log zerolog.Logger, version string) *Server {
	handlers := NewHandlers(engine, metrics, algorithmLabels, log, version)
	router := mux.NewRouter()

	s := &Server{
		router:   router,
		handlers: handlers,
		config:   config,
	}
	s.setupRoutes(log)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// setupRoutes wires every endpoint plus the middleware chain: request-ID,
// structured logging, and panic recovery apply to all routes; the
// self-protection rate limiter applies only to the decision endpoint
// (SPEC_FULL.md §4.6) since health/metrics/version are read-only and cheap.
func (s *Server) setupRoutes(log zerolog.Logger) {
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware(log))
	s.router.Use(recoverMiddleware(log))

	s.router.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handlers.Metrics).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handlers.Version).Methods(http.MethodGet)

	limiter := NewHostLimiter(s.config.SelfProtectionRps, s.config.SelfProtectionBurst)
	decision := s.router.Methods(http.MethodPost).Subrouter()
	decision.Use(limiter.Middleware)
	decision.HandleFunc("/v1/limit-config", s.handlers.LimitConfig)

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handlers.MethodNotAllowed)
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
