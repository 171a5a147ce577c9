// Package httpapi exposes the Parley chat relay over HTTP.
//
// The package owns request validation, the typed-error→status mapping, and
// response shaping; all chat semantics live in the orchestrator. Routes are
// served from a stdlib [http.ServeMux] wrapped in the observability
// middleware and a CORS layer.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/avdreher/parley/internal/chat"
	"github.com/avdreher/parley/internal/health"
	"github.com/avdreher/parley/internal/notify"
	"github.com/avdreher/parley/internal/observe"
	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/pkg/provider/llm"
)

// Config holds the server's collaborators and settings.
type Config struct {
	// Orchestrator handles /chat. Required.
	Orchestrator *chat.Orchestrator

	// Registry backs /tools and the readiness check. Required.
	Registry *tools.Registry

	// Notifier backs /test-pushover and the /status pushover flag. Required
	// (an unconfigured notifier is fine).
	Notifier *notify.Pushover

	// Metrics drives the HTTP middleware. Optional.
	Metrics *observe.Metrics

	// ProviderName is the configured backend name, reported by /status.
	ProviderName string

	// ProviderConfigured reports whether an LLM backend was built at startup.
	ProviderConfigured bool

	// Version is reported by the root endpoint.
	Version string

	// CORSOrigins lists the allowed cross-origin caller origins.
	CORSOrigins []string
}

// Server serves the Parley HTTP API.
type Server struct {
	cfg Config
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	return &Server{cfg: cfg}
}

// Handler returns the fully assembled HTTP handler: routes, health probes,
// Prometheus scrape endpoint, observability middleware, and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /test-pushover", s.handleTestPushover)
	mux.Handle("GET /metrics", promhttp.Handler())

	health.New(s.checkers()...).Register(mux)

	var handler http.Handler = mux
	handler = observe.Middleware(s.cfg.Metrics)(handler)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(handler)
}

// checkers builds the readiness checks: the provider must be configured and
// the tool registry non-empty.
func (s *Server) checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "provider",
			Check: func(ctx context.Context) error {
				if !s.cfg.ProviderConfigured {
					return llm.ErrUnavailable
				}
				return nil
			},
		},
		{
			Name: "tools",
			Check: func(ctx context.Context) error {
				if s.cfg.Registry.Len() == 0 {
					return fmt.Errorf("no tools registered")
				}
				return nil
			},
		},
	}
}
