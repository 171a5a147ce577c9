// Command parley is the main entry point for the Parley chat relay server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/otel"

	"github.com/avdreher/parley/internal/chat"
	"github.com/avdreher/parley/internal/config"
	"github.com/avdreher/parley/internal/httpapi"
	"github.com/avdreher/parley/internal/notify"
	"github.com/avdreher/parley/internal/observe"
	"github.com/avdreher/parley/internal/tools"
	"github.com/avdreher/parley/internal/tools/calculator"
	"github.com/avdreher/parley/internal/tools/clock"
	"github.com/avdreher/parley/internal/tools/weather"
	"github.com/avdreher/parley/pkg/provider/llm"
	"github.com/avdreher/parley/pkg/provider/llm/anyllm"
	"github.com/avdreher/parley/pkg/provider/llm/openai"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parley: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("parley starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "parley",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── LLM provider ──────────────────────────────────────────────────────────
	provider, err := buildProvider(cfg.Provider)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			// The server still starts so /status and /tools keep working;
			// every chat surfaces a configuration error until a key arrives.
			slog.Warn("LLM provider not configured", "provider", cfg.Provider.Name, "err", err)
			provider = nil
		} else {
			slog.Error("failed to build LLM provider", "err", err)
			return 1
		}
	}

	// ── Tool registry ─────────────────────────────────────────────────────────
	registry, err := tools.NewRegistry(
		weather.Tool(),
		clock.Tool(),
		calculator.Tool(),
	)
	if err != nil {
		slog.Error("failed to build tool registry", "err", err)
		return 1
	}
	slog.Info("tools registered", "count", registry.Len(), "names", registry.Names())

	// ── Notifier ──────────────────────────────────────────────────────────────
	notifier := notify.New(notify.Config{
		APIToken: cfg.Pushover.APIToken,
		UserKey:  cfg.Pushover.UserKey,
		Endpoint: cfg.Pushover.Endpoint,
		Timeout:  cfg.Pushover.Timeout(),
		Metrics:  metrics,
	})
	if !notifier.Configured() {
		slog.Info("pushover not configured; insufficiency notifications disabled")
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch, err := chat.New(chat.Config{
		Provider:     provider,
		Registry:     registry,
		Notifier:     notifier,
		Metrics:      metrics,
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
	})
	if err != nil {
		slog.Error("failed to build orchestrator", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	api := httpapi.New(httpapi.Config{
		Orchestrator:       orch,
		Registry:           registry,
		Notifier:           notifier,
		Metrics:            metrics,
		ProviderName:       cfg.Provider.Name,
		ProviderConfigured: provider != nil,
		Version:            version,
		CORSOrigins:        cfg.Server.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildProvider constructs the configured LLM backend. The "openai" backend
// uses the native SDK (it carries the legacy completions API that basic mode
// needs); every other name goes through any-llm.
func buildProvider(pc config.ProviderConfig) (llm.Provider, error) {
	switch pc.Name {
	case "openai":
		var opts []openai.Option
		if pc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.BaseURL))
		}
		if pc.TimeoutSeconds > 0 {
			opts = append(opts, openai.WithTimeout(pc.Timeout()))
		}
		return openai.New(pc.APIKey, pc.Model, opts...)

	default:
		var opts []anyllmlib.Option
		if pc.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(pc.APIKey))
		}
		if pc.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(pc.BaseURL))
		}
		return anyllm.New(pc.Name, pc.Model, opts...)
	}
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
