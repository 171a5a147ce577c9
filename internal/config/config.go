// Package config provides the configuration schema and loader for the Parley
// chat relay.
package config

import "time"

// LogLevel controls log verbosity for the Parley server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Parley.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Chat     ChatConfig     `yaml:"chat"`
	Pushover PushoverConfig `yaml:"pushover"`
}

// ServerConfig holds network, logging, and CORS settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// CORSOrigins lists the allowed cross-origin caller origins. Empty uses
	// the development defaults.
	CORSOrigins []string `yaml:"cors_origins"`
}

// ProviderConfig selects and configures the LLM backend.
type ProviderConfig struct {
	// Name selects the backend implementation ("openai", "ollama",
	// "anthropic", ...). The "openai" backend uses the native SDK; all others
	// go through any-llm.
	Name string `yaml:"name"`

	// APIKey is the backend credential. Empty falls back to the backend's
	// conventional environment variable (e.g. OPENAI_API_KEY).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint — the hook for
	// pointing at a local model server.
	BaseURL string `yaml:"base_url"`

	// Model is the default model for requests that carry no override.
	Model string `yaml:"model"`

	// TimeoutSeconds bounds a single provider round-trip. Zero uses the
	// backend default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured provider timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ChatConfig tunes the orchestration loop.
type ChatConfig struct {
	// SystemPrompt overrides the default system message. Optional.
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature is passed through to the provider. Zero means backend
	// default; valid range is [0.0, 2.0].
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps completion length. Zero means backend default.
	MaxTokens int `yaml:"max_tokens"`
}

// PushoverConfig holds the insufficiency-notifier credentials.
type PushoverConfig struct {
	// APIToken is the Pushover application token. Empty falls back to the
	// PUSHOVER_API_TOKEN environment variable; still empty means the notifier
	// is not configured and notifications are skipped.
	APIToken string `yaml:"api_token"`

	// UserKey is the Pushover user key. Empty falls back to PUSHOVER_USER_KEY.
	UserKey string `yaml:"user_key"`

	// Endpoint overrides the Pushover API URL (used in tests).
	Endpoint string `yaml:"endpoint"`

	// TimeoutSeconds bounds a single delivery attempt. Zero uses a 10s default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured notification timeout as a duration.
func (p PushoverConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// defaultCORSOrigins are the development origins allowed when none are
// configured.
var defaultCORSOrigins = []string{
	"http://localhost:4200",
	"http://127.0.0.1:4200",
	"http://localhost:8040",
	"http://127.0.0.1:8040",
}
