package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the recognised LLM backend names. "openai" uses
// the native SDK; the rest are served through any-llm.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment fallbacks, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with defaults and pulls secrets from the
// environment when the file omits them. File values win over the environment.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}

	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "openai"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "gpt-3.5-turbo"
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Pushover.APIToken == "" {
		cfg.Pushover.APIToken = os.Getenv("PUSHOVER_API_TOKEN")
	}
	if cfg.Pushover.UserKey == "" {
		cfg.Pushover.UserKey = os.Getenv("PUSHOVER_USER_KEY")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !slices.Contains(ValidProviderNames, cfg.Provider.Name) {
		errs = append(errs, fmt.Errorf("provider.name %q is unknown; valid values: %v", cfg.Provider.Name, ValidProviderNames))
	}
	if cfg.Provider.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("provider.timeout_seconds %d must not be negative", cfg.Provider.TimeoutSeconds))
	}

	if cfg.Chat.Temperature < 0 || cfg.Chat.Temperature > 2.0 {
		errs = append(errs, fmt.Errorf("chat.temperature %.2f is out of range [0.0, 2.0]", cfg.Chat.Temperature))
	}
	if cfg.Chat.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("chat.max_tokens %d must not be negative", cfg.Chat.MaxTokens))
	}

	if cfg.Pushover.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("pushover.timeout_seconds %d must not be negative", cfg.Pushover.TimeoutSeconds))
	}
	if (cfg.Pushover.APIToken == "") != (cfg.Pushover.UserKey == "") {
		errs = append(errs, fmt.Errorf("pushover requires both api_token and user_key, or neither"))
	}

	return errors.Join(errs...)
}
