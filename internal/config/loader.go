package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "groq", "mistral", "deepseek", "mock"},
	"tts": {"openai", "elevenlabs", "coqui", "mock"},
}

// Load reads the YAML configuration file at path, expands ${VAR} references
// from the environment, overlays the recognised environment variables, and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r with ${VAR} environment
// expansion, applies the environment overlay and defaults, and validates
// the result. Unknown YAML keys are an error.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	ApplyEnv(cfg)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Engine.Speed < 0.5 || cfg.Engine.Speed > 2.0 {
		errs = append(errs, fmt.Errorf("engine.speed %.2f is out of range [0.5, 2.0]", cfg.Engine.Speed))
	}
	if cfg.Cache.ResponseTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("cache.response_ttl_seconds %d is negative", cfg.Cache.ResponseTTLSeconds))
	}
	if cfg.Quality.BaselineScore < 0 || cfg.Quality.BaselineScore > 100 {
		errs = append(errs, fmt.Errorf("quality.baseline_score %d is out of range [0, 100]", cfg.Quality.BaselineScore))
	}

	if cfg.Carrier.SignatureVerificationEnabled() && cfg.Carrier.AuthToken == "" {
		slog.Warn("carrier signature verification enabled without carrier.auth_token; all webhooks will be rejected")
	}
	if cfg.Carrier.WebhookBaseURL == "" {
		slog.Warn("carrier.webhook_base_url is empty; signature canonicalization falls back to request host headers")
	}
	if cfg.Database.URL == "" {
		slog.Warn("database.url is empty; using the in-memory store (calls do not survive restarts)")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
