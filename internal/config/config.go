// Package config provides the configuration schema, loader, and provider
// registry for the AADOS voice sales agent.
package config

import (
	"os"
	"strconv"
)

// LogLevel controls log verbosity for the server.
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

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader], then overlaid with the
// environment via [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Carrier   CarrierConfig   `yaml:"carrier"`
	Engine    EngineConfig    `yaml:"engine"`
	Cache     CacheConfig     `yaml:"cache"`
	Quality   QualityConfig   `yaml:"quality"`
	Warmup    WarmupConfig    `yaml:"warmup"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// DatabaseConfig holds the persistence settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty selects the in-memory
	// store, which is only suitable for local development.
	URL string `yaml:"url"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "elevenlabs", "mock").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini",
	// "tts-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// CarrierConfig holds the telephony carrier integration settings.
type CarrierConfig struct {
	// AuthToken signs and validates webhook payloads.
	AuthToken string `yaml:"auth_token"`

	// WebhookBaseURL is the externally reachable base URL the carrier and
	// signature canonicalization use (e.g., "https://agent.example.com").
	WebhookBaseURL string `yaml:"webhook_base_url"`

	// SignatureVerification toggles webhook signature checks. Nil means
	// enabled; disable only behind a trusted tunnel in development.
	SignatureVerification *bool `yaml:"signature_verification"`

	// SayVoice is the carrier-native voice used when no synthesized audio is
	// available for a turn.
	SayVoice string `yaml:"say_voice"`
}

// SignatureVerificationEnabled resolves the tri-state toggle.
func (c CarrierConfig) SignatureVerificationEnabled() bool {
	return c.SignatureVerification == nil || *c.SignatureVerification
}

// EngineConfig tunes the response pipeline.
type EngineConfig struct {
	// Voice is the TTS synthesis voice.
	Voice string `yaml:"voice"`

	// Speed is the synthesis speaking rate in [0.5, 2.0]. Zero means 1.0.
	Speed float64 `yaml:"speed"`

	// Format is the synthesized audio container (e.g., "mp3").
	Format string `yaml:"format"`

	// SerialTTS disables the first-sentence synthesis overlap for providers
	// that throttle concurrent synthesis.
	SerialTTS bool `yaml:"serial_tts"`
}

// CacheConfig bounds the response and audio caches.
type CacheConfig struct {
	// ResponseTTLSeconds is how long a cached reply stays valid.
	ResponseTTLSeconds int `yaml:"response_ttl_seconds"`

	// ResponseCapacity caps the number of cached replies.
	ResponseCapacity int `yaml:"response_capacity"`

	// TTSMemoryEntries caps the in-memory audio cache.
	TTSMemoryEntries int `yaml:"tts_memory_entries"`

	// TTSDir is the audio disk cache directory.
	TTSDir string `yaml:"tts_dir"`
}

// QualityConfig tunes the reply quality alerting.
type QualityConfig struct {
	// BaselineScore is the expected windowed mean quality score.
	BaselineScore int `yaml:"baseline_score"`

	// AlertMargin is how far below baseline the windowed mean may fall
	// before an alert fires.
	AlertMargin int `yaml:"alert_margin"`
}

// WarmupConfig controls the startup warm path.
type WarmupConfig struct {
	// Disabled skips warmup entirely. Mostly for tests.
	Disabled bool `yaml:"disabled"`
}

// Defaults used by [ApplyDefaults].
const (
	DefaultListenAddr         = ":8080"
	DefaultResponseTTLSeconds = 3600
	DefaultResponseCapacity   = 1000
	DefaultTTSMemoryEntries   = 50
	DefaultTTSDir             = "tts_cache"
	DefaultQualityBaseline    = 75
	DefaultQualityAlertMargin = 5
	DefaultVoice              = "alloy"
	DefaultAudioFormat        = "mp3"
)

// ApplyDefaults fills zero values with the documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Cache.ResponseTTLSeconds == 0 {
		cfg.Cache.ResponseTTLSeconds = DefaultResponseTTLSeconds
	}
	if cfg.Cache.ResponseCapacity == 0 {
		cfg.Cache.ResponseCapacity = DefaultResponseCapacity
	}
	if cfg.Cache.TTSMemoryEntries == 0 {
		cfg.Cache.TTSMemoryEntries = DefaultTTSMemoryEntries
	}
	if cfg.Cache.TTSDir == "" {
		cfg.Cache.TTSDir = DefaultTTSDir
	}
	if cfg.Quality.BaselineScore == 0 {
		cfg.Quality.BaselineScore = DefaultQualityBaseline
	}
	if cfg.Quality.AlertMargin == 0 {
		cfg.Quality.AlertMargin = DefaultQualityAlertMargin
	}
	if cfg.Engine.Voice == "" {
		cfg.Engine.Voice = DefaultVoice
	}
	if cfg.Engine.Speed == 0 {
		cfg.Engine.Speed = 1.0
	}
	if cfg.Engine.Format == "" {
		cfg.Engine.Format = DefaultAudioFormat
	}
}

// ApplyEnv overlays the recognised environment variables onto cfg. A set
// variable always wins over the file value.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Providers.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.Providers.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.Providers.LLM.Model, "LLM_MODEL")
	setString(&cfg.Providers.TTS.APIKey, "TTS_API_KEY")
	setString(&cfg.Providers.TTS.Model, "TTS_MODEL")
	setString(&cfg.Engine.Voice, "TTS_VOICE")
	setString(&cfg.Cache.TTSDir, "TTS_CACHE_DIR")
	setString(&cfg.Carrier.AuthToken, "CARRIER_AUTH_TOKEN")
	setString(&cfg.Carrier.WebhookBaseURL, "WEBHOOK_BASE_URL")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setInt(&cfg.Cache.ResponseTTLSeconds, "RESPONSE_CACHE_TTL_SECONDS")
	setInt(&cfg.Cache.TTSMemoryEntries, "TTS_MEMORY_CACHE_SIZE")
	setInt(&cfg.Quality.BaselineScore, "QUALITY_BASELINE_SCORE")
	setInt(&cfg.Quality.AlertMargin, "QUALITY_ALERT_THRESHOLD")

	if v, ok := os.LookupEnv("SIGNATURE_VERIFICATION_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Carrier.SignatureVerification = &b
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
