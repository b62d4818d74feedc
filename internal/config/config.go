// Package config provides configuration management for PromptRelay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"promptrelay/internal/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Retry     RetryConfig     `toml:"retry"`
	Fallback  FallbackConfig  `toml:"fallback"`
	History   HistoryConfig   `toml:"history"`
	Journal   JournalConfig   `toml:"journal"`
	Skills    SkillsConfig    `toml:"skills"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Security  SecurityConfig  `toml:"security"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	HTTPPort        int    `toml:"http_port"`
	BindAddress     string `toml:"bind_address"`
	ReadTimeoutSec  int    `toml:"read_timeout_sec"`
	WriteTimeoutSec int    `toml:"write_timeout_sec"`
	MaxRequestSize  int64  `toml:"max_request_size"`
}

// ReadTimeout returns the read timeout as a duration
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the write timeout as a duration
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

// UpstreamConfig contains upstream model API settings
type UpstreamConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`

	// APIKeyEncrypted holds the key sealed with the cipher keyed by
	// PROMPTRELAY_ENCRYPTION_KEY. Takes effect only when api_key is unset.
	APIKeyEncrypted string `toml:"api_key_encrypted"`

	// ProbeTargets are hosts probed at startup to report connectivity
	ProbeTargets []string `toml:"probe_targets"`
}

// ResolveAPIKey returns the upstream API key, opening the sealed form
// when no plaintext key is configured
func (u UpstreamConfig) ResolveAPIKey() (string, error) {
	if u.APIKey != "" {
		return u.APIKey, nil
	}
	if u.APIKeyEncrypted == "" {
		return "", nil
	}

	encKey := os.Getenv("PROMPTRELAY_ENCRYPTION_KEY")
	if encKey == "" {
		return "", fmt.Errorf("api_key_encrypted is set but PROMPTRELAY_ENCRYPTION_KEY is not")
	}

	cipher, err := crypto.NewCipherFromString(encKey)
	if err != nil {
		return "", fmt.Errorf("loading encryption key: %w", err)
	}

	key, err := cipher.Open(u.APIKeyEncrypted)
	if err != nil {
		return "", fmt.Errorf("opening sealed api key: %w", err)
	}
	return key, nil
}

// RetryConfig contains retry orchestration settings
type RetryConfig struct {
	MaxAttempts          int `toml:"max_attempts"`
	PerAttemptTimeoutSec int `toml:"per_attempt_timeout_sec"`
	BackoffBaseMs        int `toml:"backoff_base_ms"`
	NetworkBackoffBaseMs int `toml:"network_backoff_base_ms"`
	JitterMaxMs          int `toml:"jitter_max_ms"`
}

// PerAttemptTimeout returns the per-attempt deadline as a duration
func (r RetryConfig) PerAttemptTimeout() time.Duration {
	return time.Duration(r.PerAttemptTimeoutSec) * time.Second
}

// BackoffBase returns the default backoff base as a duration
func (r RetryConfig) BackoffBase() time.Duration {
	return time.Duration(r.BackoffBaseMs) * time.Millisecond
}

// NetworkBackoffBase returns the backoff base used for connectivity-class
// failures as a duration
func (r RetryConfig) NetworkBackoffBase() time.Duration {
	return time.Duration(r.NetworkBackoffBaseMs) * time.Millisecond
}

// JitterMax returns the jitter ceiling as a duration
func (r RetryConfig) JitterMax() time.Duration {
	return time.Duration(r.JitterMaxMs) * time.Millisecond
}

// FallbackConfig contains local fallback response settings
type FallbackConfig struct {
	Enabled bool `toml:"enabled"`
}

// HistoryConfig contains conversation history settings
type HistoryConfig struct {
	Driver    string `toml:"driver"` // "memory", "postgres", "none"
	DSN       string `toml:"dsn"`
	SessionID string `toml:"session_id"`
	Capacity  int    `toml:"capacity"`
}

// JournalConfig contains request journal settings
type JournalConfig struct {
	Enabled bool `toml:"enabled"`
}

// SkillsConfig contains skill registry settings
type SkillsConfig struct {
	DefinitionsPath string `toml:"definitions_path"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	Enabled   bool   `toml:"enabled"`
	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	// AdminTokenHash is the bcrypt hash of the token required by
	// credential management endpoints
	AdminTokenHash string `toml:"admin_token_hash"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			BindAddress:     "0.0.0.0",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 120,
			MaxRequestSize:  20 * 1024 * 1024, // 20MB, screenshots arrive inline
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model:   "gemini-2.0-flash",
		},
		Retry: RetryConfig{
			MaxAttempts:          3,
			PerAttemptTimeoutSec: 30,
			BackoffBaseMs:        500,
			NetworkBackoffBaseMs: 1500,
			JitterMaxMs:          1000,
		},
		Fallback: FallbackConfig{
			Enabled: true,
		},
		History: HistoryConfig{
			Driver:    "memory",
			SessionID: "default",
			Capacity:  200,
		},
		Journal: JournalConfig{
			Enabled: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:   true,
			LogFormat: "json",
			LogLevel:  "info",
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Parse TOML
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		// If file doesn't exist, return defaults
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Substitute environment variables
	cfg.substituteEnvVars()

	return cfg, nil
}

// LoadOrDefault loads config from file or returns defaults
func LoadOrDefault(path string) *Config {
	if path == "" {
		cfg := Default()
		cfg.substituteEnvVars()
		return cfg
	}

	cfg, err := Load(path)
	if err != nil {
		fmt.Printf("Warning: Failed to load config from %s: %v\n", path, err)
		return Default()
	}

	return cfg
}

// substituteEnvVars substitutes ${VAR} patterns with environment variables
// and applies direct PROMPTRELAY_* environment variable overrides
func (c *Config) substituteEnvVars() {
	// Expand ${VAR} patterns in config values
	c.Upstream.APIKey = expandEnv(c.Upstream.APIKey)
	c.Upstream.APIKeyEncrypted = expandEnv(c.Upstream.APIKeyEncrypted)
	c.History.DSN = expandEnv(c.History.DSN)
	c.Security.AdminTokenHash = expandEnv(c.Security.AdminTokenHash)

	// Direct environment variable overrides for container deployment
	if v := os.Getenv("PROMPTRELAY_API_KEY"); v != "" {
		c.Upstream.APIKey = v
	}
	if v := os.Getenv("PROMPTRELAY_MODEL"); v != "" {
		c.Upstream.Model = v
	}
	if v := os.Getenv("PROMPTRELAY_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("PROMPTRELAY_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("PROMPTRELAY_HISTORY_DRIVER"); v != "" {
		c.History.Driver = v
	}
	if v := os.Getenv("PROMPTRELAY_HISTORY_DSN"); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv("PROMPTRELAY_SESSION_ID"); v != "" {
		c.History.SessionID = v
	}
	if v := os.Getenv("PROMPTRELAY_ADMIN_TOKEN_HASH"); v != "" {
		c.Security.AdminTokenHash = v
	}
	if v := os.Getenv("PROMPTRELAY_LOG_LEVEL"); v != "" {
		c.Telemetry.LogLevel = v
	}
}

// expandEnv expands ${VAR} or $VAR patterns
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return os.ExpandEnv(s)
}
