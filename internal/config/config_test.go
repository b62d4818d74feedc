package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"promptrelay/internal/crypto"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Upstream.BaseURL != "https://generativelanguage.googleapis.com/v1beta" {
		t.Errorf("unexpected default base URL: %s", cfg.Upstream.BaseURL)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected 3 default attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.NetworkBackoffBase() <= cfg.Retry.BackoffBase() {
		t.Error("network backoff base should exceed the default base")
	}
	if !cfg.Fallback.Enabled {
		t.Error("fallback should be enabled by default")
	}
	if cfg.History.Driver != "memory" {
		t.Errorf("expected memory history driver, got %s", cfg.History.Driver)
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.HTTPPort != 8080 {
			t.Errorf("expected default port, got %d", cfg.Server.HTTPPort)
		}
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[upstream]
model = "gemini-2.5-pro"

[retry]
max_attempts = 5
per_attempt_timeout_sec = 10

[fallback]
enabled = false
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.Upstream.Model != "gemini-2.5-pro" {
			t.Errorf("model not applied: %s", cfg.Upstream.Model)
		}
		if cfg.Retry.MaxAttempts != 5 {
			t.Errorf("max_attempts not applied: %d", cfg.Retry.MaxAttempts)
		}
		if cfg.Retry.PerAttemptTimeout() != 10*time.Second {
			t.Errorf("timeout not applied: %v", cfg.Retry.PerAttemptTimeout())
		}
		if cfg.Fallback.Enabled {
			t.Error("fallback should be disabled by file")
		}
		// Untouched sections keep defaults
		if cfg.Server.HTTPPort != 8080 {
			t.Errorf("unrelated default lost: %d", cfg.Server.HTTPPort)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[upstream]
model = "gemini-2.0-flash"
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		t.Setenv("PROMPTRELAY_MODEL", "gemini-2.5-flash")
		t.Setenv("PROMPTRELAY_HTTP_PORT", "9099")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if cfg.Upstream.Model != "gemini-2.5-flash" {
			t.Errorf("env model override not applied: %s", cfg.Upstream.Model)
		}
		if cfg.Server.HTTPPort != 9099 {
			t.Errorf("env port override not applied: %d", cfg.Server.HTTPPort)
		}
	})

	t.Run("dollar expansion in values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		content := `
[upstream]
api_key = "${TEST_RELAY_KEY}"
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		t.Setenv("TEST_RELAY_KEY", "expanded-key")

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Upstream.APIKey != "expanded-key" {
			t.Errorf("expansion not applied: %s", cfg.Upstream.APIKey)
		}
	})
}

func TestResolveAPIKey(t *testing.T) {
	t.Run("plaintext key wins", func(t *testing.T) {
		u := UpstreamConfig{APIKey: "plain", APIKeyEncrypted: "ignored"}
		key, err := u.ResolveAPIKey()
		if err != nil {
			t.Fatalf("ResolveAPIKey failed: %v", err)
		}
		if key != "plain" {
			t.Errorf("expected plaintext key, got %q", key)
		}
	})

	t.Run("sealed key opens with env cipher", func(t *testing.T) {
		encKey, err := crypto.GenerateKeyString(32)
		if err != nil {
			t.Fatal(err)
		}
		cipher, err := crypto.NewCipherFromString(encKey)
		if err != nil {
			t.Fatal(err)
		}
		sealed, err := cipher.Seal("secret-api-key")
		if err != nil {
			t.Fatal(err)
		}

		t.Setenv("PROMPTRELAY_ENCRYPTION_KEY", encKey)

		u := UpstreamConfig{APIKeyEncrypted: sealed}
		key, err := u.ResolveAPIKey()
		if err != nil {
			t.Fatalf("ResolveAPIKey failed: %v", err)
		}
		if key != "secret-api-key" {
			t.Errorf("expected opened key, got %q", key)
		}
	})

	t.Run("sealed key without env cipher errors", func(t *testing.T) {
		t.Setenv("PROMPTRELAY_ENCRYPTION_KEY", "")
		u := UpstreamConfig{APIKeyEncrypted: "c2VhbGVk"}
		if _, err := u.ResolveAPIKey(); err == nil {
			t.Error("expected error when encryption key is absent")
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		u := UpstreamConfig{}
		key, err := u.ResolveAPIKey()
		if err != nil {
			t.Fatalf("ResolveAPIKey failed: %v", err)
		}
		if key != "" {
			t.Errorf("expected empty key, got %q", key)
		}
	})
}

func TestCredentials(t *testing.T) {
	creds := NewCredentials("key-1", "gemini-2.0-flash")

	if !creds.Configured() {
		t.Error("credentials should be configured")
	}

	key, model := creds.Snapshot()
	if key != "key-1" || model != "gemini-2.0-flash" {
		t.Errorf("unexpected snapshot: %s %s", key, model)
	}

	if err := creds.UpdateKey("key-2"); err != nil {
		t.Fatalf("UpdateKey failed: %v", err)
	}
	key, _ = creds.Snapshot()
	if key != "key-2" {
		t.Errorf("key not rotated: %s", key)
	}

	if err := creds.UpdateKey(""); err != ErrEmptyCredential {
		t.Errorf("expected ErrEmptyCredential, got %v", err)
	}

	if err := creds.UpdateModel(""); err != ErrEmptyCredential {
		t.Errorf("expected ErrEmptyCredential, got %v", err)
	}

	empty := NewCredentials("", "")
	if empty.Configured() {
		t.Error("empty credentials should not be configured")
	}
}
