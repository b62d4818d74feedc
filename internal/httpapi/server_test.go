package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"promptrelay/internal/config"
	"promptrelay/internal/domain"
	"promptrelay/internal/history"
	"promptrelay/internal/orchestrator"
	"promptrelay/internal/resilience"
	"promptrelay/internal/skill"
	"promptrelay/internal/transport"
)

const adminToken = "admin-secret"

type stubExecutor struct {
	fn func() (string, error)
}

func (s *stubExecutor) Name() string { return "primary" }

func (s *stubExecutor) Execute(context.Context, domain.CompletionRequest, transport.Endpoint) (string, error) {
	return s.fn()
}

func answering(text string) *stubExecutor {
	return &stubExecutor{fn: func() (string, error) { return text, nil }}
}

func broken(msg string) *stubExecutor {
	return &stubExecutor{fn: func() (string, error) { return "", errors.New(msg) }}
}

func newTestServer(t *testing.T, exec *stubExecutor, fallbackEnabled, initialize bool) *Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword() error: %v", err)
	}

	cfg := config.Default()
	cfg.Fallback.Enabled = fallbackEnabled
	cfg.Security.AdminTokenHash = string(hash)

	registry := skill.NewRegistry()
	runner := resilience.NewRunner(resilience.RetryConfig{
		MaxAttempts:        2,
		PerAttemptTimeout:  time.Second,
		BackoffBase:        time.Millisecond,
		NetworkBackoffBase: time.Millisecond,
	}, exec)

	svc := orchestrator.NewServiceWithStores(
		cfg,
		config.NewCredentials("test-key", "gemini-2.0-flash"),
		runner,
		resilience.NewResponder(registry, nil),
		registry,
		history.NewMemoryStore(20),
		nil,
		nil,
	)
	if initialize {
		if err := svc.Initialize(context.Background()); err != nil {
			t.Fatalf("Initialize() error: %v", err)
		}
	}

	return NewServer(cfg, svc)
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) domain.ResultEnvelope {
	t.Helper()
	var env domain.ResultEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return env
}

func TestAssistText(t *testing.T) {
	t.Run("returns the envelope", func(t *testing.T) {
		s := newTestServer(t, answering("A heap is a tree."), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/assist/text", AssistRequest{Text: "what is a heap", Skill: "dsa"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		env := decodeEnvelope(t, rec)
		if env.Text != "A heap is a tree." {
			t.Errorf("Unexpected text: %q", env.Text)
		}
		if env.Meta.Kind != domain.KindText || env.Meta.Skill != "dsa" {
			t.Errorf("Unexpected meta: %+v", env.Meta)
		}
	})

	t.Run("blank text maps to 400", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/assist/text", AssistRequest{Text: "  "}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid json maps to 400", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		req := httptest.NewRequest(http.MethodPost, "/v1/assist/text", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("uninitialized service maps to 503", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, false)

		rec := doJSON(t, s, http.MethodPost, "/v1/assist/text", AssistRequest{Text: "hello"}, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", rec.Code)
		}
	})

	t.Run("exhaustion with fallback disabled maps to 502", func(t *testing.T) {
		s := newTestServer(t, broken("connection refused"), false, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/assist/text", AssistRequest{Text: "hello"}, nil)
		if rec.Code != http.StatusBadGateway {
			t.Errorf("Expected 502, got %d", rec.Code)
		}
	})

	t.Run("fallback still answers with 200", func(t *testing.T) {
		s := newTestServer(t, broken("connection refused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/assist/text", AssistRequest{Text: "how do heaps work?"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		env := decodeEnvelope(t, rec)
		if !env.Meta.UsedFallback {
			t.Error("Expected used_fallback")
		}
		if env.Meta.FailureKind != domain.FailureNetwork {
			t.Errorf("Expected NETWORK failure kind, got %s", env.Meta.FailureKind)
		}
	})
}

func TestAssistScreenshot(t *testing.T) {
	t.Run("decodes the image and answers", func(t *testing.T) {
		s := newTestServer(t, answering("A terminal window."), true, true)

		body := ScreenshotRequest{
			ImageBase64: base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47}),
			MIMEType:    "image/png",
			Prompt:      "what is on screen",
		}
		rec := doJSON(t, s, http.MethodPost, "/v1/assist/screenshot", body, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		env := decodeEnvelope(t, rec)
		if env.Meta.Kind != domain.KindVision {
			t.Errorf("Expected vision kind, got %s", env.Meta.Kind)
		}
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/assist/screenshot", ScreenshotRequest{ImageBase64: "!!not-base64!!"}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects missing image", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/assist/screenshot", ScreenshotRequest{Prompt: "look"}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestUpdateCredentials(t *testing.T) {
	t.Run("requires a bearer token", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/credentials", CredentialsRequest{APIKey: "new-key"}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects a wrong token", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/credentials", CredentialsRequest{APIKey: "new-key"},
			map[string]string{"Authorization": "Bearer wrong"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("rotates with the right token", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/credentials", CredentialsRequest{APIKey: "new-key"},
			map[string]string{"Authorization": "Bearer " + adminToken})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var stats domain.ServiceStats
		if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
			t.Fatalf("decoding stats: %v", err)
		}
		if !stats.Initialized {
			t.Error("Expected the service to be re-initialized")
		}
	})

	t.Run("rejects an empty key", func(t *testing.T) {
		s := newTestServer(t, answering("unused"), true, true)

		rec := doJSON(t, s, http.MethodPost, "/v1/credentials", CredentialsRequest{},
			map[string]string{"Authorization": "Bearer " + adminToken})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, answering("unused"), true, true)

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var stats domain.ServiceStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if !stats.Initialized {
		t.Error("Expected initialized in health payload")
	}
}
