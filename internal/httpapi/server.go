package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"promptrelay/internal/config"
	"promptrelay/internal/domain"
	"promptrelay/internal/orchestrator"
	"promptrelay/internal/resilience"
	"promptrelay/internal/telemetry"
)

// Server is the HTTP API server
type Server struct {
	config  *config.Config
	service *orchestrator.Service
	mux     *http.ServeMux
}

// NewServer creates a new HTTP server over the orchestrator service
func NewServer(cfg *config.Config, service *orchestrator.Service) *Server {
	s := &Server{
		config:  cfg,
		service: service,
		mux:     http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// =========================================================================
	// Assistance endpoints
	// =========================================================================
	s.mux.HandleFunc("POST /v1/assist/text", s.handleAssistText)
	s.mux.HandleFunc("POST /v1/assist/transcription", s.handleAssistTranscription)
	s.mux.HandleFunc("POST /v1/assist/screenshot", s.handleAssistScreenshot)

	// =========================================================================
	// Administration endpoints
	// =========================================================================
	s.mux.HandleFunc("POST /v1/credentials", s.withAdminAuth(s.handleUpdateCredentials))

	// =========================================================================
	// Infrastructure endpoints
	// =========================================================================
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", telemetry.Handler())
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the server until the context is canceled, then shuts down
// gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout(),
		WriteTimeout: s.config.Server.WriteTimeout(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

// handleAssistText handles POST /v1/assist/text
func (s *Server) handleAssistText(w http.ResponseWriter, r *http.Request) {
	var req AssistRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	env, err := s.service.ProcessText(r.Context(), orchestrator.TextInput{
		Text:           req.Text,
		Skill:          req.Skill,
		TargetLanguage: req.Language,
	})
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, env)
}

// handleAssistTranscription handles POST /v1/assist/transcription
func (s *Server) handleAssistTranscription(w http.ResponseWriter, r *http.Request) {
	var req AssistRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	env, err := s.service.ProcessTranscription(r.Context(), orchestrator.TextInput{
		Text:           req.Text,
		Skill:          req.Skill,
		TargetLanguage: req.Language,
	})
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, env)
}

// handleAssistScreenshot handles POST /v1/assist/screenshot
func (s *Server) handleAssistScreenshot(w http.ResponseWriter, r *http.Request) {
	var req ScreenshotRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "image_base64 is not valid base64")
		return
	}

	env, err := s.service.ProcessScreenshot(r.Context(), orchestrator.ScreenshotInput{
		Image:          image,
		MIMEType:       req.MIMEType,
		Prompt:         req.Prompt,
		Skill:          req.Skill,
		TargetLanguage: req.Language,
	})
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, env)
}

// handleUpdateCredentials handles POST /v1/credentials
func (s *Server) handleUpdateCredentials(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.service.UpdateAPIKey(r.Context(), req.APIKey); err != nil {
		if errors.Is(err, config.ErrEmptyCredential) {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "api_key must not be empty")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	slog.Info("Credentials rotated via API")
	s.writeJSON(w, http.StatusOK, s.service.Stats())
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Stats())
}

// withAdminAuth guards an endpoint with the configured admin token
func (s *Server) withAdminAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := s.config.Security.AdminTokenHash
		if hash == "" {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "Admin token is not configured")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "Bearer token required")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid admin token")
			return
		}

		handler(w, r)
	}
}

// decodeBody decodes a JSON request body, enforcing the configured size
// limit. It writes the error response itself and reports success.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if s.config.Server.MaxRequestSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestSize)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return false
	}
	return true
}

// writeProcessError maps pipeline failures onto HTTP status codes
func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	var exhausted *resilience.ExhaustedError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNoContent):
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotInitialized):
		s.writeError(w, http.StatusServiceUnavailable, "not_initialized", "Service is not initialized")
	case errors.As(err, &exhausted):
		s.writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, errType, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Type:    errType,
			Message: message,
		},
	})
}
