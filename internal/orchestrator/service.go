// Package orchestrator is the service facade: it validates state, builds
// the upstream request, drives the retry runner, and degrades to the
// local fallback when the upstream stays unreachable.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptrelay/internal/config"
	"promptrelay/internal/domain"
	"promptrelay/internal/history"
	"promptrelay/internal/prompt"
	"promptrelay/internal/resilience"
	"promptrelay/internal/telemetry"
	"promptrelay/internal/transport"
)

// HistorySource supplies and accumulates rolling conversation context
type HistorySource interface {
	History(ctx context.Context, sessionID string, limit int) ([]domain.ConversationTurn, error)
	Append(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error
}

// SkillSource resolves a skill into its prompt material
type SkillSource interface {
	Context(skillID, targetLanguage string) domain.SkillContext
}

// JournalSink records request outcomes, fire-and-forget
type JournalSink interface {
	Record(entry history.JournalEntry)
}

// TextInput is the payload for text and transcription requests
type TextInput struct {
	Text           string
	Skill          string
	TargetLanguage string
}

// ScreenshotInput is the payload for vision requests
type ScreenshotInput struct {
	Image          []byte
	MIMEType       string
	Prompt         string
	Skill          string
	TargetLanguage string
}

// Service orchestrates one request end to end
type Service struct {
	cfg       *config.Config
	state     *State
	creds     *config.Credentials
	runner    *resilience.Runner
	responder *resilience.Responder
	skills    SkillSource
	history   HistorySource
	journal   JournalSink
	metrics   *telemetry.Metrics
}

// NewService creates the facade with in-memory history and no journal
func NewService(
	cfg *config.Config,
	creds *config.Credentials,
	runner *resilience.Runner,
	responder *resilience.Responder,
	skills SkillSource,
) *Service {
	return NewServiceWithStores(cfg, creds, runner, responder, skills, history.Nop{}, nil, nil)
}

// NewServiceWithStores creates the facade with explicit history, journal,
// and telemetry wiring
func NewServiceWithStores(
	cfg *config.Config,
	creds *config.Credentials,
	runner *resilience.Runner,
	responder *resilience.Responder,
	skills SkillSource,
	historySource HistorySource,
	journal JournalSink,
	metrics *telemetry.Metrics,
) *Service {
	return &Service{
		cfg:       cfg,
		state:     NewState(),
		creds:     creds,
		runner:    runner,
		responder: responder,
		skills:    skills,
		history:   historySource,
		journal:   journal,
		metrics:   metrics,
	}
}

// Initialize validates the credentials and arms the service. Counters
// are untouched, so re-initialization after a credential rotation keeps
// the cumulative totals.
func (s *Service) Initialize(ctx context.Context) error {
	apiKey, model := s.creds.Snapshot()
	if apiKey == "" || model == "" {
		s.state.setInitialized(false)
		return fmt.Errorf("cannot initialize: %w", config.ErrEmptyCredential)
	}

	s.state.setInitialized(true)
	slog.Info("Service initialized", "model", model)

	// Probes are advisory: they report reachability but never gate the
	// request path.
	if targets := s.cfg.Upstream.ProbeTargets; len(targets) > 0 {
		go s.runProbes(s.cfg.Upstream.BaseURL, targets)
	}
	return nil
}

// UpdateAPIKey rotates the upstream credential and re-initializes
func (s *Service) UpdateAPIKey(ctx context.Context, apiKey string) error {
	if err := s.creds.UpdateKey(apiKey); err != nil {
		return err
	}
	s.state.setInitialized(false)
	slog.Info("API key updated, re-initializing")
	return s.Initialize(ctx)
}

// Stats returns a snapshot of the lifecycle flag and counters
func (s *Service) Stats() domain.ServiceStats {
	return s.state.Snapshot()
}

// ProcessText answers a typed question
func (s *Service) ProcessText(ctx context.Context, in TextInput) (domain.ResultEnvelope, error) {
	return s.process(ctx, domain.KindText, prompt.Input{Text: in.Text}, in.Skill, in.TargetLanguage)
}

// ProcessTranscription answers the latest portion of a live transcript
func (s *Service) ProcessTranscription(ctx context.Context, in TextInput) (domain.ResultEnvelope, error) {
	return s.process(ctx, domain.KindTranscription, prompt.Input{Text: in.Text}, in.Skill, in.TargetLanguage)
}

// ProcessScreenshot analyzes a screenshot, optionally with a question
func (s *Service) ProcessScreenshot(ctx context.Context, in ScreenshotInput) (domain.ResultEnvelope, error) {
	return s.process(ctx, domain.KindVision, prompt.Input{
		Text:          in.Prompt,
		Image:         in.Image,
		ImageMIMEType: in.MIMEType,
	}, in.Skill, in.TargetLanguage)
}

// process runs the shared pipeline: validate state, build, deliver with
// retries, and either return the upstream answer or degrade to the local
// fallback. It never returns both an envelope and an error.
func (s *Service) process(ctx context.Context, kind domain.RequestKind, in prompt.Input, skillID, targetLanguage string) (domain.ResultEnvelope, error) {
	if !s.state.Initialized() {
		return domain.ResultEnvelope{}, domain.ErrNotInitialized
	}

	startTime := time.Now()
	requestID := uuid.New().String()
	requestNumber := s.state.NextRequest()

	sc := s.skills.Context(skillID, targetLanguage)

	var recorder *telemetry.RequestRecorder
	if s.metrics != nil {
		recorder = s.metrics.NewRequestRecorder(string(kind), sc.Skill)
	}

	slog.Debug("Processing request",
		"request_id", requestID,
		"kind", kind,
		"skill", sc.Skill,
		"request_number", requestNumber)

	req, err := prompt.Build(kind, in, sc, s.loadHistory(ctx, requestID), targetLanguage)
	if err != nil {
		s.state.RecordError()
		if recorder != nil {
			recorder.RecordError("")
		}
		slog.Warn("Request rejected", "request_id", requestID, "kind", kind, "error", err)
		return domain.ResultEnvelope{}, err
	}

	apiKey, model := s.creds.Snapshot()
	endpoint := transport.Endpoint{BaseURL: s.cfg.Upstream.BaseURL, Model: model, APIKey: apiKey}

	result, runErr := s.runner.Run(ctx, req, endpoint)
	elapsed := time.Since(startTime)

	if runErr == nil {
		s.rememberExchange(ctx, in.Text, result.Text)
		if recorder != nil {
			recorder.RecordSuccess()
		}
		s.record(requestID, kind, sc.Skill, "success", "", result.Attempts, elapsed, false)
		slog.Info("Request completed",
			"request_id", requestID,
			"kind", kind,
			"skill", sc.Skill,
			"attempts", result.Attempts,
			"elapsed_ms", elapsed.Milliseconds())

		return domain.ResultEnvelope{
			Text: result.Text,
			Meta: domain.ResultMeta{
				RequestID:      requestID,
				Kind:           kind,
				Skill:          sc.Skill,
				TargetLanguage: targetLanguage,
				Elapsed:        elapsed,
				ElapsedMs:      elapsed.Milliseconds(),
				RequestNumber:  requestNumber,
				Attempts:       result.Attempts,
			},
		}, nil
	}

	s.state.RecordError()

	var exhausted *resilience.ExhaustedError
	if errors.As(runErr, &exhausted) && s.cfg.Fallback.Enabled {
		text := s.responder.Respond(kind, in.Text, skillID, exhausted.Classification)
		if recorder != nil {
			recorder.RecordFallback(string(exhausted.Classification.Kind))
		}
		s.record(requestID, kind, sc.Skill, "fallback", exhausted.Classification.Kind, exhausted.Attempts, elapsed, true)
		slog.Warn("Serving fallback response",
			"request_id", requestID,
			"kind", kind,
			"classification", exhausted.Classification.Kind,
			"attempts", exhausted.Attempts,
			"error", runErr)

		return domain.ResultEnvelope{
			Text: text,
			Meta: domain.ResultMeta{
				RequestID:      requestID,
				Kind:           kind,
				Skill:          sc.Skill,
				TargetLanguage: targetLanguage,
				Elapsed:        elapsed,
				ElapsedMs:      elapsed.Milliseconds(),
				RequestNumber:  requestNumber,
				Attempts:       exhausted.Attempts,
				UsedFallback:   true,
				FailureKind:    exhausted.Classification.Kind,
			},
		}, nil
	}

	classification := domain.FailureKind("")
	if exhausted != nil {
		classification = exhausted.Classification.Kind
	}
	if recorder != nil {
		recorder.RecordError(string(classification))
	}
	s.record(requestID, kind, sc.Skill, "error", classification, result.Attempts, elapsed, false)
	slog.Error("Request failed",
		"request_id", requestID,
		"kind", kind,
		"attempts", result.Attempts,
		"error", runErr)

	return domain.ResultEnvelope{}, runErr
}

// loadHistory fetches the retained session turns. The builder filters
// and windows them, so the fetch uses the full retention capacity rather
// than the per-kind window.
func (s *Service) loadHistory(ctx context.Context, requestID string) []domain.ConversationTurn {
	limit := s.cfg.History.Capacity
	if limit <= 0 {
		limit = history.DefaultCapacity
	}

	turns, err := s.history.History(ctx, s.cfg.History.SessionID, limit)
	if err != nil {
		slog.Warn("Failed to load conversation history", "request_id", requestID, "error", err)
		return nil
	}
	return turns
}

// rememberExchange stores a successful exchange for future context.
// Fallback answers are deliberately not remembered.
func (s *Service) rememberExchange(ctx context.Context, userText, modelText string) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return
	}

	now := time.Now().UTC()
	err := s.history.Append(ctx, s.cfg.History.SessionID,
		domain.ConversationTurn{Role: domain.RoleUser, Content: userText, Timestamp: now},
		domain.ConversationTurn{Role: domain.RoleModel, Content: modelText, Timestamp: now},
	)
	if err != nil {
		slog.Warn("Failed to append conversation history", "error", err)
	}
}

func (s *Service) record(requestID string, kind domain.RequestKind, skillID, status string, classification domain.FailureKind, attempts int, elapsed time.Duration, usedFallback bool) {
	if s.journal == nil {
		return
	}
	s.journal.Record(history.JournalEntry{
		RequestID:      requestID,
		Kind:           kind,
		Skill:          skillID,
		Status:         status,
		Classification: classification,
		Attempts:       attempts,
		ElapsedMs:      elapsed.Milliseconds(),
		UsedFallback:   usedFallback,
	})
}

func (s *Service) runProbes(baseURL string, targets []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results := []transport.ProbeResult{transport.Preflight(ctx, baseURL)}
	results = append(results, transport.ProbeAll(ctx, targets)...)

	for _, result := range results {
		if result.Reachable() {
			slog.Debug("Probe succeeded", "target", result.Target, "latency", result.Latency)
			if s.metrics != nil {
				s.metrics.RecordProbe(result.Target, result.Latency)
			}
		} else {
			slog.Warn("Probe failed", "target", result.Target, "error", result.Err)
		}
	}
}
