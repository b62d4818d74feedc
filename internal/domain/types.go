// Package domain defines core domain types for the PromptRelay assistant gateway.
package domain

import (
	"time"
)

// =============================================================================
// Request Kinds
// =============================================================================

// RequestKind identifies the shape of an assistance request
type RequestKind string

const (
	KindText          RequestKind = "text"
	KindTranscription RequestKind = "transcription"
	KindVision        RequestKind = "vision"
)

// AllRequestKinds returns all supported request kinds
func AllRequestKinds() []RequestKind {
	return []RequestKind{KindText, KindTranscription, KindVision}
}

// HistoryWindow returns how many trailing conversation turns a request
// of this kind carries upstream
func (k RequestKind) HistoryWindow() int {
	switch k {
	case KindText:
		return 15
	case KindTranscription:
		return 10
	case KindVision:
		return 5
	default:
		return 0
	}
}

// Valid reports whether the kind is one of the supported request kinds
func (k RequestKind) Valid() bool {
	switch k {
	case KindText, KindTranscription, KindVision:
		return true
	}
	return false
}

// =============================================================================
// Conversation Types
// =============================================================================

// Roles carried on conversation turns. The upstream wire contract only
// distinguishes the model from everything else, so any role that is not
// RoleModel is sent as RoleUser.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// Blob holds inline binary content for a multimodal turn
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is a single piece of turn content: text, inline data, or both
type Part struct {
	Text       string
	InlineData *Blob
}

// Turn is one exchange entry in the upstream conversation payload
type Turn struct {
	Role  string
	Parts []Part
}

// ConversationTurn is a stored history entry as the caller recorded it,
// before any filtering or role mapping
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Eligible reports whether a stored turn may be forwarded upstream.
// System-authored turns and turns with no content are dropped.
func (t ConversationTurn) Eligible() bool {
	return t.Role != RoleSystem && t.Content != ""
}

// UpstreamRole maps a stored role onto the two-role upstream contract
func (t ConversationTurn) UpstreamRole() string {
	if t.Role == RoleModel {
		return RoleModel
	}
	return RoleUser
}

// =============================================================================
// Completion Request
// =============================================================================

// GenerationParameters tune upstream text generation
type GenerationParameters struct {
	Temperature     float64
	MaxOutputTokens int
	TopK            int
	TopP            float64
}

// CompletionRequest is the fully assembled upstream request: a system
// instruction, ordered conversation turns ending with the live turn, and
// generation parameters. Both transport executors serialize it onto the
// same wire contract.
type CompletionRequest struct {
	SystemInstruction string
	Turns             []Turn
	Generation        GenerationParameters
}

// =============================================================================
// Skill Context
// =============================================================================

// SkillContext is the per-skill prompt material resolved for a request
type SkillContext struct {
	Skill                     string
	SystemPrompt              string
	RequiresLanguageDirective bool
}

// =============================================================================
// Results
// =============================================================================

// ResultMeta describes how a response was produced
type ResultMeta struct {
	RequestID      string        `json:"request_id"`
	Kind           RequestKind   `json:"kind"`
	Skill          string        `json:"skill,omitempty"`
	TargetLanguage string        `json:"target_language,omitempty"`
	Elapsed        time.Duration `json:"-"`
	ElapsedMs      int64         `json:"elapsed_ms"`
	RequestNumber  uint64        `json:"request_number"`
	Attempts       int           `json:"attempts"`
	UsedFallback   bool          `json:"used_fallback"`
	FailureKind    FailureKind   `json:"failure_kind,omitempty"`
}

// ResultEnvelope is the terminal outcome of an assistance request: either
// upstream text or a locally generated fallback, plus request metadata
type ResultEnvelope struct {
	Text string     `json:"text"`
	Meta ResultMeta `json:"meta"`
}

// =============================================================================
// Failure Classification
// =============================================================================

// FailureKind buckets an upstream failure for retry pacing, fallback
// wording, and telemetry
type FailureKind string

const (
	FailureNetwork FailureKind = "NETWORK"
	FailureAuth    FailureKind = "AUTH"
	FailureQuota   FailureKind = "QUOTA"
	FailureTimeout FailureKind = "TIMEOUT"
	FailureUnknown FailureKind = "UNKNOWN"
)

// ErrorClassification is the classifier's advisory verdict on a failure.
// Retryable and QuotaExhausted steer backoff pacing and fallback wording;
// they never short-circuit the retry budget.
type ErrorClassification struct {
	Kind           FailureKind
	Retryable      bool
	QuotaExhausted bool
	Remediation    string
}

// =============================================================================
// Service State
// =============================================================================

// ServiceStats is a point-in-time snapshot of orchestrator counters
type ServiceStats struct {
	Initialized   bool   `json:"initialized"`
	RequestsTotal uint64 `json:"requests_total"`
	ErrorsTotal   uint64 `json:"errors_total"`
}
