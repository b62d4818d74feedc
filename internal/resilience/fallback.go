package resilience

import (
	"fmt"
	"strings"

	"promptrelay/internal/domain"
	"promptrelay/internal/skill"
)

// questionIndicators mark input that reads like a direct question
var questionIndicators = []string{
	"how", "what", "why", "when", "which", "can you", "could",
}

// Responder produces a local answer when every upstream attempt has
// failed. The wording depends on why delivery failed and what the user
// was in the middle of.
type Responder struct {
	registry *skill.Registry
	matcher  *skill.Matcher
}

// NewResponder builds a Responder. A nil registry or matcher falls back
// to the built-in skill set and default matching threshold.
func NewResponder(registry *skill.Registry, matcher *skill.Matcher) *Responder {
	if registry == nil {
		registry = skill.NewRegistry()
	}
	if matcher == nil {
		matcher = skill.NewMatcher(skill.DefaultMatchThreshold)
	}
	return &Responder{registry: registry, matcher: matcher}
}

// Respond builds the fallback text for a failed request. Quota
// exhaustion names its remedy before any other consideration; vision
// requests get a generic line because there is no prompt text worth
// echoing back.
func (r *Responder) Respond(kind domain.RequestKind, input, skillID string, class domain.ErrorClassification) string {
	if class.QuotaExhausted {
		return "The assistant is out of API quota right now. Rotate to a fresh API key in settings, or wait for the quota window to reset, then try again."
	}

	if kind == domain.KindVision {
		return "I can't analyze the screen right now because the image service is unreachable. Please try again in a moment."
	}

	def := r.registry.Resolve(skillID)
	name := def.Name
	if name == "" {
		name = def.ID
	}

	if looksLikeQuestion(input) || r.matcher.MatchesAny(input, def.Keywords) {
		return fmt.Sprintf("I couldn't reach the model to answer your %s question. Please repeat or rephrase it in a moment and I'll pick it up.", name)
	}

	return fmt.Sprintf("I'm still listening for %s topics. The connection hiccuped, so say that again if you wanted an answer.", name)
}

// looksLikeQuestion is a cheap heuristic: a question mark anywhere, or
// an interrogative word at a word boundary.
func looksLikeQuestion(input string) bool {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return false
	}
	if strings.Contains(text, "?") {
		return true
	}

	for _, ind := range questionIndicators {
		if text == ind || strings.HasPrefix(text, ind+" ") || strings.Contains(text, " "+ind+" ") {
			return true
		}
	}
	return false
}
