// Package prompt assembles upstream completion requests for each
// request kind: plain text questions, live transcript excerpts, and
// screenshot analysis.
package prompt

import (
	"fmt"
	"strings"

	"promptrelay/internal/domain"
)

// transcriptionRecentCap bounds how many eligible transcript turns ride
// along even when the history window would allow more
const transcriptionRecentCap = 8

// defaultImageMIMEType is assumed when the caller does not say what the
// screenshot bytes are
const defaultImageMIMEType = "image/png"

// defaultVisionPrompt stands in when a screenshot arrives without a
// question attached
const defaultVisionPrompt = "Analyze this screenshot and describe what you see."

// visionSystemPrompt is the base instruction for screenshot requests.
// The full instruction is synthesized per request from the active skill
// and target language rather than taken from the skill's own prompt:
// screen analysis has one job regardless of the active skill.
const visionSystemPrompt = "You are a screen analysis assistant. Describe what the screenshot shows, read any visible text accurately, and answer the user's question about it when one is asked. Be concise and concrete."

// filteringInstruction rides along with transcript requests so the model
// ignores speech that was never addressed to it
const filteringInstruction = "\n\nThe text you receive is a live transcript and may contain filler, partial sentences, or speech that is not addressed to you. First decide whether the most recent portion contains a question or request you should answer. If it does, answer it directly. If it does not, reply with a single short acknowledgement instead of inventing an answer."

var generationDefaults = map[domain.RequestKind]domain.GenerationParameters{
	domain.KindText:          {Temperature: 0.7, MaxOutputTokens: 2048, TopK: 40, TopP: 0.95},
	domain.KindTranscription: {Temperature: 0.6, MaxOutputTokens: 1536, TopK: 40, TopP: 0.95},
	domain.KindVision:        {Temperature: 0.4, MaxOutputTokens: 2048, TopK: 32, TopP: 0.9},
}

// Input carries the raw material for one request
type Input struct {
	Text          string
	Image         []byte
	ImageMIMEType string
}

// Build assembles the completion request for the given kind
func Build(kind domain.RequestKind, in Input, sc domain.SkillContext, history []domain.ConversationTurn, targetLanguage string) (domain.CompletionRequest, error) {
	var (
		req domain.CompletionRequest
		err error
	)

	switch kind {
	case domain.KindText:
		req, err = buildText(in, sc, history)
	case domain.KindTranscription:
		req, err = buildTranscription(in, sc, history)
	case domain.KindVision:
		req, err = buildVision(in, sc, history, targetLanguage)
	default:
		return domain.CompletionRequest{}, fmt.Errorf("unknown request kind %q", kind)
	}
	if err != nil {
		return domain.CompletionRequest{}, err
	}

	if len(req.Turns) == 0 {
		return domain.CompletionRequest{}, domain.ErrNoContent
	}
	return req, nil
}

func buildText(in Input, sc domain.SkillContext, history []domain.ConversationTurn) (domain.CompletionRequest, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.CompletionRequest{}, domain.ErrInvalidInput
	}

	turns := historyTurns(history, domain.KindText)
	turns = append(turns, domain.Turn{Role: domain.RoleUser, Parts: []domain.Part{{Text: text}}})

	return domain.CompletionRequest{
		SystemInstruction: sc.SystemPrompt,
		Turns:             turns,
		Generation:        generationDefaults[domain.KindText],
	}, nil
}

func buildTranscription(in Input, sc domain.SkillContext, history []domain.ConversationTurn) (domain.CompletionRequest, error) {
	transcript := strings.TrimSpace(in.Text)
	if transcript == "" {
		return domain.CompletionRequest{}, domain.ErrInvalidInput
	}

	turns := historyTurns(history, domain.KindTranscription)
	turns = append(turns, domain.Turn{Role: domain.RoleUser, Parts: []domain.Part{{Text: transcript}}})

	return domain.CompletionRequest{
		SystemInstruction: sc.SystemPrompt + filteringInstruction,
		Turns:             turns,
		Generation:        generationDefaults[domain.KindTranscription],
	}, nil
}

func buildVision(in Input, sc domain.SkillContext, history []domain.ConversationTurn, targetLanguage string) (domain.CompletionRequest, error) {
	if len(in.Image) == 0 {
		return domain.CompletionRequest{}, domain.ErrInvalidInput
	}

	promptText := strings.TrimSpace(in.Text)
	if promptText == "" {
		promptText = defaultVisionPrompt
	}

	mime := in.ImageMIMEType
	if mime == "" {
		mime = defaultImageMIMEType
	}

	turns := historyTurns(history, domain.KindVision)
	// The image leads the user turn so the model reads the screenshot
	// before the question about it.
	turns = append(turns, domain.Turn{
		Role: domain.RoleUser,
		Parts: []domain.Part{
			{InlineData: &domain.Blob{MIMEType: mime, Data: in.Image}},
			{Text: promptText},
		},
	})

	return domain.CompletionRequest{
		SystemInstruction: visionInstruction(sc, targetLanguage),
		Turns:             turns,
		Generation:        generationDefaults[domain.KindVision],
	}, nil
}

// visionInstruction composes the screenshot instruction from the active
// skill and target language. The skill's own system prompt is not reused;
// only its identity flavors the instruction.
func visionInstruction(sc domain.SkillContext, targetLanguage string) string {
	var b strings.Builder
	b.WriteString(visionSystemPrompt)

	if sc.Skill != "" {
		fmt.Fprintf(&b, " The user is currently focused on %s topics, so read the screen with that in mind.", sc.Skill)
	}
	if sc.RequiresLanguageDirective && targetLanguage != "" {
		fmt.Fprintf(&b, " Write any code in %s unless the screenshot shows another language.", targetLanguage)
	}
	return b.String()
}

// historyTurns filters, windows, and role-maps stored conversation turns.
// Filtering happens before windowing so ineligible turns never eat into
// the window; the transcription cap applies after both.
func historyTurns(history []domain.ConversationTurn, kind domain.RequestKind) []domain.Turn {
	eligible := make([]domain.ConversationTurn, 0, len(history))
	for _, turn := range history {
		if turn.Eligible() {
			eligible = append(eligible, turn)
		}
	}

	window := kind.HistoryWindow()
	if len(eligible) > window {
		eligible = eligible[len(eligible)-window:]
	}

	if kind == domain.KindTranscription && len(eligible) > transcriptionRecentCap {
		eligible = eligible[len(eligible)-transcriptionRecentCap:]
	}

	turns := make([]domain.Turn, 0, len(eligible))
	for _, turn := range eligible {
		turns = append(turns, domain.Turn{
			Role:  turn.UpstreamRole(),
			Parts: []domain.Part{{Text: turn.Content}},
		})
	}
	return turns
}
