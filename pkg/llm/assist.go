package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/utils"
)

// Assist wraps a CallFunc with the prompt set used across the pipeline.
// Every method degrades to a deterministic fallback when the model is
// unreachable or returns garbage; callers never see an error for a prompt
// that has a safe fallback.
type Assist struct {
	call   CallFunc
	logger *zap.Logger
}

// NewAssist creates the prompt layer over a caller.
func NewAssist(call CallFunc, logger *zap.Logger) *Assist {
	return &Assist{call: call, logger: logger}
}

// MemorySummary is the distilled form of a conversation transcript.
type MemorySummary struct {
	Summary        string `json:"summary"`
	EmotionalTone  string `json:"emotional_tone"`
	ImportantEvent string `json:"important_event"`
}

// RoutineCandidate is one extracted routine with the model's confidence.
type RoutineCandidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// FallbackSummary is used when summarization fails.
const FallbackSummary = "A conversation took place."

// SummarizeMemory distills a transcript into a short summary with tone.
// Never returns an error; failures degrade to FallbackSummary.
func (a *Assist) SummarizeMemory(ctx context.Context, personName, transcript string) MemorySummary {
	prompt := fmt.Sprintf(`You summarize conversations for a memory-support system.
The user just had a conversation with %s. Summarize it in one or two sentences,
note the emotional tone, and flag any important event mentioned.

Transcript:
%s

Respond with JSON: {"summary": "...", "emotional_tone": "...", "important_event": "..."}`,
		personName, transcript)

	response, err := a.call(ctx, prompt)
	if err != nil {
		a.logger.Warn("memory summarization failed, using fallback", zap.Error(err))
		return MemorySummary{Summary: FallbackSummary, EmotionalTone: "neutral"}
	}

	var summary MemorySummary
	if err := parseJSON(response, &summary); err != nil || summary.Summary == "" {
		a.logger.Warn("unparseable summary response, using fallback",
			zap.String("response", utils.Truncate(response, 200)),
			zap.Error(err))
		return MemorySummary{Summary: FallbackSummary, EmotionalTone: "neutral"}
	}
	if summary.EmotionalTone == "" {
		summary.EmotionalTone = "neutral"
	}
	return summary
}

// ExtractRoutines derives routine candidates from a window of memory
// summaries. Returns an empty slice when the model finds no stable pattern;
// returns an error only when the call itself fails.
func (a *Assist) ExtractRoutines(ctx context.Context, personName string, summaries []string) ([]RoutineCandidate, error) {
	var b strings.Builder
	for _, s := range summaries {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}

	prompt := fmt.Sprintf(`You find stable behavioral patterns for a memory-support system.
Below are summaries of recent interactions with %s. Extract recurring routines
or facts that hold across multiple interactions. Ignore one-off events. Assign
each a confidence between 0 and 1 based on how consistently it appears.

Interactions:
%s
Respond with JSON: {"routines": [{"text": "...", "confidence": 0.0}]}`,
		personName, b.String())

	response, err := a.call(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("routine extraction: %w", err)
	}

	var parsed struct {
		Routines []RoutineCandidate `json:"routines"`
	}
	if err := parseJSON(response, &parsed); err != nil {
		return nil, fmt.Errorf("routine extraction: %w", err)
	}

	out := parsed.Routines[:0]
	for _, r := range parsed.Routines {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if r.Confidence < 0 {
			r.Confidence = 0
		}
		if r.Confidence > 1 {
			r.Confidence = 1
		}
		out = append(out, r)
	}
	return out, nil
}

// TransformNote rewrites a caregiver's contextual note into a single
// routine statement. Never returns an error; failures degrade to a
// truncated form of the note, or a generic statement when the note is
// empty.
func (a *Assist) TransformNote(ctx context.Context, personName, note string) string {
	if strings.TrimSpace(note) == "" {
		return "You know this person well."
	}

	prompt := fmt.Sprintf(`Rewrite this caregiver note about %s as one short,
reassuring statement of what the user should remember about them.

Note: %s

Respond with JSON: {"text": "..."}`, personName, note)

	response, err := a.call(ctx, prompt)
	if err != nil {
		a.logger.Warn("note transform failed, using fallback", zap.Error(err))
		return truncateWords(note, 8)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := parseJSON(response, &parsed); err != nil || strings.TrimSpace(parsed.Text) == "" {
		a.logger.Warn("unparseable note transform response, using fallback", zap.Error(err))
		return truncateWords(note, 8)
	}
	return parsed.Text
}

// SelectRoutine picks the routine most useful to whisper right now, ranked
// against the latest remembered interaction when one exists. Never returns
// an error; failures degrade to the highest-confidence routine.
func (a *Assist) SelectRoutine(ctx context.Context, personName, recentMemory string, routines []RoutineCandidate) RoutineCandidate {
	if len(routines) == 0 {
		return RoutineCandidate{}
	}
	if len(routines) == 1 {
		return routines[0]
	}

	var b strings.Builder
	for i, r := range routines {
		fmt.Fprintf(&b, "%d. %s (confidence %.2f)\n", i+1, r.Text, r.Confidence)
	}

	memoryLine := ""
	if strings.TrimSpace(recentMemory) != "" {
		memoryLine = fmt.Sprintf("Their most recent interaction: %s\n\n", recentMemory)
	}

	prompt := fmt.Sprintf(`The user is about to interact with %s. %sPick the single
most useful fact to remind them of from this list.

%s
Respond with JSON: {"index": 1}`, personName, memoryLine, b.String())

	best := routines[0]
	for _, r := range routines[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}

	response, err := a.call(ctx, prompt)
	if err != nil {
		a.logger.Warn("routine selection failed, using highest confidence", zap.Error(err))
		return best
	}

	var parsed struct {
		Index int `json:"index"`
	}
	if err := parseJSON(response, &parsed); err != nil || parsed.Index < 1 || parsed.Index > len(routines) {
		a.logger.Warn("unparseable selection response, using highest confidence", zap.Error(err))
		return best
	}
	return routines[parsed.Index-1]
}

// GenerateWhisper composes the short reassurance line spoken when a person
// is recognized. Never returns an error; failures degrade to a static
// template.
func (a *Assist) GenerateWhisper(ctx context.Context, personName, relation, routine string) string {
	fallback := fmt.Sprintf("This is %s. You're safe with them.", personName)

	prompt := fmt.Sprintf(`Compose one short, warm sentence (under 20 words)
reminding the user who this person is. Speak directly to the user.

Name: %s
Relation: %s
Known routine: %s

Respond with JSON: {"text": "..."}`, personName, relation, routine)

	response, err := a.call(ctx, prompt)
	if err != nil {
		a.logger.Warn("whisper generation failed, using fallback", zap.Error(err))
		return fallback
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := parseJSON(response, &parsed); err != nil || strings.TrimSpace(parsed.Text) == "" {
		a.logger.Warn("unparseable whisper response, using fallback",
			zap.String("response", utils.Truncate(response, 200)),
			zap.Error(err))
		return fallback
	}
	return parsed.Text
}

// parseJSON extracts a JSON object from a model response that may be
// wrapped in markdown code blocks.
func parseJSON(response string, v any) error {
	jsonStr := response
	if idx := strings.Index(response, "{"); idx >= 0 {
		endIdx := strings.LastIndex(response, "}")
		if endIdx > idx {
			jsonStr = response[idx : endIdx+1]
		}
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("unmarshal model JSON: %w", err)
	}
	return nil
}

func truncateWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ") + "..."
}
