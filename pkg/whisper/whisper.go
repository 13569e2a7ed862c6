// Package whisper composes the short reassurance delivered when a
// confirmed person is recognized. The text is built from the person's
// identity and best routine; audio synthesis is optional and its failure
// degrades to text-only delivery.
package whisper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/llm"
	"github.com/solacelabs/solace/pkg/storage"
)

// Synthesizer turns whisper text into audio.
type Synthesizer interface {
	// Synthesize returns encoded audio for the text, with its MIME type.
	Synthesize(ctx context.Context, text string) ([]byte, string, error)
}

// Whisper is a composed reassurance, ready for delivery.
type Whisper struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	Relation string `json:"relation,omitempty"`
	Text     string `json:"text"`

	// RoutineText is the routine the whisper was built from, when one
	// existed.
	RoutineText string `json:"routine_text,omitempty"`

	// Audio is present only when a synthesizer is configured and
	// succeeded.
	Audio     []byte `json:"audio,omitempty"`
	AudioMIME string `json:"audio_mime,omitempty"`
}

// Composer builds whispers for confirmed persons.
type Composer struct {
	store  storage.Store
	assist *llm.Assist
	synth  Synthesizer
	logger *zap.Logger
}

// NewComposer creates a composer. synth may be nil for text-only mode.
func NewComposer(store storage.Store, assist *llm.Assist, synth Synthesizer, logger *zap.Logger) *Composer {
	return &Composer{store: store, assist: assist, synth: synth, logger: logger}
}

// Compose builds the whisper for a person. Only confirmed persons can be
// whispered about; temporary identities have no caregiver-verified name to
// speak.
func (c *Composer) Compose(ctx context.Context, personID string) (*Whisper, error) {
	person, err := c.store.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	if person.Status != identity.StatusConfirmed {
		return nil, fmt.Errorf("person %s is not confirmed", personID)
	}

	routines, err := c.store.Routines(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("loading routines: %w", err)
	}

	var routineText string
	if len(routines) > 0 {
		candidates := make([]llm.RoutineCandidate, 0, len(routines))
		for _, r := range routines {
			candidates = append(candidates, llm.RoutineCandidate{Text: r.Text, Confidence: r.Confidence})
		}
		routineText = c.assist.SelectRoutine(ctx, person.Name, c.recentMemory(ctx, personID), candidates).Text
	}

	text := c.assist.GenerateWhisper(ctx, person.Name, person.Relation, routineText)

	w := &Whisper{
		PersonID:    person.ID,
		Name:        person.Name,
		Relation:    person.Relation,
		Text:        text,
		RoutineText: routineText,
	}

	if c.synth != nil {
		audio, mime, err := c.synth.Synthesize(ctx, text)
		if err != nil {
			c.logger.Warn("audio synthesis failed, delivering text only",
				zap.String("person_id", personID), zap.Error(err))
		} else {
			w.Audio = audio
			w.AudioMIME = mime
		}
	}

	return w, nil
}

// recentMemory returns the latest memory summary for routine ranking, or
// empty when there is none. A load failure only costs the ranking context.
func (c *Composer) recentMemory(ctx context.Context, personID string) string {
	memories, err := c.store.RecentMemories(ctx, personID, 1)
	if err != nil {
		c.logger.Warn("loading recent memory failed",
			zap.String("person_id", personID), zap.Error(err))
		return ""
	}
	if len(memories) == 0 {
		return ""
	}
	return memories[0].Summary
}
