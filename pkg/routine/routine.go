// Package routine consolidates a person's accumulated memories into stable
// routine facts. Consolidation rewrites the full routine set each run;
// partial updates would let stale facts linger after behavior changes.
package routine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/eventstream"
	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/llm"
	"github.com/solacelabs/solace/pkg/storage"
)

const (
	// DefaultMemoryWindow caps how many recent memories feed one
	// consolidation run.
	DefaultMemoryWindow = 50

	// NoteConfidence is assigned when the only source is the caregiver's
	// note and no memories exist yet.
	NoteConfidence = 0.6

	// NoteFallbackConfidence is assigned when memories exist but
	// extraction found no stable pattern in them. Slightly lower than
	// NoteConfidence: the evidence actively failed to support a pattern.
	NoteFallbackConfidence = 0.5
)

// Config holds consolidation tuning.
type Config struct {
	// MemoryWindow caps memories per run. Defaults to
	// DefaultMemoryWindow when zero.
	MemoryWindow int
}

// Engine runs consolidation for one person at a time.
type Engine struct {
	store  storage.Store
	assist *llm.Assist
	events eventstream.Publisher
	window int
	logger *zap.Logger
}

// NewEngine creates a consolidation engine.
func NewEngine(cfg Config, store storage.Store, assist *llm.Assist, events eventstream.Publisher, logger *zap.Logger) *Engine {
	window := cfg.MemoryWindow
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &Engine{
		store:  store,
		assist: assist,
		events: events,
		window: window,
		logger: logger,
	}
}

// Consolidate rebuilds the person's routine set from their recent
// memories. Returns whether the set was replaced. The caller marks the
// analysis timestamp; a failed run must stay eligible for retry.
func (e *Engine) Consolidate(ctx context.Context, personID string) (bool, error) {
	person, err := e.store.GetPerson(ctx, personID)
	if err != nil {
		return false, err
	}

	memories, err := e.store.RecentMemories(ctx, personID, e.window)
	if err != nil {
		return false, fmt.Errorf("loading memories: %w", err)
	}

	if len(memories) == 0 {
		if person.ContextualNote == "" {
			e.logger.Debug("nothing to consolidate",
				zap.String("person_id", personID))
			return false, nil
		}
		text := e.assist.TransformNote(ctx, person.Name, person.ContextualNote)
		return true, e.replace(ctx, person, []*identity.Routine{
			e.newRoutine(personID, text, NoteConfidence, identity.SourceContextualNote),
		})
	}

	summaries := make([]string, 0, len(memories))
	for _, m := range memories {
		summaries = append(summaries, m.Summary)
	}

	candidates, err := e.assist.ExtractRoutines(ctx, person.Name, summaries)
	if err != nil {
		e.logger.Warn("routine extraction failed",
			zap.String("person_id", personID), zap.Error(err))
		candidates = nil
	}

	if len(candidates) == 0 {
		// No stable pattern in the memories. Fall back to the
		// caregiver's note when there is one; otherwise the existing
		// routine set stays as-is rather than being wiped by a bad run.
		if person.ContextualNote == "" {
			e.logger.Debug("no routine candidates, leaving existing set",
				zap.String("person_id", personID))
			return false, nil
		}
		text := e.assist.TransformNote(ctx, person.Name, person.ContextualNote)
		return true, e.replace(ctx, person, []*identity.Routine{
			e.newRoutine(personID, text, NoteFallbackConfidence, identity.SourceContextualNote),
		})
	}

	routines := make([]*identity.Routine, 0, len(candidates))
	for _, c := range candidates {
		routines = append(routines, e.newRoutine(personID, c.Text, c.Confidence, identity.SourceMemories))
	}
	return true, e.replace(ctx, person, routines)
}

func (e *Engine) newRoutine(personID, text string, confidence float64, source identity.RoutineSource) *identity.Routine {
	return &identity.Routine{
		ID:         uuid.NewString(),
		PersonID:   personID,
		Text:       text,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  time.Now().UTC(),
	}
}

func (e *Engine) replace(ctx context.Context, person *identity.Person, routines []*identity.Routine) error {
	if err := e.store.ReplaceRoutines(ctx, person.ID, routines); err != nil {
		return fmt.Errorf("replacing routines: %w", err)
	}

	event := eventstream.NewPersonEvent(eventstream.EventTypeRoutinesUpdated, uuid.NewString(), person.ID)
	event.Name = person.Name
	event.RoutineCount = len(routines)
	if err := e.events.PublishPerson(ctx, event); err != nil {
		e.logger.Warn("publishing event failed",
			zap.String("event_type", event.EventType), zap.Error(err))
	}

	e.logger.Info("routines consolidated",
		zap.String("person_id", person.ID),
		zap.Int("count", len(routines)))
	return nil
}
