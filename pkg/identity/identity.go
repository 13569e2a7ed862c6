// Package identity defines the core domain model: people recognized by the
// system, the memories recorded about them, and the routines consolidated
// from those memories.
package identity

import "time"

// Status is the lifecycle state of a person.
type Status string

const (
	// StatusTemporary marks a person created from an unrecognized sighting,
	// awaiting caregiver confirmation.
	StatusTemporary Status = "temporary"

	// StatusConfirmed marks a person with a caregiver-verified identity.
	StatusConfirmed Status = "confirmed"
)

// RoutineSource identifies how a routine fact was derived.
type RoutineSource string

const (
	// SourceMemories marks a routine extracted from consolidated memories.
	SourceMemories RoutineSource = "memories"

	// SourceContextualNote marks a routine derived from a caregiver note,
	// used when no memory-derived routines are available.
	SourceContextualNote RoutineSource = "contextual_note"
)

// FamiliarityIncrement is added to a person's familiarity score on every
// saved memory.
const FamiliarityIncrement = 0.05

// Person is the root aggregate. A person owns their memories and routines;
// deleting a person cascades to both and to all vector index entries tagged
// with the person's id.
type Person struct {
	ID             string `json:"id"`
	Status         Status `json:"status"`
	Name           string `json:"name,omitempty"`
	Relation       string `json:"relation,omitempty"`
	ContextualNote string `json:"contextual_note,omitempty"`

	// FamiliarityScore grows by bounded increments on each saved memory,
	// clamped to 1.0.
	FamiliarityScore float64 `json:"familiarity_score"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	LastSeenAt  time.Time  `json:"last_seen_at"`

	// LastMemorySavedAt and LastRoutineAnalysisAt form the dirty/clean pair
	// driving background consolidation: a person is dirty when analysis is
	// unset or strictly older than the last saved memory.
	LastMemorySavedAt     *time.Time `json:"last_memory_saved_at,omitempty"`
	LastRoutineAnalysisAt *time.Time `json:"last_routine_analysis_at,omitempty"`
}

// Dirty reports whether the person's memory state has advanced since the
// last routine consolidation.
func (p *Person) Dirty() bool {
	if p.LastMemorySavedAt == nil {
		return false
	}
	if p.LastRoutineAnalysisAt == nil {
		return true
	}
	return p.LastRoutineAnalysisAt.Before(*p.LastMemorySavedAt)
}

// ClampFamiliarity applies a bounded increment to a familiarity score,
// capping the result at 1.0.
func ClampFamiliarity(score, increment float64) float64 {
	score += increment
	if score > 1.0 {
		return 1.0
	}
	return score
}

// Memory is one recorded interaction with a person. Memories are immutable
// once created except for deletion.
type Memory struct {
	ID       string `json:"id"`
	PersonID string `json:"person_id"`

	// Summary is short derived text, used for display and routine derivation.
	Summary        string `json:"summary"`
	EmotionalTone  string `json:"emotional_tone"`
	ImportantEvent string `json:"important_event,omitempty"`

	// RawTranscript is retained for audit only.
	RawTranscript string `json:"raw_transcript,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Routine is a short, concrete recurring fact about a person. The routine
// set for a person is replaced as a unit on every consolidation.
type Routine struct {
	ID         string        `json:"id"`
	PersonID   string        `json:"person_id"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Source     RoutineSource `json:"source"`
	CreatedAt  time.Time     `json:"created_at"`
}
