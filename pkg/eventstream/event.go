package eventstream

import (
	"time"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypePersonEnrolled is emitted when a new identity is created,
	// whether by a caregiver or by an unknown-face sighting.
	EventTypePersonEnrolled = "solace.person.enrolled"

	// EventTypePersonConfirmed is emitted when a caregiver confirms a
	// temporary identity.
	EventTypePersonConfirmed = "solace.person.confirmed"

	// EventTypePersonDeleted is emitted after an identity and its data
	// have been removed.
	EventTypePersonDeleted = "solace.person.deleted"

	// EventTypeMemorySaved is emitted after a conversation memory is
	// persisted.
	EventTypeMemorySaved = "solace.memory.saved"

	// EventTypeRoutinesUpdated is emitted after consolidation replaces a
	// person's routine set.
	EventTypeRoutinesUpdated = "solace.routines.updated"
)

// PersonEvent is a transport-neutral event payload for identity lifecycle
// changes.
type PersonEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	PersonID string `json:"person_id"`
	Status   string `json:"status,omitempty"`
	Name     string `json:"name,omitempty"`

	// MemoryID is set on memory.saved events.
	MemoryID string `json:"memory_id,omitempty"`

	// RoutineCount is set on routines.updated events.
	RoutineCount int `json:"routine_count,omitempty"`
}

// NewPersonEvent stamps a payload with schema metadata.
func NewPersonEvent(eventType, eventID, personID string) *PersonEvent {
	return &PersonEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       eventID,
		EmittedAt:     time.Now().UTC(),
		PersonID:      personID,
	}
}
