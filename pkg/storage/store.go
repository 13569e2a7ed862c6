// Package storage defines the entity store interface for persons, memories,
// and routines, along with the error types shared by its drivers.
package storage

import (
	"context"
	"time"

	"github.com/solacelabs/solace/pkg/identity"
)

// PersonUpdate carries optional field updates for a person. Nil fields are
// left untouched.
type PersonUpdate struct {
	Name           *string
	Relation       *string
	ContextualNote *string
	Status         *identity.Status

	// ConfirmedAt is set exactly once, on the transition to confirmed.
	ConfirmedAt *time.Time
}

// PendingPerson is a temporary person awaiting caregiver confirmation,
// annotated with interaction context for the review listing.
type PendingPerson struct {
	Person            *identity.Person
	InteractionCount  int
	LastMemorySummary string
}

// DirtyPerson is a consolidation candidate: a person with at least one
// memory whose routine analysis is missing or stale.
type DirtyPerson struct {
	PersonID    string
	Name        string
	MemoryCount int
}

// Store is the entity store. Implementations must be safe for concurrent
// use. All blocking operations take a context and honor its deadline.
type Store interface {
	// CreatePerson inserts a new person. The caller populates ID and
	// timestamps.
	CreatePerson(ctx context.Context, p *identity.Person) error

	// GetPerson retrieves a person by id, returning NotFoundError if the
	// person does not exist.
	GetPerson(ctx context.Context, id string) (*identity.Person, error)

	// UpdatePerson applies the non-nil fields of upd to a person.
	UpdatePerson(ctx context.Context, id string, upd PersonUpdate) error

	// TouchLastSeen sets the person's last_seen_at to now.
	TouchLastSeen(ctx context.Context, id string, now time.Time) error

	// BumpFamiliarity increments the familiarity score, clamped at 1.0.
	BumpFamiliarity(ctx context.Context, id string, increment float64) error

	// MarkMemorySaved records the time of the latest saved memory, making
	// the person eligible for background consolidation.
	MarkMemorySaved(ctx context.Context, id string, now time.Time) error

	// MarkRoutineAnalysis records a completed consolidation. This is the
	// only write that clears dirtiness.
	MarkRoutineAnalysis(ctx context.Context, id string, now time.Time) error

	// ListPending returns all temporary persons, most recently seen first.
	ListPending(ctx context.Context) ([]PendingPerson, error)

	// ListConfirmed returns all confirmed persons ordered by name.
	ListConfirmed(ctx context.Context) ([]*identity.Person, error)

	// ListDirty returns up to limit consolidation candidates, oldest
	// pending memory first.
	ListDirty(ctx context.Context, limit int) ([]DirtyPerson, error)

	// DeletePerson removes a person and cascades to all owned memories and
	// routines. Returns NotFoundError if the person does not exist.
	DeletePerson(ctx context.Context, id string) error

	// CreateMemory inserts a memory owned by an existing person.
	CreateMemory(ctx context.Context, m *identity.Memory) error

	// RecentMemories returns up to limit memories for a person, newest
	// first.
	RecentMemories(ctx context.Context, personID string, limit int) ([]*identity.Memory, error)

	// MemoryCount returns the number of memories owned by a person.
	MemoryCount(ctx context.Context, personID string) (int, error)

	// DeleteMemory removes a single memory by id.
	DeleteMemory(ctx context.Context, id string) error

	// ReplaceRoutines atomically replaces the person's entire routine set.
	// The routine set is always a unit: delete-all-then-insert-all in one
	// transaction, never a partial merge.
	ReplaceRoutines(ctx context.Context, personID string, routines []*identity.Routine) error

	// Routines returns the person's routine set ordered by confidence,
	// highest first.
	Routines(ctx context.Context, personID string) ([]*identity.Routine, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
