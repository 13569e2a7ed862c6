// Package vector defines the vector index abstraction used for face and
// memory embeddings.
package vector

import (
	"context"

	"github.com/solacelabs/solace/pkg/identity"
)

// Collection names a vector collection.
type Collection string

const (
	// Faces holds face embeddings, one point per sighting.
	Faces Collection = "faces"

	// Memories holds memory embeddings, one point per saved memory.
	Memories Collection = "memories"
)

// FaceDimensions is the face embedding size.
const FaceDimensions = 512

// MemoryDimensions is the memory text embedding size.
const MemoryDimensions = 384

// FacePoint is a stored face embedding.
type FacePoint struct {
	ID       string
	PersonID string
	Status   identity.Status
	Vector   []float32
}

// MemoryPoint is a stored memory embedding.
type MemoryPoint struct {
	ID            string
	PersonID      string
	Summary       string
	EmotionalTone string
	Vector        []float32
}

// FaceMatch is a nearest-neighbor result from the face collection.
type FaceMatch struct {
	PersonID string
	Status   identity.Status
	Score    float64
}

// FaceQuery controls a face search.
type FaceQuery struct {
	Vector []float32

	// ConfirmedOnly restricts the search to points whose person has been
	// confirmed.
	ConfirmedOnly bool
}

// Index is the vector store driver.
type Index interface {
	// UpsertFace stores a face embedding tagged with the owning person.
	UpsertFace(ctx context.Context, point FacePoint) error

	// SearchFace returns the single nearest face, or nil when the
	// collection has no matching points.
	SearchFace(ctx context.Context, query FaceQuery) (*FaceMatch, error)

	// UpsertMemory stores a memory embedding.
	UpsertMemory(ctx context.Context, point MemoryPoint) error

	// SearchMemories returns up to limit memory points for a person,
	// nearest first.
	SearchMemories(ctx context.Context, personID string, vec []float32, limit int) ([]MemoryPoint, error)

	// SetPersonStatus rewrites the status payload on every face point
	// owned by the person. Called when a person is confirmed so the
	// confirmed-only search filter starts matching them.
	SetPersonStatus(ctx context.Context, personID string, status identity.Status) error

	// DeletePerson removes every point owned by the person from both
	// collections.
	DeletePerson(ctx context.Context, personID string) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}
