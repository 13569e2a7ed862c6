// Package inmemory provides a brute-force vector index used by tests.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/vector"
)

// Index is a map-backed vector index with exact cosine search.
type Index struct {
	mu       sync.RWMutex
	faces    map[string]vector.FacePoint
	memories map[string]vector.MemoryPoint
	nextID   int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		faces:    make(map[string]vector.FacePoint),
		memories: make(map[string]vector.MemoryPoint),
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (x *Index) UpsertFace(ctx context.Context, point vector.FacePoint) error {
	if len(point.Vector) != vector.FaceDimensions {
		return vector.ErrDimensionMismatch
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if point.ID == "" {
		x.nextID++
		point.ID = fmt.Sprintf("face-%d", x.nextID)
	}
	x.faces[point.ID] = point
	return nil
}

func (x *Index) SearchFace(ctx context.Context, query vector.FaceQuery) (*vector.FaceMatch, error) {
	if len(query.Vector) != vector.FaceDimensions {
		return nil, vector.ErrDimensionMismatch
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	var best *vector.FaceMatch
	for _, p := range x.faces {
		if query.ConfirmedOnly && p.Status != identity.StatusConfirmed {
			continue
		}
		score := cosine(query.Vector, p.Vector)
		if best == nil || score > best.Score {
			best = &vector.FaceMatch{PersonID: p.PersonID, Status: p.Status, Score: score}
		}
	}
	return best, nil
}

func (x *Index) UpsertMemory(ctx context.Context, point vector.MemoryPoint) error {
	if len(point.Vector) != vector.MemoryDimensions {
		return vector.ErrDimensionMismatch
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if point.ID == "" {
		x.nextID++
		point.ID = fmt.Sprintf("memory-%d", x.nextID)
	}
	x.memories[point.ID] = point
	return nil
}

func (x *Index) SearchMemories(ctx context.Context, personID string, vec []float32, limit int) ([]vector.MemoryPoint, error) {
	if len(vec) != vector.MemoryDimensions {
		return nil, vector.ErrDimensionMismatch
	}
	if limit <= 0 {
		limit = 5
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	type scored struct {
		point vector.MemoryPoint
		score float64
	}
	var matches []scored
	for _, p := range x.memories {
		if p.PersonID != personID {
			continue
		}
		matches = append(matches, scored{point: p, score: cosine(vec, p.Vector)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	var out []vector.MemoryPoint
	for i, m := range matches {
		if i >= limit {
			break
		}
		out = append(out, m.point)
	}
	return out, nil
}

func (x *Index) SetPersonStatus(ctx context.Context, personID string, status identity.Status) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, p := range x.faces {
		if p.PersonID == personID {
			p.Status = status
			x.faces[id] = p
		}
	}
	return nil
}

func (x *Index) DeletePerson(ctx context.Context, personID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, p := range x.faces {
		if p.PersonID == personID {
			delete(x.faces, id)
		}
	}
	for id, p := range x.memories {
		if p.PersonID == personID {
			delete(x.memories, id)
		}
	}
	return nil
}

// FaceCount reports the number of stored face points. Test helper.
func (x *Index) FaceCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.faces)
}

// MemoryCount reports the number of stored memory points. Test helper.
func (x *Index) MemoryCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.memories)
}

func (x *Index) Ping(ctx context.Context) error { return nil }

func (x *Index) Close() error { return nil }
