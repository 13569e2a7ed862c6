// Package inmemory provides an in-memory entity store used by tests.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/storage"
)

// Store is a map-backed entity store. All methods are safe for concurrent
// use.
type Store struct {
	mu       sync.RWMutex
	persons  map[string]*identity.Person
	memories map[string]*identity.Memory
	routines map[string][]*identity.Routine
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		persons:  make(map[string]*identity.Person),
		memories: make(map[string]*identity.Memory),
		routines: make(map[string][]*identity.Routine),
	}
}

func clonePerson(p *identity.Person) *identity.Person {
	c := *p
	if p.ConfirmedAt != nil {
		t := *p.ConfirmedAt
		c.ConfirmedAt = &t
	}
	if p.LastMemorySavedAt != nil {
		t := *p.LastMemorySavedAt
		c.LastMemorySavedAt = &t
	}
	if p.LastRoutineAnalysisAt != nil {
		t := *p.LastRoutineAnalysisAt
		c.LastRoutineAnalysisAt = &t
	}
	return &c
}

func (s *Store) CreatePerson(ctx context.Context, p *identity.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = clonePerson(p)
	return nil
}

func (s *Store) GetPerson(ctx context.Context, id string) (*identity.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, storage.PersonNotFound(id)
	}
	return clonePerson(p), nil
}

func (s *Store) UpdatePerson(ctx context.Context, id string, upd storage.PersonUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return storage.PersonNotFound(id)
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Relation != nil {
		p.Relation = *upd.Relation
	}
	if upd.ContextualNote != nil {
		p.ContextualNote = *upd.ContextualNote
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	if upd.ConfirmedAt != nil {
		t := *upd.ConfirmedAt
		p.ConfirmedAt = &t
	}
	return nil
}

func (s *Store) TouchLastSeen(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return storage.PersonNotFound(id)
	}
	p.LastSeenAt = now
	return nil
}

func (s *Store) BumpFamiliarity(ctx context.Context, id string, increment float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return storage.PersonNotFound(id)
	}
	p.FamiliarityScore = identity.ClampFamiliarity(p.FamiliarityScore, increment)
	return nil
}

func (s *Store) MarkMemorySaved(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return storage.PersonNotFound(id)
	}
	t := now
	p.LastMemorySavedAt = &t
	return nil
}

func (s *Store) MarkRoutineAnalysis(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return storage.PersonNotFound(id)
	}
	t := now
	p.LastRoutineAnalysisAt = &t
	return nil
}

func (s *Store) ListPending(ctx context.Context) ([]storage.PendingPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.PendingPerson
	for _, p := range s.persons {
		if p.Status != identity.StatusTemporary {
			continue
		}
		pending := storage.PendingPerson{Person: clonePerson(p)}
		var latest *identity.Memory
		for _, m := range s.memories {
			if m.PersonID != p.ID {
				continue
			}
			pending.InteractionCount++
			if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
				latest = m
			}
		}
		if latest != nil {
			pending.LastMemorySummary = latest.Summary
		}
		out = append(out, pending)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Person.LastSeenAt.After(out[j].Person.LastSeenAt)
	})
	return out, nil
}

func (s *Store) ListConfirmed(ctx context.Context) ([]*identity.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*identity.Person
	for _, p := range s.persons {
		if p.Status == identity.StatusConfirmed {
			out = append(out, clonePerson(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListDirty(ctx context.Context, limit int) ([]storage.DirtyPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	type cand struct {
		d       storage.DirtyPerson
		savedAt time.Time
	}
	var cands []cand
	for _, p := range s.persons {
		if !p.Dirty() {
			continue
		}
		count := 0
		for _, m := range s.memories {
			if m.PersonID == p.ID {
				count++
			}
		}
		if count == 0 {
			continue
		}
		cands = append(cands, cand{
			d:       storage.DirtyPerson{PersonID: p.ID, Name: p.Name, MemoryCount: count},
			savedAt: *p.LastMemorySavedAt,
		})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].savedAt.Before(cands[j].savedAt) })

	var out []storage.DirtyPerson
	for i, c := range cands {
		if i >= limit {
			break
		}
		out = append(out, c.d)
	}
	return out, nil
}

func (s *Store) DeletePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[id]; !ok {
		return storage.PersonNotFound(id)
	}
	delete(s.persons, id)
	for mid, m := range s.memories {
		if m.PersonID == id {
			delete(s.memories, mid)
		}
	}
	delete(s.routines, id)
	return nil
}

func (s *Store) CreateMemory(ctx context.Context, m *identity.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *m
	s.memories[m.ID] = &c
	return nil
}

func (s *Store) RecentMemories(ctx context.Context, personID string, limit int) ([]*identity.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	var out []*identity.Memory
	for _, m := range s.memories {
		if m.PersonID == personID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MemoryCount(ctx context.Context, personID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.memories {
		if m.PersonID == personID {
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[id]; !ok {
		return storage.MemoryNotFound(id)
	}
	delete(s.memories, id)
	return nil
}

func (s *Store) ReplaceRoutines(ctx context.Context, personID string, routines []*identity.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make([]*identity.Routine, 0, len(routines))
	for _, r := range routines {
		c := *r
		replaced = append(replaced, &c)
	}
	s.routines[personID] = replaced
	return nil
}

func (s *Store) Routines(ctx context.Context, personID string) ([]*identity.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*identity.Routine
	for _, r := range s.routines[personID] {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
