package retry

import (
	"context"
	"time"

	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/storage"
)

// Store decorates a storage.Store so every operation runs under a Policy.
// Transient failures reconnect and retry transparently; not-found and other
// application errors pass straight through.
type Store struct {
	inner  storage.Store
	policy Policy
}

// NewStore wraps inner with the policy.
func NewStore(inner storage.Store, policy Policy) *Store {
	return &Store{inner: inner, policy: policy}
}

func (s *Store) CreatePerson(ctx context.Context, p *identity.Person) error {
	return s.policy.Do(ctx, "create_person", func(ctx context.Context) error {
		return s.inner.CreatePerson(ctx, p)
	})
}

func (s *Store) GetPerson(ctx context.Context, id string) (*identity.Person, error) {
	return Value(ctx, s.policy, "get_person", func(ctx context.Context) (*identity.Person, error) {
		return s.inner.GetPerson(ctx, id)
	})
}

func (s *Store) UpdatePerson(ctx context.Context, id string, upd storage.PersonUpdate) error {
	return s.policy.Do(ctx, "update_person", func(ctx context.Context) error {
		return s.inner.UpdatePerson(ctx, id, upd)
	})
}

func (s *Store) TouchLastSeen(ctx context.Context, id string, now time.Time) error {
	return s.policy.Do(ctx, "touch_last_seen", func(ctx context.Context) error {
		return s.inner.TouchLastSeen(ctx, id, now)
	})
}

func (s *Store) BumpFamiliarity(ctx context.Context, id string, increment float64) error {
	return s.policy.Do(ctx, "bump_familiarity", func(ctx context.Context) error {
		return s.inner.BumpFamiliarity(ctx, id, increment)
	})
}

func (s *Store) MarkMemorySaved(ctx context.Context, id string, now time.Time) error {
	return s.policy.Do(ctx, "mark_memory_saved", func(ctx context.Context) error {
		return s.inner.MarkMemorySaved(ctx, id, now)
	})
}

func (s *Store) MarkRoutineAnalysis(ctx context.Context, id string, now time.Time) error {
	return s.policy.Do(ctx, "mark_routine_analysis", func(ctx context.Context) error {
		return s.inner.MarkRoutineAnalysis(ctx, id, now)
	})
}

func (s *Store) ListPending(ctx context.Context) ([]storage.PendingPerson, error) {
	return Value(ctx, s.policy, "list_pending", func(ctx context.Context) ([]storage.PendingPerson, error) {
		return s.inner.ListPending(ctx)
	})
}

func (s *Store) ListConfirmed(ctx context.Context) ([]*identity.Person, error) {
	return Value(ctx, s.policy, "list_confirmed", func(ctx context.Context) ([]*identity.Person, error) {
		return s.inner.ListConfirmed(ctx)
	})
}

func (s *Store) ListDirty(ctx context.Context, limit int) ([]storage.DirtyPerson, error) {
	return Value(ctx, s.policy, "list_dirty", func(ctx context.Context) ([]storage.DirtyPerson, error) {
		return s.inner.ListDirty(ctx, limit)
	})
}

func (s *Store) DeletePerson(ctx context.Context, id string) error {
	return s.policy.Do(ctx, "delete_person", func(ctx context.Context) error {
		return s.inner.DeletePerson(ctx, id)
	})
}

func (s *Store) CreateMemory(ctx context.Context, m *identity.Memory) error {
	return s.policy.Do(ctx, "create_memory", func(ctx context.Context) error {
		return s.inner.CreateMemory(ctx, m)
	})
}

func (s *Store) RecentMemories(ctx context.Context, personID string, limit int) ([]*identity.Memory, error) {
	return Value(ctx, s.policy, "recent_memories", func(ctx context.Context) ([]*identity.Memory, error) {
		return s.inner.RecentMemories(ctx, personID, limit)
	})
}

func (s *Store) MemoryCount(ctx context.Context, personID string) (int, error) {
	return Value(ctx, s.policy, "memory_count", func(ctx context.Context) (int, error) {
		return s.inner.MemoryCount(ctx, personID)
	})
}

func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	return s.policy.Do(ctx, "delete_memory", func(ctx context.Context) error {
		return s.inner.DeleteMemory(ctx, id)
	})
}

func (s *Store) ReplaceRoutines(ctx context.Context, personID string, routines []*identity.Routine) error {
	return s.policy.Do(ctx, "replace_routines", func(ctx context.Context) error {
		return s.inner.ReplaceRoutines(ctx, personID, routines)
	})
}

func (s *Store) Routines(ctx context.Context, personID string) ([]*identity.Routine, error) {
	return Value(ctx, s.policy, "routines", func(ctx context.Context) ([]*identity.Routine, error) {
		return s.inner.Routines(ctx, personID)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.policy.Do(ctx, "ping", func(ctx context.Context) error {
		return s.inner.Ping(ctx)
	})
}

func (s *Store) Close() error {
	return s.inner.Close()
}
