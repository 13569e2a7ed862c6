// Package backfill rebuilds the memory vector collection from the entity
// store. It exists for recovery: when the vector store is wiped, replaced,
// or was unreachable while memories were being saved, a backfill re-embeds
// every stored memory summary and upserts it into the index.
package backfill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/embeddings"
	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/storage"
	"github.com/solacelabs/solace/pkg/vector"
)

// memoriesPerPerson bounds how many memories are re-indexed for a single
// person, newest first. Matches the upper range of what search ever reads.
const memoriesPerPerson = 500

// Options configures backfill behavior.
type Options struct {
	// DryRun counts what would be re-indexed without embedding or writing.
	DryRun bool

	// Workers is the number of concurrent embed-and-upsert workers.
	Workers uint
}

// Backfiller re-embeds stored memories into the vector index.
type Backfiller struct {
	store    storage.Store
	index    vector.Index
	embedder embeddings.TextEmbedder
	options  Options
	logger   *zap.Logger
}

// New creates a Backfiller over already-open drivers. The caller owns the
// driver lifecycles.
func New(store storage.Store, index vector.Index, embedder embeddings.TextEmbedder, opts Options, logger *zap.Logger) *Backfiller {
	return &Backfiller{
		store:    store,
		index:    index,
		embedder: embedder,
		options:  opts,
		logger:   logger,
	}
}

// Run walks every person in the store and re-indexes their memories.
func (b *Backfiller) Run(ctx context.Context) (*Result, error) {
	persons, err := b.allPersons(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Persons: len(persons)}

	if b.options.DryRun {
		for _, p := range persons {
			count, err := b.store.MemoryCount(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("counting memories for %s: %w", p.ID, err)
			}
			result.Scanned += count
		}
		return result, nil
	}

	pool := newPool(poolConfig{
		Index:    b.index,
		Embedder: b.embedder,
		Workers:  b.options.Workers,
		Logger:   b.logger,
	}, result)

	for _, p := range persons {
		memories, err := b.store.RecentMemories(ctx, p.ID, memoriesPerPerson)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("listing memories for %s: %w", p.ID, err)
		}

		for _, m := range memories {
			result.Scanned++
			if m.Summary == "" {
				result.Skipped++
				continue
			}
			pool.Enqueue(ctx, job{Memory: m})
		}
	}

	pool.Close()

	b.logger.Info("backfill complete",
		zap.Int("persons", result.Persons),
		zap.Int("scanned", result.Scanned),
		zap.Int("indexed", result.Indexed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

// allPersons returns every person regardless of lifecycle status.
func (b *Backfiller) allPersons(ctx context.Context) ([]*identity.Person, error) {
	confirmed, err := b.store.ListConfirmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing confirmed persons: %w", err)
	}

	pending, err := b.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending persons: %w", err)
	}

	persons := make([]*identity.Person, 0, len(confirmed)+len(pending))
	persons = append(persons, confirmed...)
	for _, p := range pending {
		persons = append(persons, p.Person)
	}
	return persons, nil
}
