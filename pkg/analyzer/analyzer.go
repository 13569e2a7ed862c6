// Package analyzer polls for persons whose memories have outrun their last
// consolidation and runs the routine engine over them in the background.
package analyzer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/keylock"
	"github.com/solacelabs/solace/pkg/routine"
	"github.com/solacelabs/solace/pkg/storage"
)

const (
	// DefaultInterval is the poll cadence.
	DefaultInterval = 30 * time.Second

	// DefaultBatchSize caps candidates consolidated per tick.
	DefaultBatchSize = 5

	// DefaultCandidateTimeout bounds one person's consolidation.
	DefaultCandidateTimeout = 2 * time.Minute

	// DefaultCandidateCap bounds how many dirty persons one tick fetches.
	// Fetching more than the batch size keeps deferred candidates from
	// consuming batch slots.
	DefaultCandidateCap = 10
)

// Config holds analyzer tuning.
type Config struct {
	// Interval between polls. Defaults to DefaultInterval when zero.
	Interval time.Duration

	// BatchSize caps consolidations per tick. Deferred candidates do not
	// count against it. Defaults to DefaultBatchSize when zero.
	BatchSize int

	// CandidateTimeout bounds one consolidation run. Defaults to
	// DefaultCandidateTimeout when zero.
	CandidateTimeout time.Duration

	// RequireEvenCount skips candidates with an odd number of memories,
	// deferring them one tick until the pair completes. Off by default.
	RequireEvenCount bool
}

// Analyzer is the background consolidation scheduler.
type Analyzer struct {
	cfg    Config
	store  storage.Store
	engine *routine.Engine
	locks  *keylock.KeyLock
	logger *zap.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// New creates an analyzer.
func New(cfg Config, store storage.Store, engine *routine.Engine, locks *keylock.KeyLock, logger *zap.Logger) *Analyzer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.CandidateTimeout <= 0 {
		cfg.CandidateTimeout = DefaultCandidateTimeout
	}
	return &Analyzer{
		cfg:    cfg,
		store:  store,
		engine: engine,
		locks:  locks,
		logger: logger,
	}
}

// Progress returns how many candidates have been processed and how many of
// those failed.
func (a *Analyzer) Progress() (processed, failed int) {
	return int(a.processed.Load()), int(a.failed.Load())
}

// Run polls until the context is cancelled. An in-progress candidate is
// finished before returning; cancellation is honored between candidates
// and through each candidate's own context deadline.
func (a *Analyzer) Run(ctx context.Context) {
	a.logger.Info("analyzer started",
		zap.Duration("interval", a.cfg.Interval),
		zap.Int("batch_size", a.cfg.BatchSize))

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("analyzer stopped")
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick runs one poll cycle. Candidates are processed sequentially; the LLM
// behind the engine is the bottleneck and parallel runs would just contend
// for it.
func (a *Analyzer) tick(ctx context.Context) {
	fetch := DefaultCandidateCap
	if a.cfg.BatchSize > fetch {
		fetch = a.cfg.BatchSize
	}
	candidates, err := a.store.ListDirty(ctx, fetch)
	if err != nil {
		a.logger.Warn("listing consolidation candidates failed", zap.Error(err))
		return
	}
	if len(candidates) == 0 {
		return
	}

	a.logger.Debug("consolidation tick", zap.Int("candidates", len(candidates)))

	started := 0
	for _, candidate := range candidates {
		if started >= a.cfg.BatchSize {
			return
		}
		if ctx.Err() != nil {
			return
		}
		if a.process(ctx, candidate) {
			started++
		}
	}
}

// process consolidates one candidate. It reports false when the candidate
// was deferred without work, so deferrals do not consume batch slots.

func (a *Analyzer) process(ctx context.Context, candidate storage.DirtyPerson) bool {
	if a.cfg.RequireEvenCount && candidate.MemoryCount%2 != 0 {
		a.logger.Debug("deferring candidate with odd memory count",
			zap.String("person_id", candidate.PersonID),
			zap.Int("memory_count", candidate.MemoryCount))
		return false
	}

	// Skip anyone currently being confirmed, deleted, or consolidated.
	// They stay dirty and the next tick picks them up.
	if !a.locks.TryLock(candidate.PersonID) {
		a.logger.Debug("candidate busy, deferring",
			zap.String("person_id", candidate.PersonID))
		return false
	}
	defer a.locks.Unlock(candidate.PersonID)

	// Shutdown cancels the loop between candidates, never mid-candidate.
	// The timeout is the only bound on a started consolidation.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.CandidateTimeout)
	defer cancel()

	start := time.Now()
	changed, err := a.engine.Consolidate(runCtx, candidate.PersonID)
	a.processed.Add(1)
	if err != nil {
		a.failed.Add(1)
		a.logger.Warn("consolidation failed",
			zap.String("person_id", candidate.PersonID),
			zap.Error(err))
		return true
	}

	// Mark only after success so failed runs stay eligible for retry.
	if err := a.store.MarkRoutineAnalysis(runCtx, candidate.PersonID, time.Now().UTC()); err != nil {
		a.logger.Warn("marking analysis time failed",
			zap.String("person_id", candidate.PersonID), zap.Error(err))
	}

	a.logger.Info("candidate consolidated",
		zap.String("person_id", candidate.PersonID),
		zap.Bool("changed", changed),
		zap.Duration("took", time.Since(start)))
	return true
}
