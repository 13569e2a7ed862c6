package backfill

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/embeddings"
	"github.com/solacelabs/solace/pkg/identity"
	"github.com/solacelabs/solace/pkg/storage/retry"
	"github.com/solacelabs/solace/pkg/vector"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// job is a unit of work for the pool: one memory to embed and upsert.
type job struct {
	Memory *identity.Memory
}

type poolConfig struct {
	Index    vector.Index
	Embedder embeddings.TextEmbedder
	Workers  uint
	Logger   *zap.Logger
}

// pool runs embed-and-upsert jobs across a fixed set of workers so a
// backfill is not bottlenecked on one embedding call at a time.
type pool struct {
	config poolConfig
	queue  chan job
	wg     sync.WaitGroup
	policy retry.Policy

	mu     sync.Mutex
	result *Result
}

func newPool(c poolConfig, result *Result) *pool {
	if c.Workers == 0 {
		c.Workers = defaultNumWorkers
	}

	p := &pool{
		config: c,
		queue:  make(chan job, defaultJobQueueSize),
		policy: retry.New(nil, c.Logger),
		result: result,
	}

	p.wg.Add(int(c.Workers))
	for i := range c.Workers {
		go p.worker(i)
	}

	return p
}

// Enqueue submits a job, blocking when the queue is full. Backfill is a
// batch tool so backpressure is preferred over dropping.
func (p *pool) Enqueue(ctx context.Context, j job) {
	select {
	case p.queue <- j:
	case <-ctx.Done():
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *pool) worker(id uint) {
	defer p.wg.Done()
	p.config.Logger.Debug("backfill worker started", zap.Uint("worker_id", id))

	for j := range p.queue {
		p.process(j)
	}

	p.config.Logger.Debug("backfill worker stopped", zap.Uint("worker_id", id))
}

func (p *pool) process(j job) {
	ctx := context.Background()

	vec, err := p.config.Embedder.Embed(ctx, j.Memory.Summary)
	if err != nil {
		p.fail(j, "embedding memory", err)
		return
	}

	err = p.policy.Do(ctx, "backfill upsert", func(ctx context.Context) error {
		return p.config.Index.UpsertMemory(ctx, vector.MemoryPoint{
			ID:            j.Memory.ID,
			PersonID:      j.Memory.PersonID,
			Summary:       j.Memory.Summary,
			EmotionalTone: j.Memory.EmotionalTone,
			Vector:        vec,
		})
	})
	if err != nil {
		p.fail(j, "upserting memory vector", err)
		return
	}

	p.mu.Lock()
	p.result.Indexed++
	p.mu.Unlock()
}

func (p *pool) fail(j job, msg string, err error) {
	p.config.Logger.Warn(msg,
		zap.String("memory_id", j.Memory.ID),
		zap.String("person_id", j.Memory.PersonID),
		zap.Error(err),
	)
	p.mu.Lock()
	p.result.Failed++
	p.mu.Unlock()
}
