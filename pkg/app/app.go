// Package app wires the full service graph from configuration. The serve
// commands (api, worker, combined) share this construction so the two
// processes always agree on drivers and tuning.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/analyzer"
	"github.com/solacelabs/solace/pkg/config"
	"github.com/solacelabs/solace/pkg/dotdir"
	"github.com/solacelabs/solace/pkg/embeddings"
	"github.com/solacelabs/solace/pkg/embeddings/faceapi"
	"github.com/solacelabs/solace/pkg/embeddings/ollama"
	"github.com/solacelabs/solace/pkg/eventstream"
	"github.com/solacelabs/solace/pkg/eventstream/fanout"
	eventkafka "github.com/solacelabs/solace/pkg/eventstream/kafka"
	"github.com/solacelabs/solace/pkg/eventstream/nop"
	"github.com/solacelabs/solace/pkg/faceimages"
	"github.com/solacelabs/solace/pkg/keylock"
	"github.com/solacelabs/solace/pkg/lifecycle"
	"github.com/solacelabs/solace/pkg/llm"
	"github.com/solacelabs/solace/pkg/recognize"
	"github.com/solacelabs/solace/pkg/routine"
	"github.com/solacelabs/solace/pkg/storage"
	storagemem "github.com/solacelabs/solace/pkg/storage/inmemory"
	"github.com/solacelabs/solace/pkg/storage/postgres"
	"github.com/solacelabs/solace/pkg/storage/retry"
	"github.com/solacelabs/solace/pkg/storage/sqlite"
	"github.com/solacelabs/solace/pkg/vector"
	vectormem "github.com/solacelabs/solace/pkg/vector/inmemory"
	"github.com/solacelabs/solace/pkg/vector/qdrant"
	"github.com/solacelabs/solace/pkg/whisper"
)

// App is the wired service graph.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Store        storage.Store
	Index        vector.Index
	FaceEmbedder embeddings.FaceEmbedder
	TextEmbedder embeddings.TextEmbedder
	Assist       *llm.Assist
	Events       eventstream.Publisher
	Feed         *fanout.Publisher
	Images       *faceimages.Store
	Locks        *keylock.KeyLock

	People     *lifecycle.Service
	Recognizer *recognize.Recognizer
	Whisperer  *whisper.Composer
	Engine     *routine.Engine
	Analyzer   *analyzer.Analyzer
}

// New builds the service graph. configDir overrides .solace/ resolution for
// default file paths.
func New(ctx context.Context, cfg *config.Config, configDir string, logger *zap.Logger) (*App, error) {
	baseDir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Locks: keylock.New()}

	if a.Store, err = newStore(ctx, cfg, baseDir, logger); err != nil {
		return nil, err
	}
	if a.Index, err = newIndex(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	if a.FaceEmbedder, err = faceapi.NewEmbedder(faceapi.Config{BaseURL: cfg.Face.SidecarURL}); err != nil {
		a.Close()
		return nil, fmt.Errorf("creating face embedder: %w", err)
	}
	if a.TextEmbedder, err = ollama.NewEmbedder(ollama.EmbedderConfig{
		BaseURL: cfg.Embedding.Target,
		Model:   cfg.Embedding.Model,
	}); err != nil {
		a.Close()
		return nil, fmt.Errorf("creating text embedder: %w", err)
	}

	call, err := llm.NewCaller(llm.CallerConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating llm caller: %w", err)
	}
	a.Assist = llm.NewAssist(call, logger)

	external, err := newPublisher(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Feed = fanout.New(logger)
	a.Events = eventstream.Multi(a.Feed, external)

	imageDir := cfg.Face.ImageDir
	if imageDir == "" {
		imageDir = filepath.Join(baseDir, "faces")
	}
	if a.Images, err = faceimages.NewStore(imageDir); err != nil {
		a.Close()
		return nil, err
	}

	a.People = lifecycle.NewService(a.Store, a.Index, a.TextEmbedder, a.Assist, a.Images, a.Events, a.Locks, logger)
	a.Recognizer = recognize.New(recognize.Config{Threshold: cfg.Recognition.Threshold}, a.FaceEmbedder, a.Index, logger)
	a.Whisperer = whisper.NewComposer(a.Store, a.Assist, nil, logger)
	a.Engine = routine.NewEngine(routine.Config{}, a.Store, a.Assist, a.Events, logger)
	a.Analyzer = analyzer.New(analyzer.Config{
		Interval:         time.Duration(cfg.Analyzer.IntervalSeconds) * time.Second,
		BatchSize:        cfg.Analyzer.BatchSize,
		RequireEvenCount: cfg.Analyzer.RequireEvenCount,
	}, a.Store, a.Engine, a.Locks, logger)

	return a, nil
}

// Close releases every held connection. Safe to call on a partially built
// app.
func (a *App) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn("closing event publisher", zap.Error(err))
		}
	}
	if a.TextEmbedder != nil {
		_ = a.TextEmbedder.Close()
	}
	if a.FaceEmbedder != nil {
		_ = a.FaceEmbedder.Close()
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			a.Logger.Warn("closing vector index", zap.Error(err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn("closing entity store", zap.Error(err))
		}
	}
}

func newStore(ctx context.Context, cfg *config.Config, baseDir string, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite", "":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(baseDir, "solace.db")
		}
		store, err := sqlite.NewDriver(ctx, sqlite.Config{Path: path}, logger)
		if err != nil {
			return nil, err
		}
		return retry.NewStore(store, retry.New(store.Ping, logger)), nil

	case "postgres":
		store, err := postgres.NewDriver(ctx, postgres.Config{DSN: cfg.Storage.PostgresDSN}, logger)
		if err != nil {
			return nil, err
		}
		return retry.NewStore(store, retry.New(store.Ping, logger)), nil

	case "memory":
		logger.Info("using in-memory entity store")
		return storagemem.NewStore(), nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}

func newIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (vector.Index, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant", "":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Host:   cfg.VectorStore.Host,
			Port:   cfg.VectorStore.Port,
			APIKey: cfg.VectorStore.APIKey,
			UseTLS: cfg.VectorStore.UseTLS,
		}, logger)

	case "memory":
		logger.Info("using in-memory vector index")
		return vectormem.NewIndex(), nil

	default:
		return nil, fmt.Errorf("unsupported vector provider: %s", cfg.VectorStore.Provider)
	}
}

func newPublisher(cfg *config.Config, logger *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "kafka":
		brokers := strings.Split(cfg.Events.Brokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		return eventkafka.NewPublisher(eventkafka.Config{
			Brokers: brokers,
			Topic:   cfg.Events.Topic,
		}, logger)

	case "nop", "":
		return nop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unsupported events provider: %s", cfg.Events.Provider)
	}
}

// Ready checks connectivity of the store and index.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Store.Ping(ctx); err != nil {
		return fmt.Errorf("entity store: %w", err)
	}
	if err := a.Index.Ping(ctx); err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	return nil
}
