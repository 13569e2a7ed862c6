// Package workercmder provides the background analyzer cobra command.
package workercmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/app"
	"github.com/solacelabs/solace/pkg/config"
	"github.com/solacelabs/solace/pkg/logger"
)

type workerCommander struct {
	storageDriver string
	sqlitePath    string
	vectorHost    string
	interval      int
	batchSize     int
	debug         bool
	configDir     string
	logger        *zap.Logger
}

const workerLongDesc string = `Run the routine analyzer on its own, without the API
server. The analyzer polls for people with unconsolidated memories and distills
their routines in the background.`

const workerShortDesc string = "Run the routine analyzer worker"

var workerFlags = config.FlagSet{
	config.FlagStorageDriver: {
		Name: "storage-driver", ViperKey: "storage.driver",
		Description: "Entity store backend (sqlite, postgres, memory)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path",
		Description: "Path to SQLite database (default: .solace/solace.db)",
	},
	config.FlagVectorHost: {
		Name: "vector-host", ViperKey: "vector_store.host",
		Description: "Qdrant host",
	},
	config.FlagAnalyzerInterval: {
		Name: "interval", ViperKey: "analyzer.interval_seconds",
		Description: "Seconds between analyzer polls",
	},
	config.FlagAnalyzerBatch: {
		Name: "batch-size", ViperKey: "analyzer.batch_size",
		Description: "People consolidated per analyzer poll",
	},
}

var workerFlagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagVectorHost,
	config.FlagAnalyzerInterval,
	config.FlagAnalyzerBatch,
}

func NewWorkerCmd() *cobra.Command {
	cmder := &workerCommander{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: workerShortDesc,
		Long:  workerLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, workerFlags, workerFlagKeys)

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			return cmder.run(cfg)
		},
	}

	config.AddStringFlag(cmd, workerFlags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, workerFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, workerFlags, config.FlagVectorHost, &cmder.vectorHost)
	config.AddIntFlag(cmd, workerFlags, config.FlagAnalyzerInterval, &cmder.interval)
	config.AddIntFlag(cmd, workerFlags, config.FlagAnalyzerBatch, &cmder.batchSize)

	return cmd
}

func (c *workerCommander) run(cfg *config.Config) error {
	c.logger = logger.New(c.debug)
	defer c.logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Repair any confirm whose index sync failed before the last shutdown.
	if _, err := a.People.SyncVectorStatus(ctx); err != nil {
		c.logger.Warn("face index status sync incomplete", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		a.Analyzer.Run(ctx)
		close(done)
	}()

	c.logger.Info("analyzer worker started",
		zap.Int("interval_seconds", cfg.Analyzer.IntervalSeconds),
		zap.Int("batch_size", cfg.Analyzer.BatchSize))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	cancel()
	<-done
	return nil
}
