// Package servecmder provides the serve command with subcommands for
// running services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/api"
	apicmder "github.com/solacelabs/solace/cmd/solace/serve/api"
	workercmder "github.com/solacelabs/solace/cmd/solace/serve/worker"
	"github.com/solacelabs/solace/pkg/app"
	"github.com/solacelabs/solace/pkg/config"
	"github.com/solacelabs/solace/pkg/logger"
)

type ServeCommander struct {
	apiListen     string
	storageDriver string
	sqlitePath    string
	vectorHost    string
	threshold     float64
	debug         bool
	configDir     string
	logger        *zap.Logger
}

const serveLongDesc string = `Run solace services.

Use subcommands to run individual services or all services together:
  solace serve           Run the API server and the consolidation worker
  solace serve api       Run just the API server
  solace serve worker    Run just the consolidation worker`

const serveShortDesc string = "Run solace services"

var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for API server to listen on",
	},
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
	config.FlagThreshold: {
		Name: "threshold", ViperKey: "recognition.threshold",
		Description: "Minimum cosine score for a face match",
	},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagVectorHost,
	config.FlagThreshold,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			return cmder.run(cfg)
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorHost, &cmder.vectorHost)
	config.AddFloatFlag(cmd, serveFlags, config.FlagThreshold, &cmder.threshold)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(workercmder.NewWorkerCmd())

	return cmd
}

func (c *ServeCommander) run(cfg *config.Config) error {
	c.logger = logger.New(c.debug)
	defer c.logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := api.NewServer(api.Config{ListenAddr: cfg.API.Listen},
		a.Recognizer, a.People, a.Whisperer, a.FaceEmbedder, a.Feed, c.logger)

	// Repair any confirm whose index sync failed before the last shutdown.
	if _, err := a.People.SyncVectorStatus(ctx); err != nil {
		c.logger.Warn("face index status sync incomplete", zap.Error(err))
	}

	// Channel to capture errors from goroutines
	errChan := make(chan error, 1)

	analyzerDone := make(chan struct{})
	go func() {
		defer close(analyzerDone)
		a.Analyzer.Run(ctx)
	}()

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		cancel()
		<-analyzerDone
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			c.logger.Warn("API shutdown error", zap.Error(err))
		}
		cancel()
		<-analyzerDone
		return nil
	}
}
