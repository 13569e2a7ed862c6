// Package apicmder provides the API server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/api"
	"github.com/solacelabs/solace/pkg/app"
	"github.com/solacelabs/solace/pkg/config"
	"github.com/solacelabs/solace/pkg/logger"
)

type apiCommander struct {
	listen        string
	storageDriver string
	sqlitePath    string
	vectorHost    string
	threshold     float64
	debug         bool
	configDir     string
	logger        *zap.Logger
}

const apiLongDesc string = `Run the solace API server: face recognition,
caregiver management, memory capture, and whispers.`

const apiShortDesc string = "Run the solace API server"

var apiFlags = config.FlagSet{
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

var apiFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagVectorHost,
	config.FlagThreshold,
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
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
			config.BindRegisteredFlags(v, cmd, apiFlags, apiFlagKeys)

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			return cmder.run(cfg)
		},
	}

	config.AddStringFlag(cmd, apiFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, apiFlags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, apiFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, apiFlags, config.FlagVectorHost, &cmder.vectorHost)
	config.AddFloatFlag(cmd, apiFlags, config.FlagThreshold, &cmder.threshold)

	return cmd
}

func (c *apiCommander) run(cfg *config.Config) error {
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

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}
