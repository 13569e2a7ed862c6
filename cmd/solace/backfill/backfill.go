// Package backfillcmder provides the backfill command for rebuilding the
// memory vector collection from the entity store.
package backfillcmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solacelabs/solace/pkg/app"
	"github.com/solacelabs/solace/pkg/backfill"
	"github.com/solacelabs/solace/pkg/cliui"
	"github.com/solacelabs/solace/pkg/config"
	"github.com/solacelabs/solace/pkg/logger"
)

type backfillCommander struct {
	sqlitePath    string
	storageDriver string
	vectorHost    string
	dryRun        bool
	workers       uint
	debug         bool
	configDir     string
}

const backfillLongDesc string = `Rebuild the memory vector collection from the entity store.

Every stored memory summary is re-embedded and upserted into the vector
index. Use this after wiping or replacing the vector store, or when
memories were saved while the vector store was unreachable.

Examples:
  solace backfill
  solace backfill --dry-run
  solace backfill --workers 8`

const backfillShortDesc string = "Re-embed stored memories into the vector index"

var backfillFlags = config.FlagSet{
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
}

var backfillFlagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagVectorHost,
}

func NewBackfillCmd() *cobra.Command {
	cmder := &backfillCommander{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: backfillShortDesc,
		Long:  backfillLongDesc,
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
			config.BindRegisteredFlags(v, cmd, backfillFlags, backfillFlagKeys)

			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}

			return cmder.run(cfg)
		},
	}

	config.AddStringFlag(cmd, backfillFlags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, backfillFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, backfillFlags, config.FlagVectorHost, &cmder.vectorHost)
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Count what would be re-indexed without writing")
	cmd.Flags().UintVar(&cmder.workers, "workers", 0, "Concurrent embedding workers (default 3)")

	return cmd
}

func (c *backfillCommander) run(cfg *config.Config) error {
	log := logger.New(c.debug)
	defer log.Sync()

	ctx := context.Background()

	a, err := app.New(ctx, cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer a.Close()

	b := backfill.New(a.Store, a.Index, a.TextEmbedder, backfill.Options{
		DryRun:  c.dryRun,
		Workers: c.workers,
	}, log)

	var result *backfill.Result
	if err := cliui.Step(os.Stdout, "Re-indexing memories", func() error {
		var runErr error
		result, runErr = b.Run(ctx)
		return runErr
	}); err != nil {
		return err
	}

	fmt.Println(result.Summary())
	return nil
}
