// Package solacecmder
package solacecmder

import (
	"github.com/spf13/cobra"

	backfillcmder "github.com/solacelabs/solace/cmd/solace/backfill"
	configcmder "github.com/solacelabs/solace/cmd/solace/config"
	eventscmder "github.com/solacelabs/solace/cmd/solace/events"
	servecmder "github.com/solacelabs/solace/cmd/solace/serve"
	versioncmder "github.com/solacelabs/solace/cmd/version"
)

const solaceLongDesc string = `Solace is a memory-support companion backend: it
recognizes faces, remembers conversations, and whispers who's who.

Run services using:
  solace serve api       Run the API server
  solace serve worker    Run the routine consolidation worker
  solace serve           Run both together`

const solaceShortDesc string = "Solace - identity and memory support"

func NewSolaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solace",
		Short: solaceShortDesc,
		Long:  solaceLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .solace/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(backfillcmder.NewBackfillCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(eventscmder.NewEventsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
