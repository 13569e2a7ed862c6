// Package configcmder provides the config command for managing persistent
// solace configuration stored in the .solace/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent solace configuration.

Configuration is stored as config.toml in the .solace/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  vector_store.provider, vector_store.host, vector_store.port,
  face.sidecar_url, face.image_dir,
  embedding.target, embedding.model,
  llm.provider, llm.model, llm.base_url,
  recognition.threshold,
  analyzer.interval_seconds, analyzer.batch_size,
  events.provider, events.brokers, events.topic,
  api.listen

Use subcommands to get, set, or list configuration values:
  solace config set <key> <value>    Set a configuration value
  solace config get <key>            Get a configuration value
  solace config list                 List all configuration values

Examples:
  solace config set llm.provider anthropic
  solace config set recognition.threshold 0.85
  solace config get storage.driver
  solace config list`

const configShortDesc string = "Manage persistent solace configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
