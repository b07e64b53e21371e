// Package configcmder provides the config command for managing persistent
// reflex configuration stored in the .reflex/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent reflex configuration.

Configuration is stored as config.toml in the .reflex/ directory and provides
default values for command flags. CLI flags and REFLEX_ environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  api.url,
  hooks.retrieve_timeout_ms, hooks.dispatch_timeout_ms,
  hooks.sweep_max_age_hours, hooks.layers,
  lock.backend, lock.timeout_ms, lock.stale_ms, lock.redis_url,
  events.kafka_brokers, events.kafka_topic,
  serve.listen, serve.storage, serve.sqlite_path, serve.postgres_dsn,
  log.file

Use subcommands to get, set, or list configuration values:
  reflex config set <key> <value>    Set a configuration value
  reflex config get <key>            Get a configuration value
  reflex config list                 List all configuration values

Examples:
  reflex config set lock.backend redis
  reflex config set hooks.layers user,project
  reflex config get api.url
  reflex config list`

const configShortDesc string = "Manage persistent reflex configuration"

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
