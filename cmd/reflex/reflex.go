// Package reflexcmder
package reflexcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/reflex/cmd/reflex/cmdenv"
	configcmder "github.com/papercomputeco/reflex/cmd/reflex/config"
	hookcmder "github.com/papercomputeco/reflex/cmd/reflex/hook"
	initcmder "github.com/papercomputeco/reflex/cmd/reflex/init"
	servecmder "github.com/papercomputeco/reflex/cmd/reflex/serve"
	statecmder "github.com/papercomputeco/reflex/cmd/reflex/state"
	sweepcmder "github.com/papercomputeco/reflex/cmd/reflex/sweep"
	versioncmder "github.com/papercomputeco/reflex/cmd/version"
)

const reflexLongDesc string = `Reflex connects an AI coding assistant to a shared pattern memory.

The assistant host runs two hooks on every turn:
  reflex hook prompt-submit   Capture the last exchange, retrieve patterns
  reflex hook stop            Record which patterns were applied

Tools:
  reflex serve     Run a local memory API emulator
  reflex state     List per-session state files
  reflex sweep     Purge stale state files
  reflex config    Manage config.toml`

const reflexShortDesc string = "Reflex - pattern memory for coding assistants"

func NewReflexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "reflex",
		Short:        reflexShortDesc,
		Long:         reflexLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(cmdenv.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().String(cmdenv.FlagConfigDir, "", "Override path to .reflex/ config directory")

	// Add subcommands
	cmd.AddCommand(hookcmder.NewHookCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statecmder.NewStateCmd())
	cmd.AddCommand(sweepcmder.NewSweepCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
