// Package sweepcmder provides the sweep command for purging stale hook state.
package sweepcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reflex/cmd/reflex/cmdenv"
	"github.com/papercomputeco/reflex/pkg/cliui"
	"github.com/papercomputeco/reflex/pkg/config"
	"github.com/papercomputeco/reflex/pkg/sweep"
)

const sweepLongDesc string = `Remove per-session state files older than --max-age hours.

Hooks sweep on every run, so this is only needed to clean up a project whose
sessions have ended. The state directory is <project>/.claude/state.

Examples:
  reflex sweep
  reflex sweep --max-age 1 --project ~/src/app`

const sweepShortDesc string = "Purge stale session state"

type sweepCommander struct {
	maxAge  uint
	project string
}

func NewSweepCmd() *cobra.Command {
	cmder := &sweepCommander{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: sweepShortDesc,
		Long:  sweepLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddUintFlag(cmd, config.Flags, config.FlagMaxAge, &cmder.maxAge)
	cmd.Flags().StringVarP(&cmder.project, "project", "p", "", "Project root (default: $CLAUDE_PROJECT_DIR or the working directory)")

	return cmd
}

func (c *sweepCommander) run(cmd *cobra.Command) error {
	cfg, err := cmdenv.LoadConfig(cmd, config.FlagMaxAge)
	if err != nil {
		return err
	}

	log, closeLog := cmdenv.NewLogger(cmd, cfg)
	defer closeLog()

	store, _, err := cmdenv.ProjectStore(c.project)
	if err != nil {
		return err
	}

	maxAge := cfg.Hooks.SweepMaxAge()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.KeyStyle.Render("State dir:"), cliui.DimStyle.Render(store.Dir()))

	var res *sweep.Result
	err = cliui.Step(out, fmt.Sprintf("Sweeping files older than %s", maxAge.Truncate(time.Second)), func() error {
		res = sweep.New(store, log).Sweep(maxAge)
		if res.Failed > 0 {
			return fmt.Errorf("%d files could not be removed", res.Failed)
		}
		return nil
	})

	fmt.Fprintf(out, "\n  %s\n\n", cliui.ValueStyle.Render(res.Summary()))
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  %s %s\n", cliui.FailMark, cliui.WarnStyle.Render(e.Error()))
	}

	return err
}
