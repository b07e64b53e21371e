// Package statecmder provides the state command for inspecting hook state.
package statecmder

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reflex/cmd/reflex/cmdenv"
	"github.com/papercomputeco/reflex/pkg/cliui"
	"github.com/papercomputeco/reflex/pkg/state"
)

const stateLongDesc string = `List the per-session state files hooks share within a turn.

Each session can have a pattern handoff (patterns-<id>.json), a capture log
(captures-<id>.log) and a lock (lock-<id>.lock). Use --session to show one
session only.

Examples:
  reflex state
  reflex state --session 8f2c`

const stateShortDesc string = "List session state files"

type stateCommander struct {
	session string
	project string
	now     func() time.Time
}

func NewStateCmd() *cobra.Command {
	cmder := &stateCommander{now: time.Now}

	cmd := &cobra.Command{
		Use:   "state",
		Short: stateShortDesc,
		Long:  stateLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.session, "session", "", "Only show files for this session id")
	cmd.Flags().StringVarP(&cmder.project, "project", "p", "", "Project root (default: $CLAUDE_PROJECT_DIR or the working directory)")

	return cmd
}

func (c *stateCommander) run(cmd *cobra.Command) error {
	store, _, err := cmdenv.ProjectStore(c.project)
	if err != nil {
		return err
	}

	files, err := store.List()
	if err != nil {
		return err
	}

	if c.session != "" {
		files = filterSession(store, files, c.session)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime > files[j].ModTime
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.KeyStyle.Render("State dir:"), cliui.DimStyle.Render(store.Dir()))

	if len(files) == 0 {
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("No state files."))
		return nil
	}

	maxLen := 0
	for _, f := range files {
		maxLen = max(maxLen, len(f.Name))
	}

	now := c.now()
	for _, f := range files {
		age := now.Sub(time.Unix(0, f.ModTime))
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.NameStyle.Render(fmt.Sprintf("%-*s", maxLen, f.Name)),
			cliui.ValueStyle.Render(fmt.Sprintf("%7dB", f.Size)),
			cliui.DimStyle.Render(cliui.FormatAge(age)+" ago"),
		)
	}
	fmt.Fprintln(out)

	return nil
}

// filterSession keeps the files that belong to sessionID.
func filterSession(store *state.Store, files []state.FileInfo, sessionID string) []state.FileInfo {
	want := make(map[string]bool)
	for _, kind := range []state.Kind{state.KindPatterns, state.KindCaptures, state.KindLock} {
		want[store.Path(kind, sessionID)] = true
	}

	var out []state.FileInfo
	for _, f := range files {
		if want[f.Path] {
			out = append(out, f)
		}
	}
	return out
}
