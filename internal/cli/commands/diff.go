package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdash/internal/cli/output"
	"github.com/leapstack-labs/leapdash/internal/dashboards"
)

// ErrDashboardsDiffer is returned by diff --exit-code when the dashboards differ.
var ErrDashboardsDiffer = errors.New("dashboards differ")

// NewDiffCommand creates the diff command.
func NewDiffCommand() *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "diff <dir> <workspace-path>",
		Short: "Compare a folder with a deployed dashboard",
		Long: `Diff builds a dashboard folder, fetches the deployed dashboard and shows
how they differ. Workspace generated names are normalized on both sides, so a
freshly deployed folder shows no difference.`,
		Example: `  leapdash diff sales "/Users/me@example.com/Sales overview.lvdash.json"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], args[1], exitCode)
		},
	}

	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Fail when the dashboards differ")
	return cmd
}

func runDiff(cmd *cobra.Command, dir, path string, exitCode bool) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	client, err := cmdCtx.Client()
	if err != nil {
		return err
	}
	facade := cmdCtx.Dashboards(client)

	local, err := facade.BuildFromFolder(dir)
	if err != nil {
		return err
	}
	remote, err := facade.Fetch(cmd.Context(), path)
	if err != nil {
		return err
	}

	diff := dashboards.Diff(remote, local)
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(map[string]any{"equal": diff == "", "diff": diff}); err != nil {
			return err
		}
	} else if diff == "" {
		r.Success("No differences")
	} else {
		r.Header(2, "Changes (-deployed +local)")
		r.Println(diff)
	}

	if exitCode && diff != "" {
		return ErrDashboardsDiffer
	}
	return nil
}
