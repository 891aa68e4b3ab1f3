package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdash/internal/cli/output"
)

// NewPullCommand creates the pull command.
func NewPullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <workspace-path> <dir>",
		Short: "Save a deployed dashboard as files",
		Long: `Pull fetches a dashboard from the workspace and writes one formatted .sql
file per dataset and one .yml file per page into dir. Generated names are
replaced by the display names they stand for.`,
		Example: `  leapdash pull "/Users/me@example.com/Sales overview.lvdash.json" sales`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd, args[0], args[1])
		},
	}
}

func runPull(cmd *cobra.Command, path, dir string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	client, err := cmdCtx.Client()
	if err != nil {
		return err
	}
	dash, err := cmdCtx.Dashboards(client).Pull(cmd.Context(), path, dir)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{
			"path":     path,
			"dir":      dir,
			"datasets": len(dash.Datasets),
			"pages":    len(dash.Pages),
		})
	}
	r.Success(fmt.Sprintf("Saved %d datasets and %d pages of %s into %s", len(dash.Datasets), len(dash.Pages), path, dir))
	return nil
}
