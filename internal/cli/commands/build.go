package commands

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Build the dashboard JSON of a folder",
		Long: `Build loads a dashboard folder, lays out its tiles and prints the
resulting dashboard JSON. With --out the JSON is written to a file instead, a
.lvdash.json name can be imported into a workspace as is.`,
		Example: `  # Print the dashboard of ./sales
  leapdash build sales

  # Write it to a file
  leapdash build sales --out sales.lvdash.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the dashboard JSON to this file")
	return cmd
}

func runBuild(cmd *cobra.Command, dir, out string) error {
	cmdCtx := NewCommandContext(cmd)

	dash, err := cmdCtx.Dashboards(nil).BuildFromFolder(dir)
	if err != nil {
		return err
	}
	data, err := lakeview.MarshalIndent(dash)
	if err != nil {
		return err
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		data = append(data, '\n')
	}

	if out == "" {
		_, err = cmdCtx.Renderer.Writer().Write(data)
		return err
	}
	if !strings.HasSuffix(out, ".lvdash.json") {
		cmdCtx.Logger.Debug("output file has no .lvdash.json suffix", "path", out)
	}
	if err := atomic.WriteFile(out, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("Wrote %s (%d datasets)", out, len(dash.Datasets)))
	return nil
}
