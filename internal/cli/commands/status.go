package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdash/internal/cli/output"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [dir]",
		Short: "Show recorded deployments",
		Long: `Status lists the dashboards deployed from folders on this machine. Given a
folder it shows the deploy history of that folder on the configured workspace.`,
		Example: `  leapdash status
  leapdash status sales`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runHistory(cmd, args[0])
			}
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := cmdCtx.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	deployments, err := store.ListDeployments(cmd.Context())
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(deployments)
	}
	if len(deployments) == 0 {
		r.Muted("No deployments recorded")
		return nil
	}

	r.Header(1, fmt.Sprintf("Deployments (%d)", len(deployments)))
	rows := make([][]string, 0, len(deployments))
	for _, d := range deployments {
		rows = append(rows, []string{
			d.Folder,
			d.Path,
			d.DashboardID,
			d.Host,
			d.DeployedAt.Local().Format(time.DateTime),
			shortFingerprint(d.Fingerprint),
		})
	}
	r.Table([]string{"Folder", "Path", "Dashboard", "Host", "Deployed", "Fingerprint"}, rows)
	return nil
}

func runHistory(cmd *cobra.Command, dir string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	folder, err := folderKey(dir)
	if err != nil {
		return err
	}
	client, err := cmdCtx.Client()
	if err != nil {
		return err
	}
	store, err := cmdCtx.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	events, err := store.History(cmd.Context(), client.Host(), folder)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(events)
	}
	if len(events) == 0 {
		r.Muted(fmt.Sprintf("%s has not been deployed to %s", dir, client.Host()))
		return nil
	}

	r.Header(1, fmt.Sprintf("History of %s", dir))
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.DeployedAt.Local().Format(time.DateTime),
			string(e.Action),
			e.DashboardID,
			shortFingerprint(e.Fingerprint),
		})
	}
	r.Table([]string{"Deployed", "Action", "Dashboard", "Fingerprint"}, rows)
	return nil
}

func shortFingerprint(fp string) string {
	fp = strings.TrimPrefix(fp, "sha256:")
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
