package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdash/internal/cli/output"
	"github.com/leapstack-labs/leapdash/internal/dashboards"
	"github.com/leapstack-labs/leapdash/internal/state"
	"github.com/leapstack-labs/leapdash/internal/workspace"
	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// DeployOptions holds options for the deploy command.
type DeployOptions struct {
	DisplayName string
	DashboardID string
	Force       bool
}

// deployResult is the JSON form of a deploy.
type deployResult struct {
	Action      state.Action `json:"action"`
	DashboardID string       `json:"dashboard_id"`
	Path        string       `json:"path"`
	Fingerprint string       `json:"fingerprint"`
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand() *cobra.Command {
	opts := &DeployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy <dir>",
		Short: "Deploy a dashboard folder to the workspace",
		Long: `Deploy builds a dashboard folder and creates or updates its dashboard in
the workspace.

Without --display-name or --dashboard-id the dashboard recorded for the folder by
an earlier deploy is updated. A folder deployed for the first time becomes a new
dashboard named after its display name. Deploys whose content did not change
since the last deploy are skipped unless --force is given.`,
		Example: `  # Deploy ./sales, creating the dashboard on first use
  leapdash deploy sales

  # Create a new dashboard with an explicit name
  leapdash deploy sales --display-name "Sales (staging)"

  # Overwrite a known dashboard
  leapdash deploy sales --dashboard-id 01ef2bc3d4e5f6a7b8c9d0e1f2a3b4c5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.DisplayName, "display-name", "", "Create a new dashboard with this name")
	cmd.Flags().StringVar(&opts.DashboardID, "dashboard-id", "", "Update the dashboard with this id")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Deploy even if nothing changed")
	cmd.MarkFlagsMutuallyExclusive("display-name", "dashboard-id")

	return cmd
}

func runDeploy(cmd *cobra.Command, dir string, opts *DeployOptions) error {
	ctx := cmd.Context()
	cmdCtx := NewCommandContext(cmd)
	logger := cmdCtx.Logger

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

	facade := cmdCtx.Dashboards(client)
	dash, err := facade.BuildFromFolder(dir)
	if err != nil {
		return err
	}
	fingerprint, err := dashboards.Fingerprint(dash)
	if err != nil {
		return err
	}

	prev, err := store.GetDeployment(ctx, client.Host(), folder)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}

	target := dashboards.Target{
		DisplayName: opts.DisplayName,
		DashboardID: opts.DashboardID,
		ParentPath:  cmdCtx.Cfg.ParentPath,
		WarehouseID: cmdCtx.Cfg.WarehouseID,
	}
	fromState := false
	if target.DisplayName == "" && target.DashboardID == "" {
		if prev != nil {
			target.DashboardID = prev.DashboardID
			fromState = true
		} else {
			target.DisplayName = defaultDisplayName(dash, folder)
		}
	}

	if !opts.Force && prev != nil && target.DashboardID == prev.DashboardID && prev.Fingerprint == fingerprint {
		logger.Debug("dashboard unchanged", "folder", folder, "id", prev.DashboardID)
		unchanged := *prev
		unchanged.DeployedAt = time.Now().UTC()
		if err := store.RecordDeployment(ctx, unchanged, state.ActionUnchanged); err != nil {
			return err
		}
		return reportDeploy(cmdCtx.Renderer, deployResult{
			Action:      state.ActionUnchanged,
			DashboardID: prev.DashboardID,
			Path:        prev.Path,
			Fingerprint: fingerprint,
		})
	}

	action := state.ActionCreated
	if target.DashboardID != "" {
		action = state.ActionUpdated
	}
	deployed, err := facade.Deploy(ctx, dash, target)
	if err != nil && fromState && workspace.IsNotFound(err) {
		// The recorded dashboard is gone, start over with a new one
		logger.Warn("recorded dashboard no longer exists, creating a new one", "id", target.DashboardID)
		target.DashboardID = ""
		target.DisplayName = defaultDisplayName(dash, folder)
		if prev.DisplayName != "" {
			target.DisplayName = prev.DisplayName
		}
		action = state.ActionCreated
		deployed, err = facade.Deploy(ctx, dash, target)
	}
	if err != nil {
		return fmt.Errorf("deploy failed: %w", err)
	}

	if err := store.RecordDeployment(ctx, state.Deployment{
		Host:        client.Host(),
		Folder:      folder,
		DashboardID: deployed.DashboardID,
		DisplayName: deployed.DisplayName,
		Path:        deployed.Path,
		Fingerprint: fingerprint,
		Etag:        deployed.Etag,
		DeployedAt:  time.Now().UTC(),
	}, action); err != nil {
		return err
	}

	return reportDeploy(cmdCtx.Renderer, deployResult{
		Action:      action,
		DashboardID: deployed.DashboardID,
		Path:        deployed.Path,
		Fingerprint: fingerprint,
	})
}

// defaultDisplayName is the page display name, which carries the display
// name of dashboard.yml, or the folder name.
func defaultDisplayName(dash lakeview.Dashboard, folder string) string {
	for _, p := range dash.Pages {
		if p.DisplayName != "" {
			return p.DisplayName
		}
	}
	return filepath.Base(folder)
}

func reportDeploy(r *output.Renderer, res deployResult) error {
	switch {
	case r.EffectiveMode() == output.ModeJSON:
		return r.JSON(res)
	case res.Action == state.ActionUnchanged:
		r.Muted(fmt.Sprintf("Dashboard %s is up to date (%s)", res.Path, res.DashboardID))
	default:
		r.Success(fmt.Sprintf("Dashboard %s %s (%s)", res.Path, res.Action, res.DashboardID))
	}
	return nil
}
