package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/leapdash/internal/cli/config"
	"github.com/leapstack-labs/leapdash/internal/cli/output"
	"github.com/leapstack-labs/leapdash/internal/dashboards"
	"github.com/leapstack-labs/leapdash/internal/state"
	"github.com/leapstack-labs/leapdash/internal/workspace"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Client connects to the configured workspace.
func (c *CommandContext) Client() (*workspace.Client, error) {
	if err := c.Cfg.RequireWorkspace(); err != nil {
		return nil, err
	}
	return workspace.NewClient(c.Cfg.Host, c.Cfg.Token, workspace.WithLogger(c.Logger))
}

// Dashboards returns the deployment façade over ws, which may be nil for
// commands that only work on local folders.
func (c *CommandContext) Dashboards(ws dashboards.Workspace) *dashboards.Dashboards {
	return dashboards.New(dashboards.Config{
		Workspace: ws,
		GridWidth: c.Cfg.GridWidth,
		Logger:    c.Logger,
	})
}

// OpenState opens the deployment state store.
// The caller must close it.
func (c *CommandContext) OpenState() (*state.Store, error) {
	store, err := state.Open(c.Cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// getConfig returns the current configuration, or the defaults when none
// was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		StatePath:    config.DefaultStateFile,
		GridWidth:    config.DefaultGridWidth,
		OutputFormat: config.DefaultOutput,
	}
}

// folderKey identifies a dashboard folder in the state store.
func folderKey(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid folder %s: %w", dir, err)
	}
	return abs, nil
}
