package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapdash/internal/cli/output"
)

// Validate checks if the configuration is valid. Workspace settings are
// checked by RequireWorkspace, only commands that talk to a workspace need them.
func (c *Config) Validate() error {
	if c.GridWidth < 1 {
		return fmt.Errorf("grid_width must be at least 1, got %d", c.GridWidth)
	}
	if !output.ValidMode(c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (valid: %s)", c.OutputFormat, strings.Join(output.Modes, ", "))
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	return nil
}

// RequireWorkspace checks that a workspace host is configured.
func (c *Config) RequireWorkspace() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("workspace host is not configured\nHint: set host in leapdash.yaml, LEAPDASH_HOST or use --host")
	}
	return nil
}
