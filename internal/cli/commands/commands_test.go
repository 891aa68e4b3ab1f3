package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdash/internal/cli/config"
	"github.com/leapstack-labs/leapdash/internal/cli/testutil"
	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{cmd: NewBuildCommand(), use: "build <dir>", flags: []string{"out"}},
		{cmd: NewLayoutCommand(), use: "layout <dir>"},
		{cmd: NewDeployCommand(), use: "deploy <dir>", flags: []string{"display-name", "dashboard-id", "force"}},
		{cmd: NewPullCommand(), use: "pull <workspace-path> <dir>"},
		{cmd: NewDiffCommand(), use: "diff <dir> <workspace-path>", flags: []string{"exit-code"}},
		{cmd: NewStatusCommand(), use: "status [dir]"},
		{cmd: NewEmulatorCommand(), use: "emulator", flags: []string{"addr", "require-token"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

// loadConfig loads a leapdash.yaml with content as the current configuration.
func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	path := filepath.Join(t.TempDir(), "leapdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)
	return cfg
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBuildCommand_Stdout(t *testing.T) {
	loadConfig(t, "")
	folder := filepath.Join(testutil.GetTestdataDir(t), "sales")

	out, err := execute(t, NewBuildCommand(), folder)
	require.NoError(t, err)

	dash, err := lakeview.Parse([]byte(out))
	require.NoError(t, err)
	assert.Len(t, dash.Datasets, 4)
	require.Len(t, dash.Pages, 1)
	assert.Equal(t, "Sales overview", dash.Pages[0].DisplayName)
	assert.NoError(t, dash.Validate())
}

func TestBuildCommand_OutFile(t *testing.T) {
	loadConfig(t, "")
	folder := filepath.Join(testutil.GetTestdataDir(t), "sales")
	target := filepath.Join(t.TempDir(), "sales.lvdash.json")

	out, err := execute(t, NewBuildCommand(), folder, "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+target)
	testutil.AssertNoANSI(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	_, err = lakeview.Parse(data)
	assert.NoError(t, err)
}

func TestBuildCommand_MissingFolder(t *testing.T) {
	loadConfig(t, "")

	_, err := execute(t, NewBuildCommand(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLayoutCommand_JSON(t *testing.T) {
	loadConfig(t, "output: json\n")
	folder := filepath.Join(testutil.GetTestdataDir(t), "sales")

	out, err := execute(t, NewLayoutCommand(), folder)
	require.NoError(t, err)

	var rows []placementRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.NotEmpty(t, rows)

	assert.Equal(t, "markdown", rows[0].Type, "header has the lowest order")
	assert.Equal(t, 0, rows[0].Y)
	for _, row := range rows {
		assert.LessOrEqual(t, row.X+row.Width, config.DefaultGridWidth, "widget %s", row.Widget)
	}
}

func TestLayoutCommand_Markdown(t *testing.T) {
	loadConfig(t, "output: markdown\n")
	folder := filepath.Join(testutil.GetTestdataDir(t), "sales")

	out, err := execute(t, NewLayoutCommand(), folder)
	require.NoError(t, err)

	assert.Contains(t, out, "# Layout")
	assert.Contains(t, out, "| Widget")
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
}

func TestStatusCommand_Empty(t *testing.T) {
	cfg := loadConfig(t, "output: markdown\n")
	cfg.StatePath = filepath.Join(t.TempDir(), "state.db")

	out, err := execute(t, NewStatusCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No deployments recorded")
}

func TestWorkspaceCommands_RequireHost(t *testing.T) {
	t.Setenv("DATABRICKS_HOST", "")
	t.Setenv("LEAPDASH_HOST", "")
	folder := filepath.Join(testutil.GetTestdataDir(t), "sales")

	tests := []struct {
		name string
		cmd  *cobra.Command
		args []string
	}{
		{name: "deploy", cmd: NewDeployCommand(), args: []string{folder}},
		{name: "pull", cmd: NewPullCommand(), args: []string{"/Users/x/a.lvdash.json", t.TempDir()}},
		{name: "diff", cmd: NewDiffCommand(), args: []string{folder, "/Users/x/a.lvdash.json"}},
		{name: "history", cmd: NewStatusCommand(), args: []string{folder}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loadConfig(t, "")
			_, err := execute(t, tt.cmd, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "workspace host is not configured")
		})
	}
}

func TestShortFingerprint(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortFingerprint("sha256:0123456789abcdef"))
	assert.Equal(t, "abc", shortFingerprint("abc"))
	assert.Equal(t, "", shortFingerprint(""))
}

func TestDefaultDisplayName(t *testing.T) {
	dash := lakeview.Dashboard{Pages: []lakeview.Page{{Name: "p", DisplayName: "Sales overview"}}}
	assert.Equal(t, "Sales overview", defaultDisplayName(dash, "/tmp/sales"))
	assert.Equal(t, "sales", defaultDisplayName(lakeview.Dashboard{}, "/tmp/sales"))
}
