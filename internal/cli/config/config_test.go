package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leapdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("host", "", "workspace host")
	flags.String("state", "", "state database")
	flags.Int("grid-width", 0, "grid width")
	flags.StringP("output", "o", "", "output format")
	return flags
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single variable", input: "${TEST_VAR_ONE}", expected: "value_one"},
		{name: "multiple variables", input: "${TEST_VAR_ONE}/${TEST_VAR_TWO}", expected: "value_one/value_two"},
		{name: "unset variable stays as-is", input: "${UNSET_VARIABLE}", expected: "${UNSET_VARIABLE}"},
		{name: "no variables", input: "plain string", expected: "plain string"},
		{name: "empty string", input: "", expected: ""},
		{name: "mixed set and unset", input: "${TEST_VAR_ONE}:${UNSET_VAR}", expected: "value_one:${UNSET_VAR}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Setenv("DATABRICKS_HOST", "")
	t.Setenv("DATABRICKS_TOKEN", "")
	path := writeConfig(t, "")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultGridWidth, cfg.GridWidth)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, filepath.Join(filepath.Dir(path), DefaultStateFile), cfg.StatePath)
	assert.Equal(t, filepath.Dir(path), cfg.ProjectRoot)
	assert.Empty(t, cfg.Host)
	assert.Equal(t, path, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileValues(t *testing.T) {
	ResetConfig()
	t.Setenv("WORKSPACE_TOKEN", "dapi-secret")
	path := writeConfig(t, `host: https://adb-1.example.net
token: ${WORKSPACE_TOKEN}
parent_path: /Shared/dashboards
warehouse_id: abc123
state_path: /tmp/leapdash-state.db
grid_width: 12
output: json
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://adb-1.example.net", cfg.Host)
	assert.Equal(t, "dapi-secret", cfg.Token)
	assert.Equal(t, "/Shared/dashboards", cfg.ParentPath)
	assert.Equal(t, "abc123", cfg.WarehouseID)
	assert.Equal(t, "/tmp/leapdash-state.db", cfg.StatePath)
	assert.Equal(t, 12, cfg.GridWidth)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, "host: from-file\ngrid_width: 4\n")

	t.Run("env overrides file", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPDASH_HOST", "from-env")

		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Host)
		assert.Equal(t, 4, cfg.GridWidth)
	})

	t.Run("flag overrides env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPDASH_HOST", "from-env")
		flags := testFlags()
		require.NoError(t, flags.Set("host", "from-flag"))
		require.NoError(t, flags.Set("grid-width", "3"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.Host)
		assert.Equal(t, 3, cfg.GridWidth)
	})

	t.Run("unset flag falls back to env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("LEAPDASH_HOST", "from-env")

		cfg, err := LoadConfig(path, testFlags())
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Host)
	})
}

func TestLoadConfig_StateFlagRelativeToCWD(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "")
	flags := testFlags()
	require.NoError(t, flags.Set("state", "custom.db"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	want, err := filepath.Abs("custom.db")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.StatePath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{name: "zero grid width", content: "grid_width: 0\n", errSubstr: "grid_width"},
		{name: "unknown output", content: "output: xml\n", errSubstr: "unknown output format"},
		{name: "malformed yaml", content: "host: [\n", errSubstr: "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_RequireWorkspace(t *testing.T) {
	assert.Error(t, (&Config{}).RequireWorkspace())
	assert.NoError(t, (&Config{Host: "https://adb-1.example.net"}).RequireWorkspace())
}

func TestFindProjectRootUpward(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "leapdash.yml"), nil, 0o600))
	nested := filepath.Join(root, "dashboards", "sales")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Equal(t, root, findProjectRootUpward(nested))
	assert.Empty(t, findProjectRootUpward(t.TempDir()))
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	assert.Same(t, logger, GetLogger(WithLogger(context.Background(), logger)))
}
