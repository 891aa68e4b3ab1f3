// Package config provides configuration management for the leapdash CLI.
package config

// Config holds all CLI configuration options.
type Config struct {
	// Host is the workspace URL, e.g. https://adb-123.azuredatabricks.net
	Host string `koanf:"host"`
	// Token is sent as a bearer token; ${VAR} references are expanded
	Token string `koanf:"token"`
	// ParentPath is the workspace folder new dashboards are created in
	ParentPath  string `koanf:"parent_path"`
	WarehouseID string `koanf:"warehouse_id"`
	StatePath   string `koanf:"state_path"`
	GridWidth   int    `koanf:"grid_width"`
	Verbose     bool   `koanf:"verbose"`
	// OutputFormat is one of auto, text, markdown, json
	OutputFormat string `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultStateFile = ".leapdash/state.db"
	DefaultGridWidth = 6
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Config file names, in lookup order.
var configFileNames = []string{"leapdash.yaml", "leapdash.yml"}
