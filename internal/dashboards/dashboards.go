// Package dashboards moves dashboards between local folders and a workspace.
//
// It ties the folder loader, the assembler and the name normalizer to a
// workspace implementation: build a dashboard from a folder, deploy it, fetch
// a deployed one back and save it as files.
package dashboards

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapdash/internal/assemble"
	"github.com/leapstack-labs/leapdash/internal/metadata"
	"github.com/leapstack-labs/leapdash/internal/normalize"
	"github.com/leapstack-labs/leapdash/internal/workspace"
	"github.com/leapstack-labs/leapdash/pkg/format"
	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// Workspace is the part of the workspace API the façade needs.
// *workspace.Client and *workspace.Memory implement it.
type Workspace interface {
	Export(ctx context.Context, path string) ([]byte, error)
	CreateDashboard(ctx context.Context, d workspace.Dashboard) (workspace.Dashboard, error)
	UpdateDashboard(ctx context.Context, d workspace.Dashboard) (workspace.Dashboard, error)
}

// InvalidArgumentError reports a call with arguments that cannot be served.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}

// Target selects the dashboard a deploy writes to: a new dashboard with
// DisplayName, or the existing dashboard DashboardID. Exactly one is set.
type Target struct {
	DisplayName string
	DashboardID string
	// ParentPath is the folder of a new dashboard, the user's home when empty
	ParentPath string
	// WarehouseID is passed through to the workspace when set
	WarehouseID string
}

// trimmed returns t with surrounding whitespace removed from its selectors.
func (t Target) trimmed() Target {
	t.DisplayName = strings.TrimSpace(t.DisplayName)
	t.DashboardID = strings.TrimSpace(t.DashboardID)
	return t
}

func (t Target) validate() error {
	hasName := t.DisplayName != ""
	hasID := t.DashboardID != ""
	switch {
	case hasName && hasID:
		return &InvalidArgumentError{Message: "either display name or dashboard id must be given, not both"}
	case !hasName && !hasID:
		return &InvalidArgumentError{Message: "either display name or dashboard id must be given"}
	}
	return nil
}

// Config holds façade configuration.
type Config struct {
	// Workspace is required by Fetch, Deploy and Pull only
	Workspace Workspace
	// GridWidth is passed to the assembler
	GridWidth int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Dashboards is the deployment façade.
type Dashboards struct {
	ws        Workspace
	gridWidth int
	logger    *slog.Logger
}

// New creates a façade.
func New(cfg Config) *Dashboards {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dashboards{ws: cfg.Workspace, gridWidth: cfg.GridWidth, logger: logger}
}

// Fetch downloads and parses the dashboard stored at a workspace path.
// A missing dashboard yields an error wrapping *workspace.NotFoundError.
func (d *Dashboards) Fetch(ctx context.Context, path string) (lakeview.Dashboard, error) {
	if d.ws == nil {
		return lakeview.Dashboard{}, fmt.Errorf("no workspace configured")
	}
	data, err := d.ws.Export(ctx, path)
	if err != nil {
		return lakeview.Dashboard{}, fmt.Errorf("failed to fetch dashboard %s: %w", path, err)
	}
	dash, err := lakeview.Parse(data)
	if err != nil {
		return lakeview.Dashboard{}, fmt.Errorf("dashboard %s: %w", path, err)
	}
	d.logger.Debug("fetched dashboard", "path", path, "datasets", len(dash.Datasets), "pages", len(dash.Pages))
	return dash, nil
}

// SaveLocally normalizes dash and writes one formatted <dataset>.sql file per
// dataset and one <page>.yml file per page into dir. It returns the
// normalized dashboard.
func (d *Dashboards) SaveLocally(dash lakeview.Dashboard, dir string) (lakeview.Dashboard, error) {
	dash = normalize.Normalize(dash)

	if err := checkFileNames(dash); err != nil {
		return lakeview.Dashboard{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return lakeview.Dashboard{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	for _, ds := range dash.Datasets {
		formatted := format.SQL(ds.Query)
		if !formatted.Formatted {
			d.logger.Warn("query saved unformatted", "dataset", ds.Name, "reason", formatted.Reason)
		}
		text := formatted.Text
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		path := filepath.Join(dir, fileName(ds.Name)+".sql")
		if err := atomic.WriteFile(path, strings.NewReader(text)); err != nil {
			return lakeview.Dashboard{}, fmt.Errorf("failed to write %s: %w", path, err)
		}
		d.logger.Debug("saved dataset", "path", path)
	}

	for _, page := range dash.Pages {
		data, err := pageYAML(page)
		if err != nil {
			return lakeview.Dashboard{}, fmt.Errorf("page %s: %w", page.Name, err)
		}
		path := filepath.Join(dir, fileName(page.Name)+".yml")
		if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			return lakeview.Dashboard{}, fmt.Errorf("failed to write %s: %w", path, err)
		}
		d.logger.Debug("saved page", "path", path)
	}
	return dash, nil
}

// Pull fetches the dashboard at path and saves it into dir.
func (d *Dashboards) Pull(ctx context.Context, path, dir string) (lakeview.Dashboard, error) {
	dash, err := d.Fetch(ctx, path)
	if err != nil {
		return lakeview.Dashboard{}, err
	}
	return d.SaveLocally(dash, dir)
}

// BuildFromFolder loads, lays out and assembles the dashboard folder dir.
func (d *Dashboards) BuildFromFolder(dir string) (lakeview.Dashboard, error) {
	meta, err := metadata.Load(dir, metadata.WithLogger(d.logger))
	if err != nil {
		return lakeview.Dashboard{}, err
	}
	return assemble.Assemble(meta, assemble.Options{GridWidth: d.gridWidth, Logger: d.logger})
}

// Deploy creates a dashboard named target.DisplayName or replaces the content
// of dashboard target.DashboardID with dash.
func (d *Dashboards) Deploy(ctx context.Context, dash lakeview.Dashboard, target Target) (workspace.Dashboard, error) {
	target = target.trimmed()
	if err := target.validate(); err != nil {
		return workspace.Dashboard{}, err
	}
	if d.ws == nil {
		return workspace.Dashboard{}, fmt.Errorf("no workspace configured")
	}
	serialized, err := lakeview.Marshal(dash)
	if err != nil {
		return workspace.Dashboard{}, err
	}

	req := workspace.Dashboard{
		SerializedDashboard: string(serialized),
		WarehouseID:         target.WarehouseID,
	}
	if target.DashboardID != "" {
		req.DashboardID = target.DashboardID
		out, err := d.ws.UpdateDashboard(ctx, req)
		if err != nil {
			return workspace.Dashboard{}, err
		}
		d.logger.Info("updated dashboard", "id", out.DashboardID, "path", out.Path)
		return out, nil
	}

	req.DisplayName = target.DisplayName
	req.ParentPath = target.ParentPath
	out, err := d.ws.CreateDashboard(ctx, req)
	if err != nil {
		return workspace.Dashboard{}, err
	}
	d.logger.Info("created dashboard", "id", out.DashboardID, "path", out.Path)
	return out, nil
}

// Fingerprint identifies the content of a dashboard independently of
// workspace assigned identifiers.
func Fingerprint(dash lakeview.Dashboard) (string, error) {
	data, err := lakeview.Marshal(normalize.Normalize(dash))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Diff describes how b differs from a after normalizing both. It is empty
// when they are equivalent.
func Diff(a, b lakeview.Dashboard) string {
	return cmp.Diff(normalize.Normalize(a), normalize.Normalize(b))
}

// pageYAML renders the wire form of a page as YAML.
func pageYAML(page lakeview.Page) ([]byte, error) {
	data, err := json.Marshal(page)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to encode page: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

// checkFileNames fails when two datasets or two pages would be saved to the
// same file.
func checkFileNames(dash lakeview.Dashboard) error {
	seen := make(map[string]string, len(dash.Datasets)+len(dash.Pages))
	claim := func(file, name string) error {
		if other, ok := seen[file]; ok {
			return &InvalidArgumentError{Message: fmt.Sprintf("%q and %q both save to %s", other, name, file)}
		}
		seen[file] = name
		return nil
	}
	for _, ds := range dash.Datasets {
		if err := claim(fileName(ds.Name)+".sql", ds.Name); err != nil {
			return err
		}
	}
	for _, page := range dash.Pages {
		if err := claim(fileName(page.Name)+".yml", page.Name); err != nil {
			return err
		}
	}
	return nil
}

// fileName makes a dataset or page name safe to use as a file name.
func fileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
