// Package metadata loads a dashboard folder into an ordered list of tiles.
//
// A folder holds one tile per .sql or .md file and an optional dashboard.yml
// that names the dashboard and overrides individual tiles by id. A tile entry
// accepts filters under either "filters" or "filter", the name of the
// directive flag.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapdash/internal/directive"
)

// Kind is the source type of a tile.
type Kind string

// Tile kinds.
const (
	KindQuery    Kind = "query"
	KindMarkdown Kind = "markdown"
)

// Config file names, in lookup order.
var configFiles = []string{"dashboard.yml", "dashboard.yaml"}

// Dashboard is the loaded description of one dashboard folder.
type Dashboard struct {
	// Name is the folder name
	Name string
	// DisplayName comes from dashboard.yml, defaulting to Name
	DisplayName string
	Dir         string
	Tiles       []Tile
}

// Tile is one query or markdown file with its resolved settings.
// Zero Width or Height means the assembler picks a default for the widget type.
type Tile struct {
	// ID is the file name without extension
	ID   string
	Kind Kind
	Path string
	// Content is the SQL body (directive line removed) or the markdown text
	Content     string
	Width       int
	Height      int
	Order       float64
	Title       string
	Description string
	Filters     []string
	Overrides   map[string]any
}

// TileOverride is a tile fragment of dashboard.yml.
type TileOverride struct {
	Width       *int           `mapstructure:"width"`
	Height      *int           `mapstructure:"height"`
	Order       *float64       `mapstructure:"order"`
	Title       *string        `mapstructure:"title"`
	Description *string        `mapstructure:"description"`
	Filters     []string       `mapstructure:"filters"`
	Filter      []string       `mapstructure:"filter"`
	Overrides   map[string]any `mapstructure:"overrides"`
}

type dashboardFile struct {
	DisplayName string                    `yaml:"display_name"`
	Tiles       map[string]map[string]any `yaml:"tiles"`
}

// MetadataError reports a folder that cannot be loaded.
type MetadataError struct {
	Path    string
	Message string
	Err     error
}

func (e *MetadataError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// Option configures Load.
type Option func(*loader)

// WithLogger sets the logger used for warnings about ignored configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

type loader struct {
	logger *slog.Logger
}

// Load reads dir non-recursively. Tiles are returned in file name order with
// their order defaulting to that position.
func Load(dir string, opts ...Option) (*Dashboard, error) {
	l := &loader{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}
	return l.load(dir)
}

func (l *loader) load(dir string) (*Dashboard, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MetadataError{Path: dir, Message: "dashboard folder does not exist", Err: err}
		}
		return nil, &MetadataError{Path: dir, Message: "cannot read dashboard folder", Err: err}
	}
	if !info.IsDir() {
		return nil, &MetadataError{Path: dir, Message: "not a directory"}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &MetadataError{Path: dir, Message: "cannot read dashboard folder", Err: err}
	}

	name := filepath.Base(dir)
	if abs, err := filepath.Abs(dir); err == nil {
		name = filepath.Base(abs)
	}
	dash := &Dashboard{Name: name, DisplayName: name, Dir: dir}

	var configPath string
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()
		path := filepath.Join(dir, fileName)

		if slices.Contains(configFiles, fileName) {
			if configPath != "" {
				return nil, &MetadataError{Path: dir, Message: "both dashboard.yml and dashboard.yaml present"}
			}
			configPath = path
			continue
		}

		ext := strings.ToLower(filepath.Ext(fileName))
		if ext != ".sql" && ext != ".md" {
			l.logger.Debug("skipping file", "path", path)
			continue
		}

		id := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		if other, ok := seen[id]; ok {
			return nil, &MetadataError{Path: path, Message: fmt.Sprintf("tile id %q already used by %s", id, other)}
		}
		seen[id] = path

		tile, err := l.loadTile(path, id, ext, len(dash.Tiles))
		if err != nil {
			return nil, err
		}
		dash.Tiles = append(dash.Tiles, tile)
	}

	if len(dash.Tiles) == 0 {
		return nil, &MetadataError{Path: dir, Message: "no .sql or .md files found"}
	}

	if configPath != "" {
		if err := l.applyConfig(dash, configPath); err != nil {
			return nil, err
		}
	}
	return dash, nil
}

func (l *loader) loadTile(path, id, ext string, index int) (Tile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tile{}, &MetadataError{Path: path, Message: "cannot read file", Err: err}
	}

	tile := Tile{ID: id, Path: path, Order: float64(index)}
	switch ext {
	case ".sql":
		d, body, err := directive.Parse(string(data))
		if err != nil {
			var de *directive.DirectiveError
			if errors.As(err, &de) {
				de.Path = path
			}
			return Tile{}, err
		}
		tile.Kind = KindQuery
		tile.Content = body
		tile.Width = d.Width
		tile.Height = d.Height
		if d.Order != nil {
			tile.Order = *d.Order
		}
		tile.Title = d.Title
		tile.Description = d.Description
		tile.Filters = dedupe(d.Filters)
		tile.Overrides = d.Overrides
	case ".md":
		fm, text, err := ExtractFrontmatter(string(data))
		if err != nil {
			var me *MetadataError
			if errors.As(err, &me) {
				me.Path = path
			}
			return Tile{}, err
		}
		tile.Kind = KindMarkdown
		tile.Content = text
		if fm.Width != nil {
			tile.Width = *fm.Width
		}
		if fm.Height != nil {
			tile.Height = *fm.Height
		}
		if fm.Order != nil {
			tile.Order = *fm.Order
		}
	}

	l.logger.Debug("loaded tile", "id", tile.ID, "kind", tile.Kind, "order", tile.Order)
	return tile, nil
}

func (l *loader) applyConfig(dash *Dashboard, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &MetadataError{Path: path, Message: "cannot read file", Err: err}
	}
	defer f.Close()

	var cfg dashboardFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return &MetadataError{Path: path, Message: fmt.Sprintf("invalid YAML: %v", err), Err: err}
	}

	if cfg.DisplayName != "" {
		dash.DisplayName = cfg.DisplayName
	}

	index := make(map[string]int, len(dash.Tiles))
	for i, t := range dash.Tiles {
		index[t.ID] = i
	}

	ids := make([]string, 0, len(cfg.Tiles))
	for id := range cfg.Tiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		i, ok := index[id]
		if !ok {
			l.logger.Warn("ignoring configuration for unknown tile", "tile", id, "path", path)
			continue
		}
		override, err := decodeOverride(cfg.Tiles[id])
		if err != nil {
			return &MetadataError{Path: path, Message: fmt.Sprintf("tile %q: %v", id, err), Err: err}
		}
		if err := override.apply(&dash.Tiles[i]); err != nil {
			return &MetadataError{Path: path, Message: fmt.Sprintf("tile %q: %v", id, err)}
		}
	}
	return nil
}

func decodeOverride(fragment map[string]any) (TileOverride, error) {
	var override TileOverride
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &override,
	})
	if err != nil {
		return TileOverride{}, err
	}
	if err := dec.Decode(fragment); err != nil {
		return TileOverride{}, err
	}
	return override, nil
}

// apply layers the fragment over t. Scalars replace, filters are appended and
// override keys replace keys of the same name.
func (o TileOverride) apply(t *Tile) error {
	if o.Width != nil {
		if *o.Width < 1 {
			return fmt.Errorf("width must be at least 1, got %d", *o.Width)
		}
		t.Width = *o.Width
	}
	if o.Height != nil {
		if *o.Height < 1 {
			return fmt.Errorf("height must be at least 1, got %d", *o.Height)
		}
		t.Height = *o.Height
	}
	if o.Order != nil {
		t.Order = *o.Order
	}
	if o.Title != nil {
		t.Title = *o.Title
	}
	if o.Description != nil {
		t.Description = *o.Description
	}
	if filters := slices.Concat(o.Filters, o.Filter); len(filters) > 0 {
		if t.Kind != KindQuery {
			return fmt.Errorf("filters require a query tile")
		}
		t.Filters = dedupe(append(slices.Clone(t.Filters), filters...))
	}
	if len(o.Overrides) > 0 {
		merged := make(map[string]any, len(t.Overrides)+len(o.Overrides))
		for k, v := range t.Overrides {
			merged[k] = v
		}
		for k, v := range o.Overrides {
			merged[k] = v
		}
		t.Overrides = merged
	}
	return nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
