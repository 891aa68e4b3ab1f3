// Package assemble builds a Lakeview dashboard from loaded folder metadata.
//
// Every query tile becomes a dataset plus a counter or table widget (and one
// filter widget per filter column), every markdown tile a text box. All
// widgets land on a single page named after the folder.
package assemble

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapdash/internal/layout"
	"github.com/leapstack-labs/leapdash/internal/metadata"
	"github.com/leapstack-labs/leapdash/pkg/format"
	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// Default widget sizes in grid cells.
const (
	CounterWidth   = 1
	CounterHeight  = 3
	TableWidth     = 6
	TableHeight    = 6
	MarkdownWidth  = 6
	MarkdownHeight = 2
	FilterHeight   = 1
)

// fallbackColumn is displayed by counters whose query cannot be read.
const fallbackColumn = "count"

// Options configures Assemble.
type Options struct {
	// GridWidth is the page width in columns, layout.DefaultGridWidth when zero
	GridWidth int
	Logger    *slog.Logger
}

// tilePlan is a tile with its resolved widget type, size and query.
type tilePlan struct {
	tile       metadata.Tile
	widgetType string
	columns    []string
	query      string
	width      int
	height     int
	filterRows int
}

// Assemble turns loaded metadata into a dashboard. It either returns a complete,
// validated dashboard or an error.
func Assemble(meta *metadata.Dashboard, opts Options) (lakeview.Dashboard, error) {
	if meta == nil {
		return lakeview.Dashboard{}, fmt.Errorf("no dashboard metadata")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	gridWidth := opts.GridWidth
	if gridWidth <= 0 {
		gridWidth = layout.DefaultGridWidth
	}

	plans := make(map[string]*tilePlan, len(meta.Tiles))
	items := make([]layout.Item, 0, len(meta.Tiles))
	for _, tile := range meta.Tiles {
		plan := planTile(tile, gridWidth, logger)
		plans[tile.ID] = plan
		items = append(items, layout.Item{
			ID:     tile.ID,
			Width:  plan.width,
			Height: plan.height + plan.filterRows,
			Order:  tile.Order,
		})
	}

	var d lakeview.Dashboard
	page := lakeview.Page{Name: meta.Name, DisplayName: meta.DisplayName}
	for _, placement := range layout.Arrange(items, gridWidth) {
		plan := plans[placement.ID]
		entries, err := plan.layouts(placement.Position)
		if err != nil {
			return lakeview.Dashboard{}, fmt.Errorf("tile %s (%s): %w", plan.tile.ID, plan.tile.Path, err)
		}
		if plan.tile.Kind == metadata.KindQuery {
			d.Datasets = append(d.Datasets, lakeview.Dataset{
				Name:        plan.tile.ID,
				DisplayName: plan.tile.ID,
				Query:       plan.query,
			})
		}
		page.Layout = append(page.Layout, entries...)
	}
	d.Pages = []lakeview.Page{page}

	if err := d.Validate(); err != nil {
		return lakeview.Dashboard{}, fmt.Errorf("assembled dashboard is invalid: %w", err)
	}
	logger.Debug("assembled dashboard", "page", page.Name, "datasets", len(d.Datasets), "widgets", len(page.Layout))
	return d, nil
}

func planTile(tile metadata.Tile, gridWidth int, logger *slog.Logger) *tilePlan {
	plan := &tilePlan{tile: tile}

	if tile.Kind == metadata.KindMarkdown {
		plan.width, plan.height = sized(tile, MarkdownWidth, MarkdownHeight)
		return plan
	}

	formatted := format.SQL(tile.Content)
	plan.query = formatted.Text
	if !formatted.Formatted {
		logger.Debug("query kept unformatted", "tile", tile.ID, "reason", formatted.Reason)
	}

	proj, ok := projection{}, false
	if formatted.Formatted {
		proj, ok = inferColumns(plan.query)
	}
	switch {
	case !ok:
		logger.Warn("cannot infer query columns, using a counter", "tile", tile.ID, "column", fallbackColumn)
		plan.widgetType = lakeview.WidgetCounter
		plan.columns = []string{fallbackColumn}
	case len(proj.columns) == 1 && !proj.star:
		plan.widgetType = lakeview.WidgetCounter
		plan.columns = proj.columns
	default:
		plan.widgetType = lakeview.WidgetTable
		plan.columns = proj.columns
	}

	if plan.widgetType == lakeview.WidgetCounter {
		plan.width, plan.height = sized(tile, CounterWidth, CounterHeight)
	} else {
		plan.width, plan.height = sized(tile, TableWidth, TableHeight)
	}
	plan.width = min(plan.width, gridWidth)
	if n := len(tile.Filters); n > 0 {
		plan.filterRows = (n + plan.width - 1) / plan.width
	}
	return plan
}

func sized(tile metadata.Tile, width, height int) (int, int) {
	if tile.Width > 0 {
		width = tile.Width
	}
	if tile.Height > 0 {
		height = tile.Height
	}
	return width, height
}

// layouts returns the layout entries of the tile within its footprint:
// filter widgets on the top rows, the main widget below them.
func (p *tilePlan) layouts(footprint lakeview.Position) ([]lakeview.Layout, error) {
	var entries []lakeview.Layout

	filters := p.tile.Filters
	for row := 0; row < p.filterRows; row++ {
		perRow := min(footprint.Width, len(filters))
		rowFilters := filters[:perRow]
		filters = filters[perRow:]

		x := footprint.X
		for i, column := range rowFilters {
			width := footprint.Width / perRow
			if i == perRow-1 {
				width = footprint.X + footprint.Width - x
			}
			entries = append(entries, lakeview.Layout{
				Widget: p.filterWidget(column),
				Position: lakeview.Position{
					X:      x,
					Y:      footprint.Y + row*FilterHeight,
					Width:  width,
					Height: FilterHeight,
				},
			})
			x += width
		}
	}

	widget, err := p.widget()
	if err != nil {
		return nil, err
	}
	entries = append(entries, lakeview.Layout{
		Widget: widget,
		Position: lakeview.Position{
			X:      footprint.X,
			Y:      footprint.Y + p.filterRows*FilterHeight,
			Width:  footprint.Width,
			Height: footprint.Height - p.filterRows*FilterHeight,
		},
	})
	return entries, nil
}

func (p *tilePlan) widget() (lakeview.Widget, error) {
	if p.tile.Kind == metadata.KindMarkdown {
		return applyOverrides(lakeview.Widget{Name: p.tile.ID, TextboxSpec: p.tile.Content}, p.tile.Overrides)
	}

	fields := make([]lakeview.Field, 0, len(p.columns))
	for _, column := range p.columns {
		fields = append(fields, lakeview.Field{Name: column, Expression: fieldExpression(column)})
	}

	var frame *lakeview.Frame
	if p.tile.Title != "" || p.tile.Description != "" {
		frame = &lakeview.Frame{
			ShowTitle:       p.tile.Title != "",
			Title:           p.tile.Title,
			ShowDescription: p.tile.Description != "",
			Description:     p.tile.Description,
		}
	}

	var spec lakeview.Spec
	if p.widgetType == lakeview.WidgetCounter {
		counter := lakeview.NewCounterSpec(p.columns[0])
		counter.Frame = frame
		spec = counter
	} else {
		table := lakeview.NewTableSpec(p.columns...)
		table.Frame = frame
		spec = table
	}

	w := lakeview.Widget{
		Name: p.tile.ID,
		Queries: []lakeview.NamedQuery{{
			Name: QueryName(p.tile.ID, p.columns...),
			Query: lakeview.Query{
				DatasetName:   p.tile.ID,
				Fields:        fields,
				Disaggregated: true,
			},
		}},
		Spec: spec,
	}
	return applyOverrides(w, p.tile.Overrides)
}

func (p *tilePlan) filterWidget(column string) lakeview.Widget {
	queryName := QueryName(p.tile.ID, column)
	return lakeview.Widget{
		Name: p.tile.ID + "_filter_" + column,
		Queries: []lakeview.NamedQuery{{
			Name: queryName,
			Query: lakeview.Query{
				DatasetName: p.tile.ID,
				Fields:      []lakeview.Field{{Name: column, Expression: fieldExpression(column)}},
			},
		}},
		Spec: lakeview.NewFilterSpec(column, queryName),
	}
}

// QueryName is the name given to a named query over dataset projecting fields.
// Normalized remote dashboards use the same scheme.
func QueryName(dataset string, fields ...string) string {
	return strings.Join(append([]string{dataset}, fields...), "_")
}

// applyOverrides merges overrides into the widget's JSON form. Top level keys
// replace, except "spec" whose keys replace the keys of the synthesized spec.
func applyOverrides(w lakeview.Widget, overrides map[string]any) (lakeview.Widget, error) {
	if len(overrides) == 0 {
		return w, nil
	}
	m, err := w.ToMap()
	if err != nil {
		return lakeview.Widget{}, fmt.Errorf("failed to encode widget: %w", err)
	}
	for key, value := range overrides {
		spec, isMap := value.(map[string]any)
		current, hasSpec := m[key].(map[string]any)
		if key == "spec" && isMap && hasSpec {
			merged := make(map[string]any, len(current)+len(spec))
			for k, v := range current {
				merged[k] = v
			}
			for k, v := range spec {
				merged[k] = v
			}
			m[key] = merged
			continue
		}
		m[key] = value
	}
	out, err := lakeview.WidgetFromMap(m)
	if err != nil {
		return lakeview.Widget{}, fmt.Errorf("invalid overrides: %w", err)
	}
	return out, nil
}
