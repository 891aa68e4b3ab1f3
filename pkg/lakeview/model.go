// Package lakeview defines the Lakeview dashboard object model and its JSON wire form.
//
// A Dashboard owns its Datasets and Pages, a Page owns its Layout entries and a
// Widget owns its NamedQueries. Queries reference datasets by name only.
package lakeview

import (
	"encoding/json"
	"fmt"
)

// Dashboard is the root aggregate exchanged with the workspace as a single JSON document.
type Dashboard struct {
	Datasets []Dataset `json:"datasets"`
	Pages    []Page    `json:"pages"`
}

// Dataset is a named SQL query that widgets project from.
type Dataset struct {
	// Name identifies the dataset within the dashboard
	Name string `json:"name"`
	// DisplayName is the human readable name shown in the editor
	DisplayName string `json:"displayName,omitempty"`
	// Query is the SQL text
	Query string `json:"query"`
}

// Page is a named collection of positioned widgets.
type Page struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName,omitempty"`
	Layout      []Layout `json:"layout"`
}

// Layout places one widget on the page grid.
type Layout struct {
	Widget   Widget   `json:"widget"`
	Position Position `json:"position"`
}

// Position is a rectangle on the page grid, in grid cells.
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Overlaps reports whether two positions share at least one grid cell.
func (p Position) Overlaps(o Position) bool {
	return p.X < o.X+o.Width && o.X < p.X+p.Width &&
		p.Y < o.Y+o.Height && o.Y < p.Y+p.Height
}

// NamedQuery binds a query to a name a widget spec can refer to.
type NamedQuery struct {
	Name  string `json:"name"`
	Query Query  `json:"query"`
}

// Query projects fields out of a dataset.
type Query struct {
	// DatasetName references Dataset.Name (non-owning)
	DatasetName   string  `json:"datasetName"`
	Fields        []Field `json:"fields"`
	Disaggregated bool    `json:"disaggregated"`
}

// Field is a single projected expression.
type Field struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// ControlFieldEncoding binds a filter control to a field of a named query.
type ControlFieldEncoding struct {
	FieldName   string `json:"fieldName"`
	DisplayName string `json:"displayName,omitempty"`
	QueryName   string `json:"queryName"`
}

// Parse decodes a serialized dashboard.
func Parse(data []byte) (Dashboard, error) {
	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return Dashboard{}, fmt.Errorf("failed to parse dashboard: %w", err)
	}
	return d, nil
}

// Marshal encodes a dashboard to its wire form.
func Marshal(d Dashboard) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize dashboard: %w", err)
	}
	return data, nil
}

// MarshalIndent encodes a dashboard in a human readable form.
func MarshalIndent(d Dashboard) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize dashboard: %w", err)
	}
	return data, nil
}

// Dataset returns the dataset with the given name.
func (d Dashboard) Dataset(name string) (Dataset, bool) {
	for _, ds := range d.Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return Dataset{}, false
}

// Validate checks the aggregate invariants: dataset names are unique and every
// query references an existing dataset.
func (d Dashboard) Validate() error {
	seen := make(map[string]bool, len(d.Datasets))
	for _, ds := range d.Datasets {
		if ds.Name == "" {
			return fmt.Errorf("dataset with empty name")
		}
		if seen[ds.Name] {
			return fmt.Errorf("duplicate dataset name %q", ds.Name)
		}
		seen[ds.Name] = true
	}

	refs := &datasetRefs{}
	Rewrite(d, refs)
	for _, name := range refs.names {
		if !seen[name] {
			return fmt.Errorf("query references unknown dataset %q", name)
		}
	}
	return nil
}

// datasetRefs collects every dataset name referenced by a query.
type datasetRefs struct {
	BaseVisitor
	names []string
}

func (r *datasetRefs) VisitQuery(q Query) Query {
	r.names = append(r.names, q.DatasetName)
	return q
}
