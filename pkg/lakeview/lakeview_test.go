package lakeview

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDashboard() Dashboard {
	return Dashboard{
		Datasets: []Dataset{
			{Name: "counter", DisplayName: "counter", Query: "SELECT 42 AS count"},
			{Name: "office", DisplayName: "office", Query: "SELECT city, country FROM office"},
		},
		Pages: []Page{{
			Name:        "overview",
			DisplayName: "overview",
			Layout: []Layout{
				{
					Widget: Widget{
						Name: "counter",
						Queries: []NamedQuery{{
							Name: "counter_count",
							Query: Query{
								DatasetName:   "counter",
								Fields:        []Field{{Name: "count", Expression: "`count`"}},
								Disaggregated: true,
							},
						}},
						Spec: NewCounterSpec("count"),
					},
					Position: Position{X: 0, Y: 0, Width: 1, Height: 3},
				},
				{
					Widget: Widget{
						Name: "office_filter_country",
						Queries: []NamedQuery{{
							Name: "office_country",
							Query: Query{
								DatasetName: "office",
								Fields:      []Field{{Name: "country", Expression: "`country`"}},
							},
						}},
						Spec: NewFilterSpec("country", "office_country"),
					},
					Position: Position{X: 1, Y: 0, Width: 5, Height: 1},
				},
				{
					Widget:   Widget{Name: "header", TextboxSpec: "# Offices"},
					Position: Position{X: 0, Y: 3, Width: 6, Height: 2},
				},
			},
		}},
	}
}

func TestParse_DispatchesOnWidgetType(t *testing.T) {
	data := `{
		"datasets": [{"name": "a", "query": "SELECT 1"}],
		"pages": [{"name": "p", "layout": [
			{"widget": {"name": "w1", "spec": {"version": 2, "widgetType": "counter", "encodings": {"value": {"fieldName": "count"}}}}, "position": {"x": 0, "y": 0, "width": 1, "height": 3}},
			{"widget": {"name": "w2", "spec": {"version": 2, "widgetType": "table", "encodings": {"columns": [{"fieldName": "a"}]}}}, "position": {"x": 1, "y": 0, "width": 5, "height": 6}},
			{"widget": {"name": "w3", "spec": {"version": 2, "widgetType": "filter-single-select", "encodings": {"fields": [{"fieldName": "a", "queryName": "q"}]}}}, "position": {"x": 0, "y": 6, "width": 1, "height": 1}},
			{"widget": {"name": "w4", "spec": {"version": 3, "widgetType": "bar", "encodings": {"x": {"fieldName": "a"}}}}, "position": {"x": 1, "y": 6, "width": 1, "height": 1}},
			{"widget": {"name": "w5", "textbox_spec": "hello"}, "position": {"x": 2, "y": 6, "width": 1, "height": 1}}
		]}]
	}`

	d, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Len(t, d.Pages, 1)
	layout := d.Pages[0].Layout
	require.Len(t, layout, 5)

	counter, ok := layout[0].Widget.Spec.(*CounterSpec)
	require.True(t, ok, "expected *CounterSpec, got %T", layout[0].Widget.Spec)
	assert.Equal(t, "count", counter.Encodings.Value.FieldName)

	table, ok := layout[1].Widget.Spec.(*TableSpec)
	require.True(t, ok, "expected *TableSpec, got %T", layout[1].Widget.Spec)
	assert.Equal(t, []RenderFieldEncoding{{FieldName: "a"}}, table.Encodings.Columns)

	filter, ok := layout[2].Widget.Spec.(*FilterSpec)
	require.True(t, ok, "expected *FilterSpec, got %T", layout[2].Widget.Spec)
	assert.Equal(t, "filter-single-select", filter.Type())
	assert.Equal(t, "q", filter.Encodings.Fields[0].QueryName)

	raw, ok := layout[3].Widget.Spec.(RawSpec)
	require.True(t, ok, "expected RawSpec, got %T", layout[3].Widget.Spec)
	assert.Equal(t, "bar", raw.Type())

	assert.Nil(t, layout[4].Widget.Spec)
	assert.Equal(t, "hello", layout[4].Widget.TextboxSpec)
}

func TestParse_UnknownKeysFallBackToRawSpec(t *testing.T) {
	data := `{"datasets": [], "pages": [{"name": "p", "layout": [
		{"widget": {"name": "w", "spec": {"version": 2, "widgetType": "counter", "encodings": {"value": {"fieldName": "c"}, "target": {"fieldName": "t"}}}}, "position": {"x": 0, "y": 0, "width": 1, "height": 1}}
	]}]}`

	d, err := Parse([]byte(data))
	require.NoError(t, err)

	spec := d.Pages[0].Layout[0].Widget.Spec
	raw, ok := spec.(RawSpec)
	require.True(t, ok, "expected RawSpec, got %T", spec)
	assert.Equal(t, "counter", raw.Type())

	out, err := Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"target":{"fieldName":"t"}`)
}

func TestMarshal_RoundTrip(t *testing.T) {
	d := sampleDashboard()

	data, err := Marshal(d)
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)

	if diff := cmp.Diff(d, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshal_WireKeys(t *testing.T) {
	data, err := Marshal(sampleDashboard())
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))

	pages := generic["pages"].([]any)
	layout := pages[0].(map[string]any)["layout"].([]any)
	widget := layout[0].(map[string]any)["widget"].(map[string]any)
	query := widget["queries"].([]any)[0].(map[string]any)["query"].(map[string]any)
	assert.Equal(t, "counter", query["datasetName"])
	assert.Equal(t, true, query["disaggregated"])

	spec := widget["spec"].(map[string]any)
	assert.Equal(t, "counter", spec["widgetType"])
	assert.EqualValues(t, 2, spec["version"])

	textbox := layout[2].(map[string]any)["widget"].(map[string]any)
	assert.Equal(t, "# Offices", textbox["textbox_spec"])
	assert.NotContains(t, textbox, "spec")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Dashboard)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(_ *Dashboard) {},
		},
		{
			name: "duplicate dataset",
			mutate: func(d *Dashboard) {
				d.Datasets = append(d.Datasets, Dataset{Name: "counter", Query: "SELECT 1"})
			},
			wantErr: `duplicate dataset name "counter"`,
		},
		{
			name: "dangling reference",
			mutate: func(d *Dashboard) {
				d.Datasets = d.Datasets[:1]
			},
			wantErr: `unknown dataset "office"`,
		},
		{
			name: "empty dataset name",
			mutate: func(d *Dashboard) {
				d.Datasets[0].Name = ""
			},
			wantErr: "empty name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sampleDashboard()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPosition_Overlaps(t *testing.T) {
	a := Position{X: 0, Y: 0, Width: 2, Height: 2}
	assert.True(t, a.Overlaps(Position{X: 1, Y: 1, Width: 2, Height: 2}))
	assert.False(t, a.Overlaps(Position{X: 2, Y: 0, Width: 1, Height: 2}))
	assert.False(t, a.Overlaps(Position{X: 0, Y: 2, Width: 2, Height: 1}))
}

func TestWidgetMapRoundTrip(t *testing.T) {
	w := sampleDashboard().Pages[0].Layout[0].Widget

	m, err := w.ToMap()
	require.NoError(t, err)
	spec := m["spec"].(map[string]any)
	spec["frame"] = map[string]any{"showTitle": true, "title": "Answer"}

	back, err := WidgetFromMap(m)
	require.NoError(t, err)
	counter, ok := back.Spec.(*CounterSpec)
	require.True(t, ok)
	require.NotNil(t, counter.Frame)
	assert.Equal(t, "Answer", counter.Frame.Title)
}
