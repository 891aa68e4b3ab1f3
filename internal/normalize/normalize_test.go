package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

const (
	dashID  = "01eeb077e38c17e6ba3511036985960c"
	salesID = "01eeb081882017f6a116991d124d3068"
)

// local is a dashboard as assembled from a folder.
func local() lakeview.Dashboard {
	return lakeview.Dashboard{
		Datasets: []lakeview.Dataset{{Name: "sales", DisplayName: "sales", Query: "SELECT\n  country,\n  amount\nFROM t"}},
		Pages: []lakeview.Page{{
			Name:        "overview",
			DisplayName: "overview",
			Layout: []lakeview.Layout{
				{
					Widget: lakeview.Widget{
						Name: "sales_filter_country",
						Queries: []lakeview.NamedQuery{{
							Name: "sales_country",
							Query: lakeview.Query{
								DatasetName: "sales",
								Fields:      []lakeview.Field{{Name: "country", Expression: "`country`"}},
							},
						}},
						Spec: lakeview.NewFilterSpec("country", "sales_country"),
					},
					Position: lakeview.Position{X: 0, Y: 0, Width: 6, Height: 1},
				},
				{
					Widget: lakeview.Widget{
						Name: "sales",
						Queries: []lakeview.NamedQuery{{
							Name: "sales_country_amount",
							Query: lakeview.Query{
								DatasetName:   "sales",
								Fields:        []lakeview.Field{{Name: "country", Expression: "`country`"}, {Name: "amount", Expression: "`amount`"}},
								Disaggregated: true,
							},
						}},
						Spec: lakeview.NewTableSpec("country", "amount"),
					},
					Position: lakeview.Position{X: 0, Y: 1, Width: 6, Height: 6},
				},
				{
					Widget:   lakeview.Widget{Name: "notes", TextboxSpec: "hello"},
					Position: lakeview.Position{X: 0, Y: 7, Width: 6, Height: 2},
				},
			},
		}},
	}
}

// remote is local after the workspace replaced its identifiers.
func remote() lakeview.Dashboard {
	d := local()
	d.Datasets[0].Name = "a1b2c3d4"
	d.Pages[0].Name = "e5f6a7b8"

	prefix := "dashboards/" + dashID + "/datasets/" + salesID + "_"
	filter := &d.Pages[0].Layout[0].Widget
	filter.Name = "w1"
	filter.Queries[0].Name = prefix + "sales_country"
	filter.Queries[0].Query.DatasetName = "a1b2c3d4"
	filter.Spec = lakeview.NewFilterSpec("country", prefix+"sales_country")

	table := &d.Pages[0].Layout[1].Widget
	table.Name = "w2"
	table.Queries[0].Name = prefix + "main_query"
	table.Queries[0].Query.DatasetName = "a1b2c3d4"
	return d
}

func TestNormalize_RemoteMatchesLocal(t *testing.T) {
	want := Normalize(local())
	got := Normalize(remote())

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalized dashboards differ (-local +remote):\n%s", diff)
	}
}

func TestNormalize_Names(t *testing.T) {
	got := Normalize(remote())

	assert.Equal(t, "sales", got.Datasets[0].Name)
	assert.Equal(t, "overview", got.Pages[0].Name)

	layout := got.Pages[0].Layout
	assert.Equal(t, lakeview.WidgetFilterMultiSelect, layout[0].Widget.Name)
	assert.Equal(t, "sales_country", layout[0].Widget.Queries[0].Name)
	assert.Equal(t, "sales", layout[0].Widget.Queries[0].Query.DatasetName)

	filter, ok := layout[0].Widget.Spec.(*lakeview.FilterSpec)
	require.True(t, ok)
	assert.Equal(t, "sales_country", filter.Encodings.Fields[0].QueryName)

	assert.Equal(t, lakeview.WidgetTable, layout[1].Widget.Name)
	assert.Equal(t, "sales_country_amount", layout[1].Widget.Queries[0].Name)

	assert.Equal(t, "notes", layout[2].Widget.Name, "widgets without spec keep their name")
	assert.NoError(t, got.Validate())
}

func TestNormalize_ControlBeforeQuery(t *testing.T) {
	// the filter control references a query of a widget placed after it
	d := remote()
	layout := d.Pages[0].Layout
	layout[0].Widget.Queries = nil
	layout[0].Widget.Spec = lakeview.NewFilterSpec("country", layout[1].Widget.Queries[0].Name)

	got := Normalize(d)

	filter := got.Pages[0].Layout[0].Widget.Spec.(*lakeview.FilterSpec)
	assert.Equal(t, "sales_country_amount", filter.Encodings.Fields[0].QueryName)
}

func TestApply_DoesNotMutateInputs(t *testing.T) {
	d := remote()
	names := Names{"a1b2c3d4": "sales"}

	Apply(d, names)

	assert.Equal(t, Names{"a1b2c3d4": "sales"}, names)
	if diff := cmp.Diff(remote(), d); diff != "" {
		t.Errorf("dashboard mutated:\n%s", diff)
	}
}

func TestApply_UnmappedNamesUnchanged(t *testing.T) {
	d := lakeview.Dashboard{
		Datasets: []lakeview.Dataset{{Name: "raw", Query: "SELECT 1"}},
		Pages: []lakeview.Page{{
			Name: "p",
			Layout: []lakeview.Layout{{
				Widget: lakeview.Widget{
					Name: "free",
					Queries: []lakeview.NamedQuery{{
						Name:  "custom",
						Query: lakeview.Query{DatasetName: "raw"},
					}},
				},
			}},
		}},
	}

	got := Apply(d, nil)

	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("unexpected rename:\n%s", diff)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Normalize(remote())
	twice := Normalize(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second normalization changed the dashboard:\n%s", diff)
	}
}

func TestBetterNames(t *testing.T) {
	names := BetterNames(remote())
	assert.Equal(t, Names{"a1b2c3d4": "sales", "e5f6a7b8": "overview"}, names)
}
