// Package normalize replaces generated identifiers in a dashboard with stable,
// human readable names.
//
// Dashboards that went through the workspace carry service generated dataset,
// page and query names. After normalization a locally assembled dashboard and
// its deployed copy compare equal.
package normalize

import (
	"maps"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// Names maps an existing identifier to its replacement.
type Names map[string]string

func (n Names) lookup(name string) string {
	if better, ok := n[name]; ok {
		return better
	}
	return name
}

// generatedQueryName matches named queries created by the workspace:
// dashboards/<dashboard id>/datasets/<dataset id>_<suffix>
var generatedQueryName = regexp.MustCompile(`^dashboards/[^/]+/datasets/[^/_]+_`)

// BetterNames maps dataset and page names to their display names.
func BetterNames(d lakeview.Dashboard) Names {
	names := make(Names)
	for _, ds := range d.Datasets {
		if ds.DisplayName != "" {
			names[ds.Name] = ds.DisplayName
		}
	}
	for _, p := range d.Pages {
		if p.DisplayName != "" {
			names[p.Name] = p.DisplayName
		}
	}
	return names
}

// Normalize renames d using its own display names.
func Normalize(d lakeview.Dashboard) lakeview.Dashboard {
	return Apply(d, BetterNames(d))
}

// Apply renames every identifier of d through names. Generated named query
// names are first replaced by the dataset name joined with the field names.
// Neither d nor names is modified.
func Apply(d lakeview.Dashboard, names Names) lakeview.Dashboard {
	all := maps.Clone(names)
	if all == nil {
		all = make(Names)
	}

	lakeview.Rewrite(d, &collector{names: all})
	return lakeview.Rewrite(d, &renamer{names: all})
}

// collector registers a stable name for every generated named query.
type collector struct {
	lakeview.BaseVisitor
	names Names
}

func (c *collector) VisitNamedQuery(nq lakeview.NamedQuery) lakeview.NamedQuery {
	if !generatedQueryName.MatchString(nq.Name) {
		return nq
	}
	parts := []string{c.names.lookup(nq.Query.DatasetName)}
	for _, f := range nq.Query.Fields {
		parts = append(parts, f.Name)
	}
	c.names[nq.Name] = strings.Join(parts, "_")
	return nq
}

// renamer applies the collected names.
type renamer struct {
	names Names
}

func (r *renamer) VisitDataset(ds lakeview.Dataset) lakeview.Dataset {
	ds.Name = r.names.lookup(ds.Name)
	return ds
}

func (r *renamer) VisitPage(p lakeview.Page) lakeview.Page {
	p.Name = r.names.lookup(p.Name)
	return p
}

func (r *renamer) VisitQuery(q lakeview.Query) lakeview.Query {
	q.DatasetName = r.names.lookup(q.DatasetName)
	return q
}

func (r *renamer) VisitNamedQuery(nq lakeview.NamedQuery) lakeview.NamedQuery {
	nq.Name = r.names.lookup(nq.Name)
	return nq
}

func (r *renamer) VisitControlFieldEncoding(c lakeview.ControlFieldEncoding) lakeview.ControlFieldEncoding {
	c.QueryName = r.names.lookup(c.QueryName)
	return c
}

func (r *renamer) VisitWidget(w lakeview.Widget) lakeview.Widget {
	if w.Spec != nil {
		if t := w.Spec.Type(); t != "" {
			w.Name = t
			return w
		}
	}
	w.Name = r.names.lookup(w.Name)
	return w
}
