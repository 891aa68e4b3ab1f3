package lakeview

// Visitor is called once for every identifiable node of a dashboard.
// Each method receives a node whose children have already been visited and
// returns the node to use in its place.
type Visitor interface {
	VisitDataset(Dataset) Dataset
	VisitPage(Page) Page
	VisitQuery(Query) Query
	VisitNamedQuery(NamedQuery) NamedQuery
	VisitControlFieldEncoding(ControlFieldEncoding) ControlFieldEncoding
	VisitWidget(Widget) Widget
}

// BaseVisitor returns every node unchanged. Embed it to override only some node kinds.
type BaseVisitor struct{}

func (BaseVisitor) VisitDataset(d Dataset) Dataset          { return d }
func (BaseVisitor) VisitPage(p Page) Page                   { return p }
func (BaseVisitor) VisitQuery(q Query) Query                { return q }
func (BaseVisitor) VisitNamedQuery(n NamedQuery) NamedQuery { return n }
func (BaseVisitor) VisitControlFieldEncoding(c ControlFieldEncoding) ControlFieldEncoding {
	return c
}
func (BaseVisitor) VisitWidget(w Widget) Widget { return w }

// Rewrite walks d depth-first in field order and returns the rebuilt dashboard.
// Children are visited before their parent: datasets, then for every page its
// widgets (queries, then spec encodings, then the widget), then the page.
// d is not modified and the result shares no slices or maps with it.
func Rewrite(d Dashboard, v Visitor) Dashboard {
	return Dashboard{
		Datasets: mapSlice(d.Datasets, v.VisitDataset),
		Pages: mapSlice(d.Pages, func(p Page) Page {
			return rewritePage(p, v)
		}),
	}
}

func rewritePage(p Page, v Visitor) Page {
	p.Layout = mapSlice(p.Layout, func(l Layout) Layout {
		l.Widget = rewriteWidget(l.Widget, v)
		return l
	})
	return v.VisitPage(p)
}

func rewriteWidget(w Widget, v Visitor) Widget {
	w.Queries = mapSlice(w.Queries, func(nq NamedQuery) NamedQuery {
		nq.Query.Fields = cloneSlice(nq.Query.Fields)
		nq.Query = v.VisitQuery(nq.Query)
		return v.VisitNamedQuery(nq)
	})
	if w.Spec != nil {
		w.Spec = w.Spec.rewrite(v)
	}
	return v.VisitWidget(w)
}

// mapSlice applies fn to every element, preserving nil-ness.
func mapSlice[T any](in []T, fn func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, item := range in {
		out[i] = fn(item)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
