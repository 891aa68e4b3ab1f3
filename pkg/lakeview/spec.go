package lakeview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Widget types understood by the typed spec variants.
const (
	WidgetCounter           = "counter"
	WidgetTable             = "table"
	WidgetFilterMultiSelect = "filter-multi-select"

	filterPrefix = "filter-"
)

// Spec versions emitted for new widgets.
const (
	CounterVersion = 2
	TableVersion   = 2
	FilterVersion  = 2
)

// Spec is the visual specification of a widget.
// The set of implementations is closed: CounterSpec, TableSpec, FilterSpec and RawSpec.
type Spec interface {
	// Type returns the declared widget type tag, or "" when absent.
	Type() string

	rewrite(v Visitor) Spec
}

// Frame holds the title and description shown around a widget.
type Frame struct {
	ShowTitle       bool   `json:"showTitle,omitempty"`
	Title           string `json:"title,omitempty"`
	ShowDescription bool   `json:"showDescription,omitempty"`
	Description     string `json:"description,omitempty"`
}

// CounterSpec shows a single value.
type CounterSpec struct {
	Version    int                `json:"version"`
	WidgetType string             `json:"widgetType"`
	Encodings  CounterEncodingMap `json:"encodings"`
	Frame      *Frame             `json:"frame,omitempty"`
}

// CounterEncodingMap holds the counter value encoding.
type CounterEncodingMap struct {
	Value *CounterFieldEncoding `json:"value,omitempty"`
}

// CounterFieldEncoding names the field a counter displays.
type CounterFieldEncoding struct {
	FieldName   string `json:"fieldName"`
	DisplayName string `json:"displayName,omitempty"`
}

// NewCounterSpec returns a counter spec displaying field.
func NewCounterSpec(field string) *CounterSpec {
	return &CounterSpec{
		Version:    CounterVersion,
		WidgetType: WidgetCounter,
		Encodings: CounterEncodingMap{
			Value: &CounterFieldEncoding{FieldName: field, DisplayName: field},
		},
	}
}

// Type implements Spec.
func (s *CounterSpec) Type() string { return s.WidgetType }

func (s *CounterSpec) rewrite(_ Visitor) Spec {
	out := *s
	if s.Encodings.Value != nil {
		value := *s.Encodings.Value
		out.Encodings.Value = &value
	}
	out.Frame = cloneFrame(s.Frame)
	return &out
}

// TableSpec shows query rows as a table.
type TableSpec struct {
	Version    int              `json:"version"`
	WidgetType string           `json:"widgetType"`
	Encodings  TableEncodingMap `json:"encodings"`
	Frame      *Frame           `json:"frame,omitempty"`
}

// TableEncodingMap lists the rendered columns.
type TableEncodingMap struct {
	Columns []RenderFieldEncoding `json:"columns"`
}

// RenderFieldEncoding renders one field as a table column.
type RenderFieldEncoding struct {
	FieldName   string `json:"fieldName"`
	DisplayName string `json:"displayName,omitempty"`
}

// NewTableSpec returns a table spec rendering the given fields in order.
func NewTableSpec(fields ...string) *TableSpec {
	columns := make([]RenderFieldEncoding, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, RenderFieldEncoding{FieldName: f, DisplayName: f})
	}
	return &TableSpec{
		Version:    TableVersion,
		WidgetType: WidgetTable,
		Encodings:  TableEncodingMap{Columns: columns},
	}
}

// Type implements Spec.
func (s *TableSpec) Type() string { return s.WidgetType }

func (s *TableSpec) rewrite(_ Visitor) Spec {
	out := *s
	out.Encodings.Columns = cloneSlice(s.Encodings.Columns)
	out.Frame = cloneFrame(s.Frame)
	return &out
}

// FilterSpec is a filter control bound to one or more named queries.
type FilterSpec struct {
	Version    int               `json:"version"`
	WidgetType string            `json:"widgetType"`
	Encodings  FilterEncodingMap `json:"encodings"`
	Frame      *Frame            `json:"frame,omitempty"`
}

// FilterEncodingMap lists the controlled fields.
type FilterEncodingMap struct {
	Fields []ControlFieldEncoding `json:"fields"`
}

// NewFilterSpec returns a multi-select filter on field of the named query.
func NewFilterSpec(field, queryName string) *FilterSpec {
	return &FilterSpec{
		Version:    FilterVersion,
		WidgetType: WidgetFilterMultiSelect,
		Encodings: FilterEncodingMap{
			Fields: []ControlFieldEncoding{{FieldName: field, DisplayName: field, QueryName: queryName}},
		},
		Frame: &Frame{ShowTitle: true, Title: field},
	}
}

// Type implements Spec.
func (s *FilterSpec) Type() string { return s.WidgetType }

func (s *FilterSpec) rewrite(v Visitor) Spec {
	out := *s
	out.Encodings.Fields = mapSlice(s.Encodings.Fields, v.VisitControlFieldEncoding)
	out.Frame = cloneFrame(s.Frame)
	return &out
}

// RawSpec keeps a spec this package has no typed variant for, so that it
// survives a decode/encode round trip unchanged.
type RawSpec map[string]any

// Type implements Spec.
func (s RawSpec) Type() string {
	t, _ := s["widgetType"].(string)
	return t
}

// rewrite visits encodings.fields entries that carry a queryName as control
// field encodings; everything else is copied as is.
func (s RawSpec) rewrite(v Visitor) Spec {
	out, _ := cloneValue(map[string]any(s)).(map[string]any)
	encodings, ok := out["encodings"].(map[string]any)
	if !ok {
		return RawSpec(out)
	}
	fields, ok := encodings["fields"].([]any)
	if !ok {
		return RawSpec(out)
	}
	for i, item := range fields {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		queryName, ok := m["queryName"].(string)
		if !ok {
			continue
		}
		fieldName, _ := m["fieldName"].(string)
		displayName, _ := m["displayName"].(string)
		enc := v.VisitControlFieldEncoding(ControlFieldEncoding{
			FieldName:   fieldName,
			DisplayName: displayName,
			QueryName:   queryName,
		})
		m["fieldName"] = enc.FieldName
		m["queryName"] = enc.QueryName
		if enc.DisplayName != "" || displayName != "" {
			m["displayName"] = enc.DisplayName
		}
		fields[i] = m
	}
	return RawSpec(out)
}

// decodeSpec picks the spec variant by widgetType. Typed variants are decoded
// strictly; anything carrying unknown keys is kept as a RawSpec.
func decodeSpec(data json.RawMessage) (Spec, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var head struct {
		WidgetType string `json:"widgetType"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, fmt.Errorf("invalid widget spec: %w", err)
	}

	var typed Spec
	switch {
	case head.WidgetType == WidgetCounter:
		typed = &CounterSpec{}
	case head.WidgetType == WidgetTable:
		typed = &TableSpec{}
	case strings.HasPrefix(head.WidgetType, filterPrefix):
		typed = &FilterSpec{}
	}
	if typed != nil {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(typed); err == nil {
			return typed, nil
		}
	}

	raw := RawSpec{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("invalid widget spec: %w", err)
	}
	return raw, nil
}

// Widget is the visual representation of a tile: a spec plus the named queries it uses,
// or a markdown text box.
type Widget struct {
	Name        string       `json:"name"`
	Queries     []NamedQuery `json:"queries,omitempty"`
	Spec        Spec         `json:"spec,omitempty"`
	TextboxSpec string       `json:"textbox_spec,omitempty"`
}

type widgetJSON struct {
	Name        string          `json:"name"`
	Queries     []NamedQuery    `json:"queries,omitempty"`
	Spec        json.RawMessage `json:"spec,omitempty"`
	TextboxSpec string          `json:"textbox_spec,omitempty"`
}

// UnmarshalJSON dispatches the spec on its widgetType.
func (w *Widget) UnmarshalJSON(data []byte) error {
	var raw widgetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	spec, err := decodeSpec(raw.Spec)
	if err != nil {
		return fmt.Errorf("widget %q: %w", raw.Name, err)
	}
	*w = Widget{
		Name:        raw.Name,
		Queries:     raw.Queries,
		Spec:        spec,
		TextboxSpec: raw.TextboxSpec,
	}
	return nil
}

// ToMap returns the widget in its generic JSON object form.
func (w Widget) ToMap() (map[string]any, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// WidgetFromMap decodes a widget from its generic JSON object form.
func WidgetFromMap(m map[string]any) (Widget, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Widget{}, err
	}
	var w Widget
	if err := json.Unmarshal(data, &w); err != nil {
		return Widget{}, err
	}
	return w, nil
}

func cloneFrame(f *Frame) *Frame {
	if f == nil {
		return nil
	}
	out := *f
	return &out
}

// cloneValue deep copies values produced by encoding/json decoding.
func cloneValue(v any) any {
	switch actual := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(actual))
		for k, item := range actual {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(actual))
		for i, item := range actual {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
