// Package workspace talks to the Lakeview dashboards API of a workspace.
//
// Client is the HTTP implementation. Memory keeps dashboards in process and
// assigns identifiers the way the service does; NewServer exposes a Memory
// over the same HTTP API for tests and local development.
package workspace

// Lifecycle states of a dashboard.
const (
	StateActive  = "ACTIVE"
	StateTrashed = "TRASHED"
)

// Dashboard is the API representation of a deployed dashboard.
// SerializedDashboard holds the Lakeview JSON document.
type Dashboard struct {
	DashboardID         string `json:"dashboard_id,omitempty"`
	DisplayName         string `json:"display_name,omitempty"`
	Path                string `json:"path,omitempty"`
	ParentPath          string `json:"parent_path,omitempty"`
	SerializedDashboard string `json:"serialized_dashboard,omitempty"`
	WarehouseID         string `json:"warehouse_id,omitempty"`
	Etag                string `json:"etag,omitempty"`
	LifecycleState      string `json:"lifecycle_state,omitempty"`
	CreateTime          string `json:"create_time,omitempty"`
	UpdateTime          string `json:"update_time,omitempty"`
}

// listResponse is the body of the list endpoint.
type listResponse struct {
	Dashboards []Dashboard `json:"dashboards"`
}

// exportResponse is the body of the workspace export endpoint.
type exportResponse struct {
	// Content is base64 encoded
	Content  string `json:"content"`
	FileType string `json:"file_type,omitempty"`
}

// API paths.
const (
	dashboardsPath = "/api/2.0/lakeview/dashboards"
	exportPath     = "/api/2.0/workspace/export"
)

// dashboardFileSuffix is appended to the display name to form the workspace path.
const dashboardFileSuffix = ".lvdash.json"
