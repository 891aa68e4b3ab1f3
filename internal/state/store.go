// Package state records which dashboard each folder was deployed to, so that
// later deploys update the same dashboard and can skip unchanged content.
package state

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no deployment is recorded for a folder.
var ErrNotFound = errors.New("deployment not found")

// Action is what a deploy did on the workspace.
type Action string

// Deploy actions.
const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// Deployment is the last successful deploy of a folder to a workspace host.
type Deployment struct {
	Host   string
	Folder string

	DashboardID string
	DisplayName string
	// Path is the workspace path of the dashboard
	Path string
	// Fingerprint identifies the deployed content, see dashboards.Fingerprint
	Fingerprint string
	Etag        string
	DeployedAt  time.Time
}

// Event is one entry of the deploy history.
type Event struct {
	ID          string
	Host        string
	Folder      string
	DashboardID string
	Fingerprint string
	Action      Action
	DeployedAt  time.Time
}
