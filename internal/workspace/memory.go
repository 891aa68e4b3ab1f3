package workspace

import (
	"context"
	"net/http"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapdash/pkg/lakeview"
)

// DefaultUser owns dashboards created without a parent path.
const DefaultUser = "leapdash@example.com"

// Memory is an in-process workspace. Like the remote service it assigns
// dashboard ids and replaces dataset, page and named query identifiers with
// generated ones, so round trips through it exercise normalization.
type Memory struct {
	mu         sync.Mutex
	user       string
	now        func() time.Time
	dashboards map[string]*Dashboard
	// paths maps workspace paths of active dashboards to their id
	paths map[string]string
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithUser sets the user whose home folder receives new dashboards.
func WithUser(user string) MemoryOption {
	return func(m *Memory) { m.user = user }
}

// WithClock sets the time source used for create and update times.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty in-memory workspace.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		user:       DefaultUser,
		now:        time.Now,
		dashboards: make(map[string]*Dashboard),
		paths:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateDashboard stores a new dashboard at <parent>/<display name>.lvdash.json.
func (m *Memory) CreateDashboard(_ context.Context, req Dashboard) (Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(req.DisplayName) == "" {
		return Dashboard{}, invalidArgument("display_name is required")
	}
	id := hexID()
	serialized, err := assignIDs(id, req.SerializedDashboard)
	if err != nil {
		return Dashboard{}, err
	}

	parent := req.ParentPath
	if parent == "" {
		parent = "/Users/" + m.user
	}
	p := dashboardPath(parent, req.DisplayName)
	if err := m.checkPathFree(p, ""); err != nil {
		return Dashboard{}, err
	}

	ts := m.timestamp()
	d := &Dashboard{
		DashboardID:         id,
		DisplayName:         req.DisplayName,
		Path:                p,
		ParentPath:          parent,
		SerializedDashboard: serialized,
		WarehouseID:         req.WarehouseID,
		Etag:                "1",
		LifecycleState:      StateActive,
		CreateTime:          ts,
		UpdateTime:          ts,
	}
	m.dashboards[id] = d
	m.paths[p] = id
	return *d, nil
}

// UpdateDashboard replaces the content and optionally the display name of an
// active dashboard. Renaming moves the dashboard within its parent folder.
func (m *Memory) UpdateDashboard(_ context.Context, req Dashboard) (Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dashboards[req.DashboardID]
	if !ok || d.LifecycleState != StateActive {
		return Dashboard{}, &NotFoundError{Resource: "dashboard " + req.DashboardID}
	}
	if req.Etag != "" && req.Etag != d.Etag {
		return Dashboard{}, invalidArgument("etag %s does not match current version %s", req.Etag, d.Etag)
	}

	if req.SerializedDashboard != "" {
		serialized, err := assignIDs(d.DashboardID, req.SerializedDashboard)
		if err != nil {
			return Dashboard{}, err
		}
		d.SerializedDashboard = serialized
	}
	if req.DisplayName != "" && req.DisplayName != d.DisplayName {
		p := dashboardPath(d.ParentPath, req.DisplayName)
		if err := m.checkPathFree(p, d.DashboardID); err != nil {
			return Dashboard{}, err
		}
		delete(m.paths, d.Path)
		m.paths[p] = d.DashboardID
		d.Path = p
		d.DisplayName = req.DisplayName
	}
	if req.WarehouseID != "" {
		d.WarehouseID = req.WarehouseID
	}

	etag, _ := strconv.Atoi(d.Etag)
	d.Etag = strconv.Itoa(etag + 1)
	d.UpdateTime = m.timestamp()
	return *d, nil
}

// GetDashboard returns a dashboard by id, trashed ones included.
func (m *Memory) GetDashboard(_ context.Context, id string) (Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dashboards[id]
	if !ok {
		return Dashboard{}, &NotFoundError{Resource: "dashboard " + id}
	}
	return *d, nil
}

// TrashDashboard moves a dashboard to the trash and frees its path.
func (m *Memory) TrashDashboard(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dashboards[id]
	if !ok || d.LifecycleState != StateActive {
		return &NotFoundError{Resource: "dashboard " + id}
	}
	d.LifecycleState = StateTrashed
	d.UpdateTime = m.timestamp()
	delete(m.paths, d.Path)
	return nil
}

// ListDashboards returns the active dashboards ordered by path.
func (m *Memory) ListDashboards(_ context.Context) ([]Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Dashboard, 0, len(m.paths))
	for _, id := range m.paths {
		out = append(out, *m.dashboards[id])
	}
	slices.SortFunc(out, func(a, b Dashboard) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// Export returns the serialized dashboard stored at a workspace path.
func (m *Memory) Export(_ context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.paths[p]
	if !ok {
		return nil, &NotFoundError{Resource: p}
	}
	return []byte(m.dashboards[id].SerializedDashboard), nil
}

func (m *Memory) checkPathFree(p, self string) error {
	if id, taken := m.paths[p]; taken && id != self {
		return &APIError{
			StatusCode: http.StatusConflict,
			ErrorCode:  CodeAlreadyExists,
			Message:    "Path (" + p + ") already exists.",
		}
	}
	return nil
}

func (m *Memory) timestamp() string {
	return m.now().UTC().Format(time.RFC3339)
}

func dashboardPath(parent, displayName string) string {
	return path.Join(parent, displayName+dashboardFileSuffix)
}

// hexID returns a random 32 character hex identifier.
func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var (
	shortID             = regexp.MustCompile(`^[0-9a-f]{8}$`)
	generatedQueryNames = regexp.MustCompile(`^dashboards/[^/]+/datasets/`)
)

// assignIDs replaces user chosen dataset, page and named query names in a
// serialized dashboard with generated ones. Names that already look generated
// are kept, so updating with a fetched dashboard is stable.
func assignIDs(dashboardID, serialized string) (string, error) {
	if serialized == "" {
		return "", nil
	}
	d, err := lakeview.Parse([]byte(serialized))
	if err != nil {
		return "", invalidArgument("serialized_dashboard is not a valid dashboard: %v", err)
	}

	ids := &idCollector{dashboardID: dashboardID, names: map[string]string{}, datasets: map[string]string{}}
	lakeview.Rewrite(d, ids)
	d = lakeview.Rewrite(d, &idRenamer{names: ids.names})

	out, err := lakeview.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// idCollector assigns a generated name to every dataset, page and named query.
type idCollector struct {
	lakeview.BaseVisitor
	dashboardID string
	names       map[string]string
	// datasets maps a dataset name to its long id
	datasets map[string]string
}

func (c *idCollector) datasetID(name string) string {
	if id, ok := c.datasets[name]; ok {
		return id
	}
	id := hexID()
	c.datasets[name] = id
	return id
}

func (c *idCollector) VisitDataset(ds lakeview.Dataset) lakeview.Dataset {
	if !shortID.MatchString(ds.Name) {
		c.names[ds.Name] = c.datasetID(ds.Name)[:8]
	}
	return ds
}

func (c *idCollector) VisitPage(p lakeview.Page) lakeview.Page {
	if !shortID.MatchString(p.Name) {
		c.names[p.Name] = hexID()[:8]
	}
	return p
}

func (c *idCollector) VisitNamedQuery(nq lakeview.NamedQuery) lakeview.NamedQuery {
	if !generatedQueryNames.MatchString(nq.Name) {
		c.names[nq.Name] = "dashboards/" + c.dashboardID + "/datasets/" + c.datasetID(nq.Query.DatasetName) + "_" + nq.Name
	}
	return nq
}

// idRenamer applies the names chosen by idCollector. Display names default
// to the replaced name.
type idRenamer struct {
	names map[string]string
}

func (r *idRenamer) rename(name string) string {
	if n, ok := r.names[name]; ok {
		return n
	}
	return name
}

func (r *idRenamer) VisitDataset(ds lakeview.Dataset) lakeview.Dataset {
	if ds.DisplayName == "" {
		ds.DisplayName = ds.Name
	}
	ds.Name = r.rename(ds.Name)
	return ds
}

func (r *idRenamer) VisitPage(p lakeview.Page) lakeview.Page {
	if p.DisplayName == "" {
		p.DisplayName = p.Name
	}
	p.Name = r.rename(p.Name)
	return p
}

func (r *idRenamer) VisitQuery(q lakeview.Query) lakeview.Query {
	q.DatasetName = r.rename(q.DatasetName)
	return q
}

func (r *idRenamer) VisitNamedQuery(nq lakeview.NamedQuery) lakeview.NamedQuery {
	nq.Name = r.rename(nq.Name)
	return nq
}

func (r *idRenamer) VisitControlFieldEncoding(c lakeview.ControlFieldEncoding) lakeview.ControlFieldEncoding {
	c.QueryName = r.rename(c.QueryName)
	return c
}

func (r *idRenamer) VisitWidget(w lakeview.Widget) lakeview.Widget {
	return w
}
