package workspace

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTimeout bounds a single API call when no HTTP client is supplied.
const DefaultTimeout = 60 * time.Second

// Client calls the dashboards API of a remote workspace.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient sets the client used for requests. A bearer token, when
// given, is added on top of its transport.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) { cfg.logger = logger }
}

// NewClient returns a client for the workspace at host. Hosts without a
// scheme are reached over https. An empty token sends no authorization.
func NewClient(host, token string, opts ...ClientOption) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("workspace host is required")
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	base, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid workspace host %q: %w", host, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("invalid workspace host %q", host)
	}

	cfg := clientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
		authed.Timeout = httpClient.Timeout
		httpClient = authed
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{base: base, http: httpClient, logger: logger}, nil
}

// Host returns the workspace URL the client talks to.
func (c *Client) Host() string {
	return c.base.String()
}

// CreateDashboard creates a dashboard and returns it as stored.
func (c *Client) CreateDashboard(ctx context.Context, d Dashboard) (Dashboard, error) {
	var out Dashboard
	if err := c.do(ctx, http.MethodPost, dashboardsPath, nil, d, &out); err != nil {
		return Dashboard{}, fmt.Errorf("failed to create dashboard %q: %w", d.DisplayName, err)
	}
	return out, nil
}

// UpdateDashboard replaces the content of the dashboard d.DashboardID.
func (c *Client) UpdateDashboard(ctx context.Context, d Dashboard) (Dashboard, error) {
	if d.DashboardID == "" {
		return Dashboard{}, fmt.Errorf("dashboard id is required for update")
	}
	var out Dashboard
	body := d
	body.DashboardID = ""
	if err := c.do(ctx, http.MethodPatch, dashboardsPath+"/"+url.PathEscape(d.DashboardID), nil, body, &out); err != nil {
		return Dashboard{}, fmt.Errorf("failed to update dashboard %s: %w", d.DashboardID, err)
	}
	return out, nil
}

// GetDashboard returns a dashboard by id.
func (c *Client) GetDashboard(ctx context.Context, id string) (Dashboard, error) {
	var out Dashboard
	if err := c.do(ctx, http.MethodGet, dashboardsPath+"/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return Dashboard{}, fmt.Errorf("failed to get dashboard %s: %w", id, err)
	}
	return out, nil
}

// TrashDashboard moves a dashboard to the trash.
func (c *Client) TrashDashboard(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, dashboardsPath+"/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to trash dashboard %s: %w", id, err)
	}
	return nil
}

// ListDashboards returns the active dashboards.
func (c *Client) ListDashboards(ctx context.Context) ([]Dashboard, error) {
	var out listResponse
	if err := c.do(ctx, http.MethodGet, dashboardsPath, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	return out.Dashboards, nil
}

// Export returns the source of the workspace object at path, which for a
// dashboard is its serialized JSON.
func (c *Client) Export(ctx context.Context, path string) ([]byte, error) {
	query := url.Values{"path": {path}, "format": {"SOURCE"}}
	var out exportResponse
	if err := c.do(ctx, http.MethodGet, exportPath, query, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", path, err)
	}
	content, err := base64.StdEncoding.DecodeString(out.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode export of %s: %w", path, err)
	}
	return content, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("workspace request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return responseError(resp.StatusCode, data, path, query)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// responseError turns a failed response into *NotFoundError or *APIError.
func responseError(status int, data []byte, path string, query url.Values) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		body.Message = strings.TrimSpace(string(data))
	}
	if status == http.StatusNotFound || body.ErrorCode == CodeNotFound {
		resource := path
		if p := query.Get("path"); p != "" {
			resource = p
		}
		return &NotFoundError{Resource: resource, Message: body.Message}
	}
	return &APIError{StatusCode: status, ErrorCode: body.ErrorCode, Message: body.Message}
}
