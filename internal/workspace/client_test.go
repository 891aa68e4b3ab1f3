package workspace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdash/internal/testutil"
)

func newTestClient(t *testing.T, token string, opts ...ServerOption) (*Client, *Memory) {
	t.Helper()
	mem := NewMemory()
	srv := httptest.NewServer(NewServer(mem, append(opts, WithServerLogger(testutil.NewTestLogger(t)))...))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, token, WithHTTPClient(srv.Client()), WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	return client, mem
}

func TestClient_CreateExportUpdate(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestClient(t, "secret", WithToken("secret"))

	created, err := client.CreateDashboard(ctx, Dashboard{DisplayName: "Sales", SerializedDashboard: sampleDashboard(t)})
	require.NoError(t, err)
	assert.NotEmpty(t, created.DashboardID)

	stored, err := mem.GetDashboard(ctx, created.DashboardID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	exported, err := client.Export(ctx, created.Path)
	require.NoError(t, err)
	assert.JSONEq(t, created.SerializedDashboard, string(exported))

	updated, err := client.UpdateDashboard(ctx, Dashboard{
		DashboardID:         created.DashboardID,
		SerializedDashboard: sampleDashboard(t),
	})
	require.NoError(t, err)
	assert.Equal(t, created.DashboardID, updated.DashboardID)
	assert.Equal(t, "2", updated.Etag)

	got, err := client.GetDashboard(ctx, created.DashboardID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	list, err := client.ListDashboards(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.Path, list[0].Path)

	require.NoError(t, client.TrashDashboard(ctx, created.DashboardID))
	_, err = client.Export(ctx, created.Path)
	assert.True(t, IsNotFound(err))
}

func TestClient_NotFound(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "")

	_, err := client.Export(ctx, "/Users/nobody/missing.lvdash.json")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "/Users/nobody/missing.lvdash.json", nf.Resource)

	_, err = client.GetDashboard(ctx, "0123")
	assert.True(t, IsNotFound(err))

	_, err = client.UpdateDashboard(ctx, Dashboard{DashboardID: "0123", DisplayName: "x"})
	assert.True(t, IsNotFound(err))
}

func TestClient_Conflict(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "")

	_, err := client.CreateDashboard(ctx, Dashboard{DisplayName: "Sales", SerializedDashboard: sampleDashboard(t)})
	require.NoError(t, err)
	_, err = client.CreateDashboard(ctx, Dashboard{DisplayName: "Sales", SerializedDashboard: sampleDashboard(t)})

	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, http.StatusConflict, api.StatusCode)
	assert.Equal(t, CodeAlreadyExists, api.ErrorCode)
}

func TestClient_Unauthenticated(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "no token", token: ""},
		{name: "wrong token", token: "guess"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.token, WithToken("secret"))

			_, err := client.ListDashboards(context.Background())
			var api *APIError
			require.ErrorAs(t, err, &api)
			assert.Equal(t, http.StatusUnauthorized, api.StatusCode)
			assert.Equal(t, CodeUnauthenticated, api.ErrorCode)
		})
	}
}

func TestNewClient_Host(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "bare host gets https", host: "adb-123.azuredatabricks.net", want: "https://adb-123.azuredatabricks.net"},
		{name: "trailing slash", host: "http://localhost:8080/", want: "http://localhost:8080"},
		{name: "empty", host: "  ", wantErr: true},
		{name: "no host", host: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.host, "")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Host())
		})
	}
}

func TestServer_UnknownEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewMemory()))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/2.0/clusters/list")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RejectsUnknownFields(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "")

	err := client.do(ctx, http.MethodPost, dashboardsPath, nil, map[string]any{"display_name": "x", "colour": "red"}, nil)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, http.StatusBadRequest, api.StatusCode)
}
