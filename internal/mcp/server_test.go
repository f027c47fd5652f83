package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missioncontrol/internal/errors"
	"missioncontrol/internal/store"
)

type fakeService struct {
	tested []string
	limit  int
}

func (f *fakeService) RunTest(_ context.Context, id string) (store.Integration, error) {
	switch id {
	case "slack":
		f.tested = append(f.tested, id)
		return store.Integration{ID: id, Status: store.StatusConnected}, nil
	case "broken":
		return store.Integration{}, errors.Wrap(errors.ErrTestFailed, "integration broken")
	default:
		return store.Integration{}, errors.ErrIntegrationNotFound
	}
}

func (f *fakeService) List(context.Context) ([]store.Integration, error) {
	return []store.Integration{{ID: "slack", Name: "Slack"}}, nil
}

func (f *fakeService) Get(_ context.Context, id string) (store.Integration, error) {
	if id != "slack" {
		return store.Integration{}, errors.ErrIntegrationNotFound
	}
	return store.Integration{ID: id, Name: "Slack"}, nil
}

func (f *fakeService) History(_ context.Context, _ string, limit int) ([]store.HealthCheck, error) {
	f.limit = limit
	return []store.HealthCheck{{Status: store.CheckPass}}, nil
}

func newClient(t *testing.T, svc IntegrationService) *Client {
	t.Helper()
	ts := httptest.NewServer(NewServer(ServerOptions{Service: svc}))
	t.Cleanup(ts.Close)
	return NewClient(ts.URL)
}

func TestToolsList(t *testing.T) {
	t.Parallel()

	tools, err := newClient(t, &fakeService{}).ToolsList(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.True(t, json.Valid(tool.InputSchema), tool.Name)
	}
	assert.Equal(t, []string{
		ToolIntegrationsList, ToolIntegrationsGet, ToolIntegrationsTest,
		ToolIntegrationsHistory, ToolProvidersList,
	}, names)
}

func TestCallTool_Test(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	raw, err := newClient(t, svc).CallTool(context.Background(), ToolIntegrationsTest, map[string]string{"id": "slack"})
	require.NoError(t, err)

	var got store.Integration
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, store.StatusConnected, got.Status)
	assert.Equal(t, []string{"slack"}, svc.tested)
}

func TestCallTool_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tool string
		args any
		code int
		msg  string
	}{
		{name: "not found", tool: ToolIntegrationsTest, args: map[string]string{"id": "nope"}, code: codeNotFound, msg: "integration not found"},
		{name: "aborted", tool: ToolIntegrationsTest, args: map[string]string{"id": "broken"}, code: codeToolFailed, msg: "Test failed"},
		{name: "missing id", tool: ToolIntegrationsGet, args: nil, code: codeInvalidInput, msg: "missing id"},
		{name: "unknown tool", tool: "integrations.delete", args: nil, code: codeInvalidInput, msg: "unknown tool"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newClient(t, &fakeService{}).CallTool(context.Background(), tc.tool, tc.args)
			var rpcErr *RPCError
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, tc.code, rpcErr.Code)
			assert.Contains(t, rpcErr.Message, tc.msg)
		})
	}
}

func TestCallTool_HistoryLimitDefaults(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	c := newClient(t, svc)

	_, err := c.CallTool(context.Background(), ToolIntegrationsHistory, map[string]any{"id": "slack"})
	require.NoError(t, err)
	assert.Equal(t, 20, svc.limit)

	_, err = c.CallTool(context.Background(), ToolIntegrationsHistory, map[string]any{"id": "slack", "limit": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, svc.limit)
}

func TestCallTool_Providers(t *testing.T) {
	t.Parallel()

	raw, err := newClient(t, &fakeService{}).CallTool(context.Background(), ToolProvidersList, nil)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"anthropic"`)
}

func TestServeHTTP_Protocol(t *testing.T) {
	t.Parallel()

	srv := NewServer(ServerOptions{Service: &fakeService{}, Version: "1.2.3"})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{not json`)))
	assert.Contains(t, rec.Body.String(), `"code":-32700`)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)))
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"resources/list"}`)))
	assert.Contains(t, rec.Body.String(), `"code":-32601`)
}
