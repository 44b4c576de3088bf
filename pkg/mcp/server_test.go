/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
	tt "github.com/carverauto/otelhub/pkg/telemetry/telemetrytest"
)

type fakeConsole struct {
	lines []ConsoleLine
}

func (f *fakeConsole) ConsoleLogs(_ context.Context, _ string, limit int) ([]ConsoleLine, error) {
	if limit < len(f.lines) {
		return f.lines[:limit], nil
	}

	return f.lines, nil
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *telemetry.Repository) {
	t.Helper()

	repo := tt.NewRepository(t)
	server := NewMCPServer(repo, logger.NewTestLogger(), GetDefaultConfig(), opts...)

	router := mux.NewRouter()
	server.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, repo
}

type toolResponse struct {
	RequestID string                 `json:"request_id"`
	Result    map[string]interface{} `json:"result"`
	Error     *MCPError              `json:"error"`
}

func callTool(t *testing.T, srv *httptest.Server, name string, args interface{}) (int, toolResponse) {
	t.Helper()

	body := map[string]interface{}{
		"method": "tools/call",
		"params": map[string]interface{}{"name": name, "arguments": args},
	}

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	return postRaw(t, srv, raw)
}

func postRaw(t *testing.T, srv *httptest.Server, raw []byte) (int, toolResponse) {
	t.Helper()

	resp, err := http.Post(srv.URL+"/mcp/tools/call", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	var out toolResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func seed(repo *telemetry.Repository) {
	ctx := context.Background()
	api := tt.Resource("api", "")

	root := tt.Span(1, 1, 0, 0)
	child := tt.Span(1, 2, 1, 0)
	child.Status = models.SpanStatusError

	repo.AddTraces(ctx, tt.SpanBatch(api, root, child))

	logs := tt.LogBatch(api, "handled", "failed")
	logs[0].Scopes[0].Items[1].TraceID = tt.TraceID(1)
	logs[0].Scopes[0].Items[1].Severity = models.SeverityError
	repo.AddLogs(ctx, logs)

	repo.AddMetrics(ctx, tt.GaugeBatch(api, "queue.depth", 3, 4))
}

func TestToolList(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/mcp/tools/list")
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Tools []map[string]string `json:"tools"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	names := make([]string, 0, len(body.Tools))
	for _, tool := range body.Tools {
		names = append(names, tool["name"])
	}

	assert.Equal(t, []string{
		"get_metric_data",
		"get_trace",
		"list_metrics",
		"list_resources",
		"list_structured_logs",
		"list_trace_structured_logs",
		"list_traces",
	}, names)
	assert.Equal(t, 7, body.Count)
}

func TestConsoleToolNeedsSource(t *testing.T) {
	srv, _ := newTestServer(t)

	status, _ := callTool(t, srv, "list_console_logs", nil)
	assert.Equal(t, http.StatusNotFound, status)

	source := &fakeConsole{lines: []ConsoleLine{{Resource: "api", Content: "listening on :8080"}}}
	srv, repo := newTestServer(t, WithConsoleLogSource(source))
	seed(repo)

	status, out := callTool(t, srv, "list_console_logs", map[string]interface{}{"resource_name": "api"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, out.Error)
	assert.EqualValues(t, 1, out.Result["count"])

	status, out = callTool(t, srv, "list_console_logs", map[string]interface{}{"resource_name": "ghost"})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, out.Error)
	assert.Equal(t, http.StatusNotFound, out.Error.Code)
}

func TestTraceTools(t *testing.T) {
	srv, repo := newTestServer(t)
	seed(repo)

	status, out := callTool(t, srv, "list_traces", map[string]interface{}{"resource_name": "api"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, out.Error)
	assert.NotEmpty(t, out.RequestID)
	assert.EqualValues(t, 1, out.Result["count"])

	status, out = callTool(t, srv, "get_trace", map[string]interface{}{"trace_id": tt.TraceID(1)})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, out.Error)

	spans, ok := out.Result["spans"].([]interface{})
	require.True(t, ok)
	assert.Len(t, spans, 2)

	trace, ok := out.Result["trace"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, trace["has_error"])
}

func TestToolErrorsAreStructured(t *testing.T) {
	srv, repo := newTestServer(t)
	seed(repo)

	tests := []struct {
		name string
		tool string
		args interface{}
		code int
	}{
		{"unknown trace", "get_trace", map[string]interface{}{"trace_id": tt.TraceID(99)}, http.StatusNotFound},
		{"missing trace id", "get_trace", map[string]interface{}{}, http.StatusBadRequest},
		{"unknown resource", "list_structured_logs", map[string]interface{}{"resource_name": "ghost"}, http.StatusNotFound},
		{"bad severity", "list_structured_logs", map[string]interface{}{"severity": "loud"}, http.StatusBadRequest},
		{"bad field filter", "list_traces", map[string]interface{}{"field_filters": []string{"name"}}, http.StatusBadRequest},
		{"wrong argument type", "list_traces", map[string]interface{}{"count": "many"}, http.StatusBadRequest},
		{"unknown instrument", "get_metric_data", map[string]interface{}{"resource_name": "api", "instrument_name": "nope"}, http.StatusNotFound},
		{"missing instrument", "get_metric_data", map[string]interface{}{"resource_name": "api"}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, out := callTool(t, srv, tc.tool, tc.args)
			require.Equal(t, http.StatusOK, status)
			require.NotNil(t, out.Error)
			assert.Equal(t, tc.code, out.Error.Code)
		})
	}
}

func TestProtocolErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	status, out := postRaw(t, srv, []byte(`{"method":`))
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, out.Error)

	status, _ = postRaw(t, srv, []byte(`{"method":"tools/call","params":{}}`))
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postRaw(t, srv, []byte(`{"method":"resources/read","params":{"name":"list_resources"}}`))
	assert.Equal(t, http.StatusBadRequest, status)

	status, out = callTool(t, srv, "drop_tables", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, out.Error)
}

func TestLogAndMetricTools(t *testing.T) {
	srv, repo := newTestServer(t)
	seed(repo)

	status, out := callTool(t, srv, "list_structured_logs", map[string]interface{}{"severity": "error"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, out.Error)
	assert.EqualValues(t, 1, out.Result["count"])

	status, out = callTool(t, srv, "list_trace_structured_logs", map[string]interface{}{"trace_id": tt.TraceID(1)})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, out.Error)

	logs, ok := out.Result["logs"].([]interface{})
	require.True(t, ok)
	require.Len(t, logs, 1)
	assert.Equal(t, "failed", logs[0].(map[string]interface{})["message"])

	status, out = callTool(t, srv, "list_metrics", map[string]interface{}{"resource_name": "api"})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, out.Result["count"])

	status, out = callTool(t, srv, "get_metric_data", map[string]interface{}{
		"resource_name":   "api",
		"instrument_name": "queue.depth",
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, out.Error)
	assert.EqualValues(t, 2, out.Result["count"])
}

func TestDisabledServerRegistersNothing(t *testing.T) {
	repo := tt.NewRepository(t)
	server := NewMCPServer(repo, logger.NewTestLogger(), &MCPConfig{Enabled: false})

	router := mux.NewRouter()
	server.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp/tools/list", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
