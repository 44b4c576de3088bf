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

package query

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
	tt "github.com/carverauto/otelhub/pkg/telemetry/telemetrytest"
)

func newTestAPI(t *testing.T) (*httptest.Server, *telemetry.Repository) {
	t.Helper()

	repo := tt.NewRepository(t)
	tailer := NewTailer(repo, 16, time.Hour, logger.NewTestLogger())
	api := NewAPIServer(repo, tailer, models.CORSConfig{}, logger.NewTestLogger())

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return srv, repo
}

func getJSON(t *testing.T, rawURL string, out interface{}) int {
	t.Helper()

	resp, err := http.Get(rawURL)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func seed(repo *telemetry.Repository) {
	ctx := context.Background()
	api := tt.Resource("api", "")

	repo.AddTraces(ctx, tt.SpanBatch(api, tt.Span(1, 1, 0, 0), tt.Span(1, 2, 1, time.Millisecond)))
	repo.AddTraces(ctx, tt.SpanBatch(api, tt.Span(2, 3, 0, time.Second)))
	repo.AddLogs(ctx, tt.LogBatch(api, "started", "request failed"))
	repo.AddMetrics(ctx, tt.GaugeBatch(api, "queue.depth", 1, 2, 3))
	repo.AddMetrics(ctx, tt.GaugeBatch(tt.Resource("idle", ""), "up"))
}

func TestResourcesEndpoint(t *testing.T) {
	srv, repo := newTestAPI(t)
	seed(repo)

	var resources []models.Resource
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/resources", &resources))
	assert.Len(t, resources, 2)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/resources?name=api", &resources))
	require.Len(t, resources, 1)
	assert.Equal(t, "api", resources[0].Name)
}

func TestTracesEndpoints(t *testing.T) {
	srv, repo := newTestAPI(t)
	seed(repo)

	var page struct {
		Items      []models.Trace `json:"items"`
		TotalCount int            `json:"total_count"`
	}

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/traces?count=1", &page))
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, tt.TraceID(2), page.Items[0].TraceID)

	var trace models.Trace
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/traces/"+tt.TraceID(1), &trace))
	require.Len(t, trace.Spans, 2)

	var span models.Span
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/traces/"+tt.TraceID(1)+"/spans/"+tt.SpanID(2), &span))
	assert.Equal(t, 1, span.Depth)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+BasePath+"/traces/"+tt.TraceID(9), nil))

	filter := url.Values{"field_filter": {"name:equals:span-3"}}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/traces?"+filter.Encode(), &page))
	assert.Equal(t, 1, page.TotalCount)
}

func TestNotFoundVersusEmptyPage(t *testing.T) {
	srv, repo := newTestAPI(t)
	seed(repo)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+BasePath+"/logs?resource=unknown", nil))

	var page struct {
		Items      []models.LogEntry `json:"items"`
		TotalCount int               `json:"total_count"`
	}

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/logs?resource=idle", &page))
	assert.Zero(t, page.TotalCount)
	assert.Empty(t, page.Items)
}

func TestLogsEndpointFilters(t *testing.T) {
	srv, repo := newTestAPI(t)
	seed(repo)

	var page struct {
		Items      []models.LogEntry `json:"items"`
		TotalCount int               `json:"total_count"`
	}

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/logs?filter=failed", &page))
	require.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "request failed", page.Items[0].Message)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/logs?severity=Error", &page))
	assert.Zero(t, page.TotalCount)

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/logs?start=1&count=9223372036854775807", &page))
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Items, 1)
}

func TestBadParameters(t *testing.T) {
	srv, _ := newTestAPI(t)

	for _, path := range []string{
		"/traces?count=-1",
		"/traces?start=abc",
		"/traces?field_filter=name",
		"/traces?field_filter=name:sounds-like:x",
		"/logs?severity=loud",
		"/logs?follow=maybe",
		"/ws?signal=profiles",
	} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + BasePath + path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, http.StatusBadRequest, body.Status)
		})
	}
}

func TestMetricsEndpoints(t *testing.T) {
	srv, repo := newTestAPI(t)
	seed(repo)

	var instruments []models.InstrumentSummary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/metrics/api/instruments", &instruments))
	require.Len(t, instruments, 1)
	assert.Equal(t, 3, instruments[0].PointCount)

	from := tt.BaseTime.Add(time.Second).Format(time.RFC3339)

	var data models.InstrumentData
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+BasePath+"/metrics/api/instruments/queue.depth?from="+from, &data))
	assert.Len(t, data.Points, 2)
	assert.ElementsMatch(t, []string{"h0", "h1"}, data.KnownAttributeValues["host"])

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+BasePath+"/metrics/api/instruments/missing", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+BasePath+"/metrics/nobody/instruments", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+BasePath+"/metrics/api/instruments/queue.depth?from=yesterday", nil))
}

func TestClearEndpoints(t *testing.T) {
	srv, repo := newTestAPI(t)
	seed(repo)

	for _, path := range []string{"/traces?resource=api", "/logs", "/metrics"} {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodDelete, srv.URL+BasePath+path, http.NoBody)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	stats := repo.Stats()
	assert.Zero(t, stats.Traces)
	assert.Zero(t, stats.Logs)
	assert.Zero(t, stats.Instruments)
	assert.Equal(t, 2, stats.Resources)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodDelete, srv.URL+BasePath+"/logs?resource=ghost", http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFollowStreamsNDJSON(t *testing.T) {
	srv, repo := newTestAPI(t)
	seed(repo)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+BasePath+"/logs?follow=true&resource=api", http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeNDJSON, resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	require.True(t, scanner.Scan())

	var snapshot Frame
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &snapshot))
	assert.Equal(t, FrameSnapshot, snapshot.Type)
	assert.Equal(t, 2, snapshot.TotalCount)

	repo.AddLogs(context.Background(), tt.LogBatch(tt.Resource("api", ""), "streamed"))

	require.True(t, scanner.Scan())

	var add Frame
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &add))
	assert.Equal(t, FrameAdd, add.Type)
	require.Len(t, add.Logs, 1)
	assert.Equal(t, "streamed", add.Logs[0].Message)
}

func TestFollowUnknownResourceIsNotFound(t *testing.T) {
	srv, _ := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+BasePath+"/traces?follow=true&resource=ghost", nil))
}

func TestWebSocketTail(t *testing.T) {
	srv, repo := newTestAPI(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + BasePath + "/ws?signal=traces"

	conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), wsURL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()

	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(frameTimeout)))

	var snapshot Frame
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, FrameSnapshot, snapshot.Type)
	assert.Empty(t, snapshot.Traces)

	repo.AddTraces(context.Background(), tt.SpanBatch(tt.Resource("api", ""), tt.Span(7, 1, 0, 0)))

	var add Frame
	require.NoError(t, conn.ReadJSON(&add))
	assert.Equal(t, FrameAdd, add.Type)
	require.Len(t, add.Traces, 1)
	assert.Equal(t, tt.TraceID(7), add.Traces[0].TraceID)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	require.Eventually(t, func() bool {
		return repo.Stats().Subscriptions == 0
	}, frameTimeout, 10*time.Millisecond)
}

func TestWebSocketOriginCheck(t *testing.T) {
	repo := tt.NewRepository(t)
	tailer := NewTailer(repo, 16, time.Hour, logger.NewTestLogger())
	api := NewAPIServer(repo, tailer, models.CORSConfig{AllowedOrigins: []string{"https://ui.example"}}, logger.NewTestLogger())

	req := httptest.NewRequest(http.MethodGet, "http://hub.local/api/telemetry/ws", http.NoBody)
	assert.True(t, api.checkWebSocketOrigin(req))

	req.Header.Set("Origin", "https://ui.example")
	assert.True(t, api.checkWebSocketOrigin(req))

	req.Header.Set("Origin", "http://hub.local")
	assert.True(t, api.checkWebSocketOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, api.checkWebSocketOrigin(req))
}
