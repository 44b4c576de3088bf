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
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carverauto/otelhub/pkg/telemetry"
)

// TraceArgs selects a single trace.
type TraceArgs struct {
	TraceID string `json:"trace_id"`
}

func (a *TraceArgs) validate() error {
	a.TraceID = strings.TrimSpace(a.TraceID)
	if a.TraceID == "" {
		return fmt.Errorf("%w: trace_id is required", errInvalidArguments)
	}

	return nil
}

func (m *MCPServer) registerTraceTools() {
	m.tools["list_traces"] = MCPTool{
		Name:        "list_traces",
		Description: "Lists recent distributed traces, newest first, optionally filtered by resource, text and field filters",
		Handler: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var args filterArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			filters, err := args.fieldFilters()
			if err != nil {
				return nil, err
			}

			page, err := m.repo.GetTraces(telemetry.TraceQuery{
				Resource:   args.ResourceName,
				FilterText: args.Filter,
				Filters:    filters,
				Count:      args.limit(),
			})
			if err != nil {
				return nil, err
			}

			traces := make([]traceSummary, 0, len(page.Items))
			for i := range page.Items {
				traces = append(traces, convertTrace(&page.Items[i]))
			}

			return map[string]interface{}{
				"traces":      traces,
				"count":       len(traces),
				"total_count": page.TotalCount,
			}, nil
		},
	}

	m.tools["get_trace"] = MCPTool{
		Name:        "get_trace",
		Description: "Returns one trace with every span, its depth in the span tree and its attributes",
		Handler: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var args TraceArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			if err := args.validate(); err != nil {
				return nil, err
			}

			trace, ok := m.repo.GetTrace(args.TraceID)
			if !ok {
				return nil, fmt.Errorf("%w: %s", errTraceNotFound, args.TraceID)
			}

			spans := make([]spanSummary, 0, len(trace.Spans))
			for i := range trace.Spans {
				spans = append(spans, convertSpan(&trace.Spans[i]))
			}

			return map[string]interface{}{
				"trace": convertTrace(&trace),
				"spans": spans,
			}, nil
		},
	}
}
