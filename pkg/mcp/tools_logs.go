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

	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

// LogFilterArgs selects structured logs. Severity is the minimum level.
type LogFilterArgs struct {
	filterArgs
	Severity string `json:"severity,omitempty"`
}

func (m *MCPServer) registerLogTools() {
	m.tools["list_structured_logs"] = MCPTool{
		Name:        "list_structured_logs",
		Description: "Lists structured log records, newest first, optionally filtered by resource, minimum severity, text and field filters",
		Handler: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var args LogFilterArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			filters, err := args.fieldFilters()
			if err != nil {
				return nil, err
			}

			q := telemetry.LogQuery{
				Resource:   args.ResourceName,
				FilterText: args.Filter,
				Filters:    filters,
				Count:      args.limit(),
			}

			if args.Severity != "" {
				severity, err := models.ParseSeverity(args.Severity)
				if err != nil {
					return nil, err
				}

				q.MinSeverity = &severity
			}

			return m.queryLogs(q)
		},
	}

	m.tools["list_trace_structured_logs"] = MCPTool{
		Name:        "list_trace_structured_logs",
		Description: "Lists structured log records correlated with a trace",
		Handler: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var args TraceArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			if err := args.validate(); err != nil {
				return nil, err
			}

			return m.queryLogs(telemetry.LogQuery{TraceID: args.TraceID, Count: maxToolLimit})
		},
	}
}

func (m *MCPServer) queryLogs(q telemetry.LogQuery) (interface{}, error) {
	page, err := m.repo.GetLogs(q)
	if err != nil {
		return nil, err
	}

	logs := make([]logSummary, 0, len(page.Items))
	for i := range page.Items {
		logs = append(logs, convertLog(&page.Items[i]))
	}

	return map[string]interface{}{
		"logs":        logs,
		"count":       len(logs),
		"total_count": page.TotalCount,
	}, nil
}
