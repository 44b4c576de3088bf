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
	"time"

	"github.com/carverauto/otelhub/pkg/telemetry"
)

// MetricDataArgs selects the points of one instrument.
type MetricDataArgs struct {
	ResourceName   string     `json:"resource_name"`
	InstrumentName string     `json:"instrument_name"`
	ScopeName      string     `json:"scope_name,omitempty"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
}

func (a *MetricDataArgs) query() (telemetry.InstrumentQuery, error) {
	if strings.TrimSpace(a.ResourceName) == "" || strings.TrimSpace(a.InstrumentName) == "" {
		return telemetry.InstrumentQuery{}, fmt.Errorf("%w: resource_name and instrument_name are required", errInvalidArguments)
	}

	q := telemetry.InstrumentQuery{
		Resource:       a.ResourceName,
		ScopeName:      a.ScopeName,
		InstrumentName: a.InstrumentName,
	}

	if a.From != nil {
		q.Start = *a.From
	}

	if a.To != nil {
		q.End = *a.To
	}

	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return telemetry.InstrumentQuery{}, fmt.Errorf("%w: to is before from", errInvalidArguments)
	}

	return q, nil
}

func (m *MCPServer) registerMetricTools() {
	m.tools["list_metrics"] = MCPTool{
		Name:        "list_metrics",
		Description: "Lists metric instruments with their kind, unit and point count, optionally for one resource",
		Handler: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var args filterArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			instruments, err := m.repo.GetInstrumentsSummary(args.ResourceName)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"instruments": instruments,
				"count":       len(instruments),
			}, nil
		},
	}

	m.tools["get_metric_data"] = MCPTool{
		Name:        "get_metric_data",
		Description: "Returns the data points of one instrument within an optional time range, with the known values of each attribute",
		Handler: func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var args MetricDataArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			q, err := args.query()
			if err != nil {
				return nil, err
			}

			data, err := m.repo.GetInstrumentData(q)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"instrument":             data.Instrument,
				"points":                 data.Points,
				"count":                  len(data.Points),
				"known_attribute_values": data.KnownAttributeValues,
			}, nil
		},
	}
}
