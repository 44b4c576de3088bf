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
)

func (m *MCPServer) registerResourceTools() {
	m.tools["list_resources"] = MCPTool{
		Name:        "list_resources",
		Description: "Lists every resource that has sent telemetry, including uninstrumented peers inferred from outgoing spans",
		Handler: func(_ context.Context, _ json.RawMessage) (interface{}, error) {
			resources := m.repo.GetResources()

			out := make([]resourceSummary, 0, len(resources))
			for i := range resources {
				out = append(out, convertResource(&resources[i]))
			}

			return map[string]interface{}{
				"resources": out,
				"count":     len(out),
			}, nil
		},
	}
}

// filterArgs are shared by the list tools.
type filterArgs struct {
	ResourceName string   `json:"resource_name,omitempty"`
	Filter       string   `json:"filter,omitempty"`
	FieldFilters []string `json:"field_filters,omitempty"`
	Count        int      `json:"count,omitempty"`
}

const (
	defaultToolLimit = 100
	maxToolLimit     = 1000
)

func (a *filterArgs) limit() int {
	switch {
	case a.Count <= 0:
		return defaultToolLimit
	case a.Count > maxToolLimit:
		return maxToolLimit
	default:
		return a.Count
	}
}

func (a *filterArgs) fieldFilters() ([]models.FieldFilter, error) {
	filters := make([]models.FieldFilter, 0, len(a.FieldFilters))

	for _, raw := range a.FieldFilters {
		f, err := models.ParseFieldFilter(raw)
		if err != nil {
			return nil, err
		}

		filters = append(filters, f)
	}

	return filters, nil
}
