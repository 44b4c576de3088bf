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
	"time"
)

// ConsoleLine is one line of a resource's standard output or error stream.
type ConsoleLine struct {
	Resource  string    `json:"resource"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error"`
}

// ConsoleLogSource supplies console output captured outside OTLP. Without one
// the list_console_logs tool is not registered.
type ConsoleLogSource interface {
	ConsoleLogs(ctx context.Context, resource string, limit int) ([]ConsoleLine, error)
}

func (m *MCPServer) registerConsoleTools() {
	m.tools["list_console_logs"] = MCPTool{
		Name:        "list_console_logs",
		Description: "Lists console output lines captured for a resource",
		Handler: func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var args filterArgs
			if err := decodeArgs(raw, &args); err != nil {
				return nil, err
			}

			if args.ResourceName != "" {
				if _, err := m.repo.ResolveResources(args.ResourceName); err != nil {
					return nil, err
				}
			}

			lines, err := m.console.ConsoleLogs(ctx, args.ResourceName, args.limit())
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"console_logs": lines,
				"count":        len(lines),
			}, nil
		},
	}
}
