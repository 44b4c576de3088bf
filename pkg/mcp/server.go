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

// Package mcp exposes telemetry queries as named tools for non-interactive callers.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

const (
	statusBadRequest          = http.StatusBadRequest
	statusNotFound            = http.StatusNotFound
	statusInternalServerError = http.StatusInternalServerError

	methodToolsCall = "tools/call"
)

var (
	errInvalidArguments = errors.New("invalid tool arguments")
	errTraceNotFound    = errors.New("trace not found")
)

// MCPServer serves the tool surface.
type MCPServer struct {
	repo    *telemetry.Repository
	console ConsoleLogSource
	logger  logger.Logger
	config  *MCPConfig
	tools   map[string]MCPTool
}

// MCPConfig holds configuration for the MCP server
type MCPConfig struct {
	Enabled bool `json:"enabled"`
}

// MCPTool represents an MCP tool that can be called
type MCPTool struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, args json.RawMessage) (interface{}, error)
}

// MCPRequest represents an MCP tool call request
type MCPRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"params"`
}

// MCPResponse represents an MCP tool call response
type MCPResponse struct {
	RequestID string      `json:"request_id,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Option configures optional collaborators.
type Option func(*MCPServer)

// WithConsoleLogSource enables list_console_logs.
func WithConsoleLogSource(src ConsoleLogSource) Option {
	return func(m *MCPServer) {
		m.console = src
	}
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(repo *telemetry.Repository, log logger.Logger, config *MCPConfig, opts ...Option) *MCPServer {
	m := &MCPServer{
		repo:   repo,
		logger: log,
		config: config,
		tools:  make(map[string]MCPTool),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.registerResourceTools()
	m.registerTraceTools()
	m.registerLogTools()
	m.registerMetricTools()

	if m.console != nil {
		m.registerConsoleTools()
	}

	return m
}

// GetDefaultConfig returns the default MCP configuration
func GetDefaultConfig() *MCPConfig {
	return &MCPConfig{Enabled: true}
}

// RegisterRoutes adds MCP endpoints to the provided router
func (m *MCPServer) RegisterRoutes(router *mux.Router) {
	if !m.config.Enabled {
		m.logger.Info().Msg("MCP server disabled - skipping route registration")
		return
	}

	m.logger.Info().Int("tools", len(m.tools)).Msg("Registering MCP routes")

	mcpRouter := router.PathPrefix("/mcp").Subrouter()
	mcpRouter.HandleFunc("/tools/call", m.handleToolCall).Methods(http.MethodPost)
	mcpRouter.HandleFunc("/tools/list", m.handleToolList).Methods(http.MethodGet)
}

// handleToolCall handles MCP tool execution requests. Tool failures are part
// of a successful response; only envelope problems change the HTTP status.
func (m *MCPServer) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var req MCPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, statusBadRequest, "Invalid request body")
		return
	}

	if req.Method != "" && req.Method != methodToolsCall {
		m.writeError(w, statusBadRequest, fmt.Sprintf("Unsupported method: %s", req.Method))
		return
	}

	if req.Params.Name == "" {
		m.writeError(w, statusBadRequest, "Tool name is required")
		return
	}

	tool, exists := m.tools[req.Params.Name]
	if !exists {
		m.writeError(w, statusNotFound, fmt.Sprintf("Tool not found: %s", req.Params.Name))
		return
	}

	requestID := uuid.NewString()

	args := req.Params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	response := MCPResponse{RequestID: requestID}

	result, err := tool.Handler(r.Context(), args)
	if err != nil {
		code := toolErrorCode(err)
		if code == statusInternalServerError {
			m.logger.Error().Err(err).Str("tool", tool.Name).Str("request_id", requestID).Msg("Tool call failed")
		}

		response.Error = &MCPError{Code: code, Message: err.Error()}
	} else {
		response.Result = result
	}

	m.logger.Debug().
		Str("tool", tool.Name).
		Str("request_id", requestID).
		Bool("failed", err != nil).
		Msg("Handled MCP tool call")

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode tool call response")
	}
}

// handleToolList returns the list of available MCP tools
func (m *MCPServer) handleToolList(w http.ResponseWriter, _ *http.Request) {
	tools := make([]map[string]string, 0, len(m.tools))

	for name, tool := range m.tools {
		tools = append(tools, map[string]string{
			"name":        name,
			"description": tool.Description,
		})
	}

	sort.Slice(tools, func(i, j int) bool { return tools[i]["name"] < tools[j]["name"] })

	response := map[string]interface{}{
		"tools": tools,
		"count": len(tools),
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode tool list response")
	}
}

// writeError writes an error response
func (m *MCPServer) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(code)

	response := MCPResponse{
		Error: &MCPError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}

func toolErrorCode(err error) int {
	switch {
	case errors.Is(err, telemetry.ErrResourceNotFound),
		errors.Is(err, telemetry.ErrInstrumentNotFound),
		errors.Is(err, errTraceNotFound):
		return statusNotFound
	case errors.Is(err, errInvalidArguments),
		errors.Is(err, models.ErrInvalidFilter),
		errors.Is(err, models.ErrInvalidSeverity):
		return statusBadRequest
	default:
		return statusInternalServerError
	}
}

// decodeArgs unmarshals tool arguments, reporting failures as validation errors.
func decodeArgs(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidArguments, err)
	}

	return nil
}
