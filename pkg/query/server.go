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

// Package query serves paged reads and live tails of the telemetry repository
// over HTTP JSON, NDJSON, WebSocket and gRPC.
package query

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	httpx "github.com/carverauto/otelhub/pkg/http"
	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

// BasePath prefixes every telemetry API route.
const BasePath = "/api/telemetry"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// APIServer exposes the repository over HTTP.
type APIServer struct {
	repo       *telemetry.Repository
	tailer     *Tailer
	router     *mux.Router
	corsConfig models.CORSConfig
	upgrader   websocket.Upgrader
	logger     logger.Logger
}

// NewAPIServer creates the server and registers its routes on a new router.
func NewAPIServer(
	repo *telemetry.Repository, tailer *Tailer, corsConfig models.CORSConfig, log logger.Logger,
) *APIServer {
	s := &APIServer{
		repo:       repo,
		tailer:     tailer,
		router:     mux.NewRouter(),
		corsConfig: corsConfig,
		logger:     log,
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWebSocketOrigin,
	}

	s.setupRoutes()

	return s
}

// Router returns the router so other surfaces can share the listener.
func (s *APIServer) Router() *mux.Router {
	return s.router
}

// Handler wraps the router with CORS and request logging. Preflight requests
// are answered before routing.
func (s *APIServer) Handler() http.Handler {
	return httpx.CommonMiddleware(s.router, s.corsConfig, s.logger)
}

func (s *APIServer) setupRoutes() {
	api := s.router.PathPrefix(BasePath).Subrouter()

	api.HandleFunc("/resources", s.getResources).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)

	api.HandleFunc("/traces", s.getTraces).Methods(http.MethodGet)
	api.HandleFunc("/traces", s.clearTraces).Methods(http.MethodDelete)
	api.HandleFunc("/traces/attribute-keys", s.getTraceAttributeKeys).Methods(http.MethodGet)
	api.HandleFunc("/traces/{traceId}", s.getTrace).Methods(http.MethodGet)
	api.HandleFunc("/traces/{traceId}/spans/{spanId}", s.getSpan).Methods(http.MethodGet)

	api.HandleFunc("/logs", s.getLogs).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.clearLogs).Methods(http.MethodDelete)
	api.HandleFunc("/logs/attribute-keys", s.getLogAttributeKeys).Methods(http.MethodGet)

	api.HandleFunc("/metrics", s.clearMetrics).Methods(http.MethodDelete)
	api.HandleFunc("/metrics/{resource}/instruments", s.getInstruments).Methods(http.MethodGet)
	api.HandleFunc("/metrics/{resource}/instruments/{name}", s.getInstrumentData).Methods(http.MethodGet)

	api.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
}

func (s *APIServer) getResources(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get(paramName); name != "" {
		s.writeJSON(w, s.repo.GetResourcesByName(name))
		return
	}

	s.writeJSON(w, s.repo.GetResources())
}

func (s *APIServer) getStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.repo.Stats())
}

func (s *APIServer) getTraces(w http.ResponseWriter, r *http.Request) {
	q, err := ParseTraceQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.follow(w, r, TailRequest{Signal: telemetry.SignalTraces, Traces: q}) {
		return
	}

	page, err := s.repo.GetTraces(q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, page)
}

func (s *APIServer) getTrace(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["traceId"]

	trace, ok := s.repo.GetTrace(traceID)
	if !ok {
		writeError(w, "trace not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, trace)
}

func (s *APIServer) getSpan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	span, ok := s.repo.GetSpan(vars["traceId"], vars["spanId"])
	if !ok {
		writeError(w, "span not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, span)
}

func (s *APIServer) getTraceAttributeKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.repo.TraceAttributeKeys(r.URL.Query().Get(paramResource))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, keys)
}

func (s *APIServer) clearTraces(w http.ResponseWriter, r *http.Request) {
	s.writeCleared(w, s.repo.ClearTraces(r.URL.Query().Get(paramResource)))
}

func (s *APIServer) getLogs(w http.ResponseWriter, r *http.Request) {
	q, err := ParseLogQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.follow(w, r, TailRequest{Signal: telemetry.SignalLogs, Logs: q}) {
		return
	}

	page, err := s.repo.GetLogs(q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, page)
}

func (s *APIServer) getLogAttributeKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.repo.LogAttributeKeys(r.URL.Query().Get(paramResource))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, keys)
}

func (s *APIServer) clearLogs(w http.ResponseWriter, r *http.Request) {
	s.writeCleared(w, s.repo.ClearLogs(r.URL.Query().Get(paramResource)))
}

func (s *APIServer) clearMetrics(w http.ResponseWriter, r *http.Request) {
	s.writeCleared(w, s.repo.ClearMetrics(r.URL.Query().Get(paramResource)))
}

func (s *APIServer) getInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.repo.GetInstrumentsSummary(mux.Vars(r)["resource"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, instruments)
}

func (s *APIServer) getInstrumentData(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	q, err := ParseInstrumentQuery(vars["resource"], vars["name"], r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, err := s.repo.GetInstrumentData(q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, data)
}

func (s *APIServer) writeCleared(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	statusCode := httpStatus(err)
	if statusCode == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Telemetry query failed")
	}

	writeError(w, err.Error(), statusCode)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResponse := ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
