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
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/otelhub/pkg/telemetry"
)

const (
	contentTypeNDJSON = "application/x-ndjson"
	wsWriteTimeout    = 10 * time.Second
)

// follow serves req as an NDJSON stream when follow=true. It reports whether
// the request was handled.
func (s *APIServer) follow(w http.ResponseWriter, r *http.Request, req TailRequest) bool {
	enabled, err := parseBool(r.URL.Query(), paramFollow)
	if err != nil {
		s.writeError(w, err)
		return true
	}

	if !enabled {
		return false
	}

	if err := s.tailer.Validate(req); err != nil {
		s.writeError(w, err)
		return true
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug().Err(err).Msg("Could not clear write deadline for stream")
	}

	w.Header().Set("Content-Type", contentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)

	err = s.tailer.Tail(r.Context(), req, func(frame Frame) error {
		if err := enc.Encode(frame); err != nil {
			return err
		}

		return rc.Flush()
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("NDJSON stream ended")
	}

	return true
}

// handleWebSocket tails one signal over a WebSocket. Frames are JSON text messages.
func (s *APIServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	signal, err := telemetry.ParseSignal(values.Get(paramSignal))
	if err != nil {
		s.writeError(w, err)
		return
	}

	req, err := ParseTailRequest(signal, values)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.tailer.Validate(req); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	defer func() { _ = conn.Close() }()

	s.logger.Debug().
		Str("remote_addr", r.RemoteAddr).
		Str("signal", string(signal)).
		Msg("WebSocket tail established")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.handleClientMessages(conn, cancel)

	err = s.tailer.Tail(ctx, req, func(frame Frame) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}

		return conn.WriteJSON(frame)
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket tail ended")
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsWriteTimeout))
}

// handleClientMessages drains client messages and cancels the tail on disconnect.
func (s *APIServer) handleClientMessages(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("WebSocket closed unexpectedly")
			}

			return
		}
	}
}

// checkWebSocketOrigin accepts same-origin requests, requests without an
// Origin header and origins allowed by the CORS configuration.
func (s *APIServer) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if slices.Contains(s.corsConfig.AllowedOrigins, "*") || slices.Contains(s.corsConfig.AllowedOrigins, origin) {
		return true
	}

	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
