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

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

const (
	// DefaultMaxRequestBytes bounds a single OTLP/HTTP body after decompression.
	DefaultMaxRequestBytes = 4 << 20

	PathTraces  = "/v1/traces"
	PathLogs    = "/v1/logs"
	PathMetrics = "/v1/metrics"
)

type exportFunc func(ctx context.Context, body []byte, enc Encoding) (proto.Message, error)

// HTTPHandler serves OTLP/HTTP in both protobuf and JSON encodings.
type HTTPHandler struct {
	ingester *Ingester
	maxBytes int64
	logger   logger.Logger
}

// NewHTTPHandler creates the OTLP/HTTP handler. A non-positive maxBytes uses DefaultMaxRequestBytes.
func NewHTTPHandler(ingester *Ingester, maxBytes int64, log logger.Logger) *HTTPHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBytes
	}

	return &HTTPHandler{ingester: ingester, maxBytes: maxBytes, logger: log}
}

// Register adds the OTLP routes. Other methods on these paths get 405 from the router.
func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc(PathTraces, h.handleTraces).Methods(http.MethodPost)
	router.HandleFunc(PathLogs, h.handleLogs).Methods(http.MethodPost)
	router.HandleFunc(PathMetrics, h.handleMetrics).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleTraces(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, telemetry.SignalTraces, func(ctx context.Context, body []byte, enc Encoding) (proto.Message, error) {
		req, err := DecodeTraces(body, enc)
		if err != nil {
			return nil, err
		}

		return h.ingester.ExportTraces(ctx, req), nil
	})
}

func (h *HTTPHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, telemetry.SignalLogs, func(ctx context.Context, body []byte, enc Encoding) (proto.Message, error) {
		req, err := DecodeLogs(body, enc)
		if err != nil {
			return nil, err
		}

		return h.ingester.ExportLogs(ctx, req), nil
	})
}

func (h *HTTPHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, telemetry.SignalMetrics, func(ctx context.Context, body []byte, enc Encoding) (proto.Message, error) {
		req, err := DecodeMetrics(body, enc)
		if err != nil {
			return nil, err
		}

		return h.ingester.ExportMetrics(ctx, req), nil
	})
}

func (h *HTTPHandler) serve(w http.ResponseWriter, r *http.Request, signal telemetry.Signal, export exportFunc) {
	enc, err := EncodingFromContentType(r.Header.Get("Content-Type"))
	if err != nil {
		h.writeStatus(w, EncodingJSON, http.StatusUnsupportedMediaType, err)
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		h.logger.Warn().Err(err).Str("signal", string(signal)).Msg("Rejected OTLP/HTTP request body")
		h.writeStatus(w, enc, http.StatusBadRequest, err)

		return
	}

	resp, err := export(r.Context(), body, enc)
	if err != nil {
		h.logger.Warn().Err(err).Str("signal", string(signal)).Msg("Failed to decode OTLP/HTTP request")
		h.writeStatus(w, enc, http.StatusBadRequest, err)

		return
	}

	payload, err := Encode(resp, enc)
	if err != nil {
		h.writeStatus(w, enc, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(payload); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to write OTLP/HTTP response")
	}
}

func (h *HTTPHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.ContentLength > h.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrRequestTooLarge, r.ContentLength, h.maxBytes)
	}

	var reader io.Reader = http.MaxBytesReader(w, r.Body, h.maxBytes)

	switch encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); encoding {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		defer func() { _ = gz.Close() }()

		reader = gz
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}

	body, err := io.ReadAll(io.LimitReader(reader, h.maxBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrRequestTooLarge, h.maxBytes)
		}

		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if int64(len(body)) > h.maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrRequestTooLarge, h.maxBytes)
	}

	return body, nil
}

// writeStatus writes a google.rpc.Status body as OTLP/HTTP requires for failures.
func (h *HTTPHandler) writeStatus(w http.ResponseWriter, enc Encoding, httpStatus int, err error) {
	code := codes.InvalidArgument
	if httpStatus >= http.StatusInternalServerError {
		code = codes.Internal
	}

	payload, encErr := Encode(status.New(code, err.Error()).Proto(), enc)
	if encErr != nil {
		http.Error(w, err.Error(), httpStatus)
		return
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(httpStatus)

	if _, writeErr := w.Write(payload); writeErr != nil {
		h.logger.Debug().Err(writeErr).Msg("Failed to write OTLP/HTTP error response")
	}
}
