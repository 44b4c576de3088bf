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
	"fmt"
	"mime"
	"strings"

	"go.opentelemetry.io/collector/pdata/plog/plogotlp"
	"go.opentelemetry.io/collector/pdata/pmetric/pmetricotlp"
	"go.opentelemetry.io/collector/pdata/ptrace/ptraceotlp"
	collectorlogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Encoding is the wire encoding of an OTLP payload.
type Encoding int

const (
	EncodingProtobuf Encoding = iota
	EncodingJSON
)

const (
	contentTypeProtobuf    = "application/x-protobuf"
	contentTypeProtobufAlt = "application/protobuf"
	contentTypeJSON        = "application/json"
)

// ContentType returns the media type responses are written with.
func (e Encoding) ContentType() string {
	if e == EncodingJSON {
		return contentTypeJSON
	}

	return contentTypeProtobuf
}

// EncodingFromContentType maps a Content-Type header to an Encoding.
func EncodingFromContentType(header string) (Encoding, error) {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return EncodingProtobuf, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, header)
	}

	switch strings.ToLower(mediaType) {
	case contentTypeProtobuf, contentTypeProtobufAlt:
		return EncodingProtobuf, nil
	case contentTypeJSON:
		return EncodingJSON, nil
	}

	return EncodingProtobuf, fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mediaType)
}

// OTLP/JSON carries hex trace and span ids which protojson would read as
// base64, so JSON bodies are decoded by pdata and transcoded to protobuf.
// Both encodings then flow through the same protobuf structs.

// DecodeTraces decodes an ExportTraceServiceRequest.
func DecodeTraces(body []byte, enc Encoding) (*collectortracev1.ExportTraceServiceRequest, error) {
	if enc == EncodingJSON {
		req := ptraceotlp.NewExportRequest()
		if err := req.UnmarshalJSON(body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		raw, err := req.MarshalProto()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		body = raw
	}

	out := &collectortracev1.ExportTraceServiceRequest{}
	if err := proto.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return out, nil
}

// DecodeLogs decodes an ExportLogsServiceRequest.
func DecodeLogs(body []byte, enc Encoding) (*collectorlogsv1.ExportLogsServiceRequest, error) {
	if enc == EncodingJSON {
		req := plogotlp.NewExportRequest()
		if err := req.UnmarshalJSON(body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		raw, err := req.MarshalProto()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		body = raw
	}

	out := &collectorlogsv1.ExportLogsServiceRequest{}
	if err := proto.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return out, nil
}

// DecodeMetrics decodes an ExportMetricsServiceRequest.
func DecodeMetrics(body []byte, enc Encoding) (*collectormetricsv1.ExportMetricsServiceRequest, error) {
	if enc == EncodingJSON {
		req := pmetricotlp.NewExportRequest()
		if err := req.UnmarshalJSON(body); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		raw, err := req.MarshalProto()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		body = raw
	}

	out := &collectormetricsv1.ExportMetricsServiceRequest{}
	if err := proto.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return out, nil
}

// Encode writes a response message in the given encoding.
func Encode(msg proto.Message, enc Encoding) ([]byte, error) {
	if enc == EncodingJSON {
		return protojson.Marshal(msg)
	}

	return proto.Marshal(msg)
}
