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

package models

import (
	"fmt"
	"strings"
	"time"
)

// SpanKind mirrors the OTLP span kind. Unspecified kinds are stored as internal.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
	SpanKindProducer
	SpanKindConsumer
)

var spanKindNames = map[SpanKind]string{
	SpanKindInternal: "internal",
	SpanKindServer:   "server",
	SpanKindClient:   "client",
	SpanKindProducer: "producer",
	SpanKindConsumer: "consumer",
}

func (k SpanKind) String() string {
	if name, ok := spanKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("SpanKind(%d)", int(k))
}

func (k SpanKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *SpanKind) UnmarshalText(text []byte) error {
	for kind, name := range spanKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}

	return fmt.Errorf("unknown span kind %q", text)
}

// SpanStatus mirrors the OTLP status code.
type SpanStatus int

const (
	SpanStatusUnset SpanStatus = iota
	SpanStatusOK
	SpanStatusError
)

func (s SpanStatus) String() string {
	switch s {
	case SpanStatusOK:
		return "ok"
	case SpanStatusError:
		return "error"
	case SpanStatusUnset:
		return "unset"
	default:
		return fmt.Sprintf("SpanStatus(%d)", int(s))
	}
}

func (s SpanStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SpanStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unset":
		*s = SpanStatusUnset
	case "ok":
		*s = SpanStatusOK
	case "error":
		*s = SpanStatusError
	default:
		return fmt.Errorf("unknown span status %q", text)
	}

	return nil
}

// SpanEvent is a timestamped annotation on a span.
type SpanEvent struct {
	Name       string     `json:"name"`
	Time       time.Time  `json:"time"`
	Attributes []KeyValue `json:"attributes,omitempty"`
}

// SpanLink references a span in the same or another trace.
type SpanLink struct {
	TraceID    string     `json:"trace_id"`
	SpanID     string     `json:"span_id"`
	TraceState string     `json:"trace_state,omitempty"`
	Attributes []KeyValue `json:"attributes,omitempty"`
}

// SpanRecord is a normalized span as decoded from OTLP. Ids are lowercase hex.
// A zero EndTime marks a span that has not finished.
type SpanRecord struct {
	TraceID       string      `json:"trace_id"`
	SpanID        string      `json:"span_id"`
	ParentSpanID  string      `json:"parent_span_id,omitempty"`
	Name          string      `json:"name"`
	Kind          SpanKind    `json:"kind"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       time.Time   `json:"end_time"`
	Status        SpanStatus  `json:"status"`
	StatusMessage string      `json:"status_message,omitempty"`
	TraceState    string      `json:"trace_state,omitempty"`
	Attributes    []KeyValue  `json:"attributes"`
	Events        []SpanEvent `json:"events,omitempty"`
	Links         []SpanLink  `json:"links,omitempty"`
}

// Span is a stored span with its owner and its depth in the assembled trace.
type Span struct {
	SpanRecord
	Resource ResourceKey `json:"resource"`
	Scope    Scope       `json:"scope"`
	Depth    int         `json:"depth"`
}

// Pending reports whether the span has not reported an end time.
func (s *SpanRecord) Pending() bool {
	return s.EndTime.IsZero()
}

// Duration is zero for pending spans.
func (s *SpanRecord) Duration() time.Duration {
	if s.Pending() {
		return 0
	}

	return s.EndTime.Sub(s.StartTime)
}

// Trace is an assembled view of all spans sharing a trace id.
type Trace struct {
	TraceID     string        `json:"trace_id"`
	Name        string        `json:"name"`
	Spans       []Span        `json:"spans"`
	RootSpanIDs []string      `json:"root_span_ids"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Duration    time.Duration `json:"duration"`
	Resources   []ResourceKey `json:"resources"`
	HasError    bool          `json:"has_error"`
}

// Span returns the span with the given id.
func (t *Trace) Span(spanID string) (Span, bool) {
	for i := range t.Spans {
		if t.Spans[i].SpanID == spanID {
			return t.Spans[i], true
		}
	}

	return Span{}, false
}

// NormalizeID lowercases a hex trace or span id supplied by a caller.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
