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
	"time"

	"github.com/carverauto/otelhub/pkg/models"
)

// Tool results are flattened summaries of the stored models: attribute lists
// become maps and durations are reported in milliseconds.

type resourceSummary struct {
	Name               string            `json:"name"`
	DisplayName        string            `json:"display_name"`
	InstanceID         string            `json:"instance_id,omitempty"`
	UninstrumentedPeer bool              `json:"uninstrumented_peer,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
}

type traceSummary struct {
	TraceID    string    `json:"trace_id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	DurationMs float64   `json:"duration_ms"`
	SpanCount  int       `json:"span_count"`
	HasError   bool      `json:"has_error"`
	Resources  []string  `json:"resources"`
}

type spanSummary struct {
	SpanID        string            `json:"span_id"`
	ParentSpanID  string            `json:"parent_span_id,omitempty"`
	Name          string            `json:"name"`
	Kind          string            `json:"kind"`
	Status        string            `json:"status"`
	StatusMessage string            `json:"status_message,omitempty"`
	Resource      string            `json:"resource"`
	Scope         string            `json:"scope,omitempty"`
	Depth         int               `json:"depth"`
	StartTime     time.Time         `json:"start_time"`
	DurationMs    *float64          `json:"duration_ms,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

type logSummary struct {
	LogID      uint64            `json:"log_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Severity   string            `json:"severity"`
	Message    string            `json:"message"`
	Resource   string            `json:"resource"`
	Scope      string            `json:"scope,omitempty"`
	EventName  string            `json:"event_name,omitempty"`
	TraceID    string            `json:"trace_id,omitempty"`
	SpanID     string            `json:"span_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func attributeMap(attrs []models.KeyValue) map[string]string {
	if len(attrs) == 0 {
		return nil
	}

	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[kv.Key] = kv.Value
	}

	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func convertResource(res *models.Resource) resourceSummary {
	return resourceSummary{
		Name:               res.Name,
		DisplayName:        res.DisplayName,
		InstanceID:         res.InstanceID,
		UninstrumentedPeer: res.UninstrumentedPeer,
		Attributes:         attributeMap(res.Attributes),
	}
}

func convertTrace(trace *models.Trace) traceSummary {
	resources := make([]string, 0, len(trace.Resources))
	for _, key := range trace.Resources {
		resources = append(resources, key.String())
	}

	return traceSummary{
		TraceID:    trace.TraceID,
		Name:       trace.Name,
		StartTime:  trace.StartTime,
		DurationMs: milliseconds(trace.Duration),
		SpanCount:  len(trace.Spans),
		HasError:   trace.HasError,
		Resources:  resources,
	}
}

func convertSpan(span *models.Span) spanSummary {
	out := spanSummary{
		SpanID:        span.SpanID,
		ParentSpanID:  span.ParentSpanID,
		Name:          span.Name,
		Kind:          span.Kind.String(),
		Status:        span.Status.String(),
		StatusMessage: span.StatusMessage,
		Resource:      span.Resource.String(),
		Scope:         span.Scope.Name,
		Depth:         span.Depth,
		StartTime:     span.StartTime,
		Attributes:    attributeMap(span.Attributes),
	}

	if !span.Pending() {
		ms := milliseconds(span.Duration())
		out.DurationMs = &ms
	}

	return out
}

func convertLog(entry *models.LogEntry) logSummary {
	return logSummary{
		LogID:      entry.ID,
		Timestamp:  entry.Timestamp,
		Severity:   entry.Severity.String(),
		Message:    entry.Message,
		Resource:   entry.Resource.String(),
		Scope:      entry.Scope.Name,
		EventName:  entry.EventName,
		TraceID:    entry.TraceID,
		SpanID:     entry.SpanID,
		Attributes: attributeMap(entry.Attributes),
	}
}
