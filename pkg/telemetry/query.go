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

package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/otelhub/pkg/models"
)

// TraceQuery selects a page of traces. Resource accepts a resource key, a
// display name or a service name; empty selects every resource.
type TraceQuery struct {
	Resource   string
	FilterText string
	Filters    []models.FieldFilter
	StartIndex int
	Count      int
}

// LogQuery selects a page of log records.
type LogQuery struct {
	Resource    string
	MinSeverity *models.Severity
	TraceID     string
	SpanID      string
	FilterText  string
	Filters     []models.FieldFilter
	StartIndex  int
	Count       int
}

// InstrumentQuery selects the points of one instrument. An empty ScopeName
// matches the first instrument with the given name; zero times are unbounded.
type InstrumentQuery struct {
	Resource       string
	ScopeName      string
	InstrumentName string
	Start          time.Time
	End            time.Time
}

type resourceSet map[models.ResourceKey]struct{}

func newResourceSet(keys []models.ResourceKey) resourceSet {
	if keys == nil {
		return nil
	}

	set := make(resourceSet, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}

	return set
}

// contains treats a nil set as "every resource".
func (s resourceSet) contains(key models.ResourceKey) bool {
	if s == nil {
		return true
	}

	_, ok := s[key]

	return ok
}

// TraceMatcher is the compiled form of a TraceQuery. The same matcher decides
// both paged results and which live updates a subscriber sees.
type TraceMatcher struct {
	resources resourceSet
	text      string
	filters   []models.FieldFilter
}

// Match reports whether the assembled trace satisfies the query.
func (m *TraceMatcher) Match(trace *models.Trace) bool {
	return m.matchSpans(trace.Spans)
}

func (m *TraceMatcher) matchSpans(spans []models.Span) bool {
	if m.resources != nil {
		found := false

		for i := range spans {
			if m.resources.contains(spans[i].Resource) {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	if m.text != "" {
		found := false

		for i := range spans {
			if spanContainsText(&spans[i], m.text) {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	if len(m.filters) == 0 {
		return true
	}

	for i := range spans {
		span := &spans[i]
		if models.MatchAll(m.filters, func(field string) (string, bool) { return spanField(span, field) }) {
			return true
		}
	}

	return false
}

func spanContainsText(span *models.Span, text string) bool {
	return models.ContainsText(text, span.Name, span.TraceID, span.SpanID) ||
		models.AttributesContainText(text, span.Attributes)
}

func spanField(span *models.Span, field string) (string, bool) {
	switch field {
	case "name", "span.name":
		return span.Name, true
	case "kind", "span.kind":
		return span.Kind.String(), true
	case "status", "span.status":
		return span.Status.String(), true
	case "trace_id", "trace.id":
		return span.TraceID, true
	case "span_id", "span.id":
		return span.SpanID, true
	case "parent_span_id":
		return span.ParentSpanID, span.ParentSpanID != ""
	case "resource":
		return span.Resource.String(), true
	case "resource.name":
		return span.Resource.Name, true
	case "scope", "scope.name":
		return span.Scope.Name, true
	case "duration_ms":
		if span.Pending() {
			return "", false
		}

		return strconv.FormatFloat(float64(span.Duration())/float64(time.Millisecond), 'f', -1, 64), true
	}

	return models.AttributeValue(span.Attributes, field)
}

// LogMatcher is the compiled form of a LogQuery.
type LogMatcher struct {
	resources   resourceSet
	minSeverity *models.Severity
	traceID     string
	spanID      string
	text        string
	filters     []models.FieldFilter
}

// Match reports whether the entry satisfies the query.
func (m *LogMatcher) Match(entry *models.LogEntry) bool {
	if !m.resources.contains(entry.Resource) {
		return false
	}

	if m.minSeverity != nil && entry.Severity < *m.minSeverity {
		return false
	}

	if m.traceID != "" && entry.TraceID != m.traceID {
		return false
	}

	if m.spanID != "" && entry.SpanID != m.spanID {
		return false
	}

	if m.text != "" && !models.ContainsText(m.text, entry.Message, entry.EventName) &&
		!models.AttributesContainText(m.text, entry.Attributes) {
		return false
	}

	return models.MatchAll(m.filters, func(field string) (string, bool) { return logField(entry, field) })
}

func logField(entry *models.LogEntry, field string) (string, bool) {
	switch field {
	case "message", "body":
		return entry.Message, true
	case "severity", "log.level":
		return entry.Severity.String(), true
	case "severity_number":
		return strconv.Itoa(int(entry.SeverityNumber)), true
	case "trace_id", "trace.id":
		return entry.TraceID, entry.TraceID != ""
	case "span_id", "span.id":
		return entry.SpanID, entry.SpanID != ""
	case "event_name":
		return entry.EventName, entry.EventName != ""
	case "resource":
		return entry.Resource.String(), true
	case "resource.name":
		return entry.Resource.Name, true
	case "scope", "scope.name", "category":
		return entry.Scope.Name, true
	}

	return models.AttributeValue(entry.Attributes, field)
}

func validateFilters(filters []models.FieldFilter) error {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func normalizeText(text string) string {
	return strings.TrimSpace(text)
}
