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
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

// DefaultPageSize applies when a request does not set count.
const DefaultPageSize = 100

const (
	paramResource    = "resource"
	paramFilter      = "filter"
	paramFieldFilter = "field_filter"
	paramStart       = "start"
	paramCount       = "count"
	paramSeverity    = "severity"
	paramTraceID     = "trace_id"
	paramSpanID      = "span_id"
	paramScope       = "scope"
	paramFrom        = "from"
	paramTo          = "to"
	paramName        = "name"
	paramFollow      = "follow"
	paramSignal      = "signal"
)

// ParseTraceQuery reads trace query parameters.
func ParseTraceQuery(values url.Values) (telemetry.TraceQuery, error) {
	filters, err := parseFieldFilters(values)
	if err != nil {
		return telemetry.TraceQuery{}, err
	}

	start, count, err := parsePage(values)
	if err != nil {
		return telemetry.TraceQuery{}, err
	}

	return telemetry.TraceQuery{
		Resource:   values.Get(paramResource),
		FilterText: values.Get(paramFilter),
		Filters:    filters,
		StartIndex: start,
		Count:      count,
	}, nil
}

// ParseLogQuery reads log query parameters. severity is the minimum level.
func ParseLogQuery(values url.Values) (telemetry.LogQuery, error) {
	filters, err := parseFieldFilters(values)
	if err != nil {
		return telemetry.LogQuery{}, err
	}

	start, count, err := parsePage(values)
	if err != nil {
		return telemetry.LogQuery{}, err
	}

	q := telemetry.LogQuery{
		Resource:   values.Get(paramResource),
		TraceID:    values.Get(paramTraceID),
		SpanID:     values.Get(paramSpanID),
		FilterText: values.Get(paramFilter),
		Filters:    filters,
		StartIndex: start,
		Count:      count,
	}

	if raw := values.Get(paramSeverity); raw != "" {
		severity, err := models.ParseSeverity(raw)
		if err != nil {
			return telemetry.LogQuery{}, err
		}

		q.MinSeverity = &severity
	}

	return q, nil
}

// ParseInstrumentQuery reads the optional scope and time range of an instrument request.
func ParseInstrumentQuery(resource, name string, values url.Values) (telemetry.InstrumentQuery, error) {
	from, err := parseTime(values, paramFrom)
	if err != nil {
		return telemetry.InstrumentQuery{}, err
	}

	to, err := parseTime(values, paramTo)
	if err != nil {
		return telemetry.InstrumentQuery{}, err
	}

	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return telemetry.InstrumentQuery{}, fmt.Errorf("%w: %s is before %s", ErrInvalidParameter, paramTo, paramFrom)
	}

	return telemetry.InstrumentQuery{
		Resource:       resource,
		ScopeName:      values.Get(paramScope),
		InstrumentName: name,
		Start:          from,
		End:            to,
	}, nil
}

func parseFieldFilters(values url.Values) ([]models.FieldFilter, error) {
	raw := values[paramFieldFilter]
	if len(raw) == 0 {
		return nil, nil
	}

	filters := make([]models.FieldFilter, 0, len(raw))

	for _, item := range raw {
		f, err := models.ParseFieldFilter(item)
		if err != nil {
			return nil, err
		}

		filters = append(filters, f)
	}

	return filters, nil
}

func parsePage(values url.Values) (start, count int, err error) {
	start, err = parseNonNegative(values, paramStart, 0)
	if err != nil {
		return 0, 0, err
	}

	count, err = parseNonNegative(values, paramCount, DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}

	return start, count, nil
}

func parseNonNegative(values url.Values, key string, fallback int) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, key, raw)
	}

	return n, nil
}

func parseTime(values url.Values, key string) (time.Time, error) {
	raw := values.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrInvalidParameter, key, err)
	}

	return t, nil
}

func parseBool(values url.Values, key string) (bool, error) {
	raw := values.Get(key)
	if raw == "" {
		return false, nil
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, key, raw)
	}

	return b, nil
}
