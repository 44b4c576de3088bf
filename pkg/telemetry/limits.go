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

// Package telemetry holds the in-memory trace, log and metric stores and the
// repository that owns them.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/carverauto/otelhub/pkg/otelconv"
)

// Limits bounds memory held by the repository. Per-resource caps of zero are disabled.
type Limits struct {
	MaxTraceCount                int `json:"max_trace_count"`
	MaxLogCount                  int `json:"max_log_count"`
	MaxInstrumentCount           int `json:"max_instrument_count"`
	MaxMetricPointsPerInstrument int `json:"max_metric_points_per_instrument"`
	MaxTracesPerResource         int `json:"max_traces_per_resource"`
	MaxLogsPerResource           int `json:"max_logs_per_resource"`
	MaxInstrumentsPerResource    int `json:"max_instruments_per_resource"`
	MaxAttributeCount            int `json:"max_attribute_count"`
	MaxAttributeLength           int `json:"max_attribute_length"`
	MaxSpanEventCount            int `json:"max_span_event_count"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxTraceCount:                10000,
		MaxLogCount:                  10000,
		MaxInstrumentCount:           2000,
		MaxMetricPointsPerInstrument: 1000,
		MaxAttributeCount:            128,
		MaxSpanEventCount:            128,
	}
}

// Normalization returns the subset of limits applied while converting OTLP records.
func (l Limits) Normalization() otelconv.Limits {
	return otelconv.Limits{
		MaxAttributeCount:  l.MaxAttributeCount,
		MaxAttributeLength: l.MaxAttributeLength,
		MaxSpanEventCount:  l.MaxSpanEventCount,
	}
}

type namedLimit struct {
	name  string
	value int
}

// Validate reports every limit that is out of range, in declaration order.
func (l Limits) Validate() error {
	var errs []error

	for _, lim := range []namedLimit{
		{"max_trace_count", l.MaxTraceCount},
		{"max_log_count", l.MaxLogCount},
		{"max_instrument_count", l.MaxInstrumentCount},
		{"max_metric_points_per_instrument", l.MaxMetricPointsPerInstrument},
	} {
		if lim.value <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidLimits, lim.name, lim.value))
		}
	}

	for _, lim := range []namedLimit{
		{"max_traces_per_resource", l.MaxTracesPerResource},
		{"max_logs_per_resource", l.MaxLogsPerResource},
		{"max_instruments_per_resource", l.MaxInstrumentsPerResource},
		{"max_attribute_count", l.MaxAttributeCount},
		{"max_attribute_length", l.MaxAttributeLength},
		{"max_span_event_count", l.MaxSpanEventCount},
	} {
		if lim.value < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidLimits, lim.name, lim.value))
		}
	}

	return errors.Join(errs...)
}
