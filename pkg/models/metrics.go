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
	"time"
)

// InstrumentKind is decided by which OTLP payload variant carried the metric.
type InstrumentKind int

const (
	InstrumentKindCounter InstrumentKind = iota
	InstrumentKindGauge
	InstrumentKindHistogram
)

func (k InstrumentKind) String() string {
	switch k {
	case InstrumentKindCounter:
		return "counter"
	case InstrumentKindGauge:
		return "gauge"
	case InstrumentKindHistogram:
		return "histogram"
	default:
		return fmt.Sprintf("InstrumentKind(%d)", int(k))
	}
}

func (k InstrumentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *InstrumentKind) UnmarshalText(text []byte) error {
	for _, kind := range []InstrumentKind{InstrumentKindCounter, InstrumentKindGauge, InstrumentKindHistogram} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}

	return fmt.Errorf("unknown instrument kind %q", text)
}

type AggregationTemporality int

const (
	TemporalityUnspecified AggregationTemporality = iota
	TemporalityDelta
	TemporalityCumulative
)

func (t AggregationTemporality) String() string {
	switch t {
	case TemporalityDelta:
		return "delta"
	case TemporalityCumulative:
		return "cumulative"
	default:
		return "unspecified"
	}
}

func (t AggregationTemporality) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *AggregationTemporality) UnmarshalText(text []byte) error {
	switch string(text) {
	case "delta":
		*t = TemporalityDelta
	case "cumulative":
		*t = TemporalityCumulative
	default:
		*t = TemporalityUnspecified
	}

	return nil
}

// HistogramValue is an explicit-bucket histogram sample.
type HistogramValue struct {
	Count          uint64    `json:"count"`
	Sum            float64   `json:"sum"`
	Min            *float64  `json:"min,omitempty"`
	Max            *float64  `json:"max,omitempty"`
	ExplicitBounds []float64 `json:"explicit_bounds"`
	BucketCounts   []uint64  `json:"bucket_counts"`
}

// Exemplar links a sampled measurement to the span that produced it.
type Exemplar struct {
	Time       time.Time  `json:"time"`
	Value      float64    `json:"value"`
	TraceID    string     `json:"trace_id,omitempty"`
	SpanID     string     `json:"span_id,omitempty"`
	Attributes []KeyValue `json:"attributes,omitempty"`
}

// DataPoint holds a scalar value for counters and gauges, or Histogram for histograms.
type DataPoint struct {
	StartTime  time.Time       `json:"start_time,omitempty"`
	Time       time.Time       `json:"time"`
	Attributes []KeyValue      `json:"attributes"`
	Value      float64         `json:"value"`
	Histogram  *HistogramValue `json:"histogram,omitempty"`
	Exemplars  []Exemplar      `json:"exemplars,omitempty"`
}

// MetricRecord is one normalized OTLP metric with its data points.
type MetricRecord struct {
	Name        string                 `json:"name"`
	Unit        string                 `json:"unit,omitempty"`
	Description string                 `json:"description,omitempty"`
	Kind        InstrumentKind         `json:"kind"`
	Temporality AggregationTemporality `json:"temporality"`
	Monotonic   bool                   `json:"monotonic"`
	Points      []DataPoint            `json:"points"`
}

// Instrument describes a stored metric time series owner.
type Instrument struct {
	Resource    ResourceKey            `json:"resource"`
	Scope       Scope                  `json:"scope"`
	Name        string                 `json:"name"`
	Unit        string                 `json:"unit,omitempty"`
	Description string                 `json:"description,omitempty"`
	Kind        InstrumentKind         `json:"kind"`
	Temporality AggregationTemporality `json:"temporality"`
	Monotonic   bool                   `json:"monotonic"`
}

// InstrumentSummary is instrument metadata without its points.
type InstrumentSummary struct {
	Instrument
	PointCount  int       `json:"point_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// InstrumentData is the result of a ranged instrument query.
type InstrumentData struct {
	Instrument
	Points []DataPoint `json:"points"`
	// KnownAttributeValues lists every value seen per dimension key, sorted.
	KnownAttributeValues map[string][]string `json:"known_attribute_values"`
}
