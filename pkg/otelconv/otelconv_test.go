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

package otelconv

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectorlogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"
	metricsv1 "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/carverauto/otelhub/pkg/models"
)

func strAttr(key, value string) *commonv1.KeyValue {
	return &commonv1.KeyValue{Key: key, Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: value}}}
}

func serviceResource(name string) *resourcev1.Resource {
	return &resourcev1.Resource{Attributes: []*commonv1.KeyValue{strAttr(AttrServiceName, name)}}
}

func TestFlattenValue(t *testing.T) {
	tests := []struct {
		name  string
		value *commonv1.AnyValue
		want  string
	}{
		{"nil", nil, ""},
		{"empty", &commonv1.AnyValue{}, ""},
		{"string", &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: "a<b"}}, "a<b"},
		{"bool", &commonv1.AnyValue{Value: &commonv1.AnyValue_BoolValue{BoolValue: true}}, "true"},
		{"int", &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: -42}}, "-42"},
		{"double", &commonv1.AnyValue{Value: &commonv1.AnyValue_DoubleValue{DoubleValue: 1.5}}, "1.5"},
		{"whole double", &commonv1.AnyValue{Value: &commonv1.AnyValue_DoubleValue{DoubleValue: 2}}, "2"},
		{"bytes", &commonv1.AnyValue{Value: &commonv1.AnyValue_BytesValue{BytesValue: []byte("hi")}}, "aGk="},
		{
			"array",
			&commonv1.AnyValue{Value: &commonv1.AnyValue_ArrayValue{ArrayValue: &commonv1.ArrayValue{
				Values: []*commonv1.AnyValue{
					{Value: &commonv1.AnyValue_StringValue{StringValue: "x"}},
					{Value: &commonv1.AnyValue_IntValue{IntValue: 1}},
					nil,
				},
			}}},
			`["x",1,null]`,
		},
		{
			"kvlist keeps order",
			&commonv1.AnyValue{Value: &commonv1.AnyValue_KvlistValue{KvlistValue: &commonv1.KeyValueList{
				Values: []*commonv1.KeyValue{
					strAttr("z", "1"),
					{Key: "a", Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_BoolValue{BoolValue: false}}},
				},
			}}},
			`{"z":"1","a":false}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlattenValue(tt.value))
		})
	}
}

func TestConvertAttributes(t *testing.T) {
	attrs := []*commonv1.KeyValue{
		strAttr("a", "first"),
		strAttr("", "dropped"),
		strAttr("b", "héllo world"),
		strAttr("a", "second"),
		strAttr("c", "over the cap"),
	}

	got := ConvertAttributes(attrs, Limits{MaxAttributeCount: 2, MaxAttributeLength: 5})

	assert.Equal(t, []models.KeyValue{
		{Key: "a", Value: "secon"},
		{Key: "b", Value: "héllo"},
	}, got)
}

func TestResolveResourceDefaults(t *testing.T) {
	rec := ResolveResource(nil, DefaultLimits())
	assert.Equal(t, UnknownServiceName, rec.Name)
	assert.Equal(t, UnknownServiceName, rec.InstanceID)
	assert.Equal(t, "unknown_service", rec.Key().String())

	rec = ResolveResource(&resourcev1.Resource{Attributes: []*commonv1.KeyValue{
		strAttr(AttrServiceName, "api"),
		strAttr(AttrServiceInstanceID, "pod-1"),
	}}, DefaultLimits())
	assert.Equal(t, models.ResourceKey{Name: "api", InstanceID: "pod-1"}, rec.Key())
}

func validSpan(i byte) *tracev1.Span {
	return &tracev1.Span{
		TraceId:           []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanId:            []byte{0, 0, 0, 0, 0, 0, 1, i + 1},
		Name:              "op",
		StartTimeUnixNano: 1_000,
		EndTimeUnixNano:   2_000,
	}
}

func TestConvertTracesPartialRejection(t *testing.T) {
	spans := make([]*tracev1.Span, 0, 10)
	for i := 0; i < 8; i++ {
		spans = append(spans, validSpan(byte(i)))
	}

	badTrace := validSpan(20)
	badTrace.TraceId = []byte{1, 2, 3}
	zeroSpan := validSpan(21)
	zeroSpan.SpanId = make([]byte, 8)
	spans = append(spans, badTrace, zeroSpan)

	req := &collectortracev1.ExportTraceServiceRequest{
		ResourceSpans: []*tracev1.ResourceSpans{{
			Resource:   serviceResource("checkout"),
			ScopeSpans: []*tracev1.ScopeSpans{{Scope: &commonv1.InstrumentationScope{Name: "lib"}, Spans: spans}},
		}},
	}

	batches, rejections := ConvertTraces(req, DefaultLimits())

	require.Len(t, batches, 1)
	assert.Equal(t, 8, batches[0].Count())
	assert.Equal(t, int64(2), rejections.Count)
	assert.True(t, strings.HasPrefix(rejections.Message, ErrInvalidTraceID.Error()))
}

func TestConvertSpanTolerances(t *testing.T) {
	span := validSpan(1)
	span.StartTimeUnixNano = 5_000
	span.EndTimeUnixNano = 1_000
	span.Kind = tracev1.Span_SPAN_KIND_UNSPECIFIED
	span.ParentSpanId = make([]byte, 8)

	rec, err := ConvertSpan(span, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, rec.StartTime, rec.EndTime)
	assert.Equal(t, models.SpanKindInternal, rec.Kind)
	assert.Empty(t, rec.ParentSpanID)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", rec.TraceID)

	span.EndTimeUnixNano = 0
	rec, err = ConvertSpan(span, DefaultLimits())
	require.NoError(t, err)
	assert.True(t, rec.Pending())
	assert.Zero(t, rec.Duration())

	span.EndTimeUnixNano = math.MaxUint64
	rec, err = ConvertSpan(span, DefaultLimits())
	require.NoError(t, err)
	assert.True(t, rec.Pending())

	span.ParentSpanId = []byte{1, 2}
	_, err = ConvertSpan(span, DefaultLimits())
	require.ErrorIs(t, err, ErrInvalidParentSpanID)
}

func TestConvertSpanEventCap(t *testing.T) {
	span := validSpan(1)
	for i := 0; i < 5; i++ {
		span.Events = append(span.Events, &tracev1.Span_Event{Name: "e", TimeUnixNano: 1_500})
	}

	rec, err := ConvertSpan(span, Limits{MaxSpanEventCount: 3})
	require.NoError(t, err)
	assert.Len(t, rec.Events, 3)
}

func TestUnixNanoOutOfRangeIsUnset(t *testing.T) {
	assert.True(t, unixNano(0).IsZero())
	assert.True(t, unixNano(math.MaxUint64).IsZero())
	assert.True(t, unixNano(uint64(math.MaxInt64)+1).IsZero())

	at := unixNano(uint64(math.MaxInt64))
	assert.Equal(t, 2262, at.Year())
}

func TestSeverityFromOTLP(t *testing.T) {
	tests := []struct {
		number int32
		text   string
		want   models.Severity
	}{
		{1, "", models.SeverityTrace},
		{4, "", models.SeverityTrace},
		{5, "", models.SeverityDebug},
		{10, "", models.SeverityInformation},
		{13, "", models.SeverityWarning},
		{17, "", models.SeverityError},
		{24, "", models.SeverityCritical},
		{0, "WARNING", models.SeverityWarning},
		{0, "fatal", models.SeverityCritical},
		{0, "Err", models.SeverityInformation},
		{99, "debug", models.SeverityDebug},
		{0, "", models.SeverityInformation},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityFromOTLP(tt.number, tt.text), "number=%d text=%q", tt.number, tt.text)
	}
}

func TestConvertLogs(t *testing.T) {
	req := &collectorlogsv1.ExportLogsServiceRequest{
		ResourceLogs: []*logsv1.ResourceLogs{{
			Resource: serviceResource("worker"),
			ScopeLogs: []*logsv1.ScopeLogs{{
				LogRecords: []*logsv1.LogRecord{
					{
						TimeUnixNano:   uint64(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano()),
						SeverityNumber: logsv1.SeverityNumber_SEVERITY_NUMBER_INFO2,
						Body:           &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: "hello"}},
						Attributes:     []*commonv1.KeyValue{strAttr(AttrEventName, "user.login")},
					},
					{
						ObservedTimeUnixNano: 10,
						TraceId:              []byte{1},
					},
					{
						ObservedTimeUnixNano: 10,
					},
				},
			}},
		}},
	}

	batches, rejections := ConvertLogs(req, DefaultLimits())

	require.Len(t, batches, 1)
	items := batches[0].Scopes[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), rejections.Count)

	assert.Equal(t, models.SeverityInformation, items[0].Severity)
	assert.Equal(t, "hello", items[0].Message)
	assert.Equal(t, "user.login", items[0].EventName)
	assert.True(t, items[0].IsEvent())
	assert.Equal(t, items[0].Timestamp, items[0].ObservedTimestamp)

	assert.Equal(t, models.SeverityInformation, items[1].Severity)
	assert.False(t, items[1].IsEvent())
	assert.Equal(t, items[1].ObservedTimestamp, items[1].Timestamp)
}

func TestConvertMetrics(t *testing.T) {
	number := func(v float64) *metricsv1.NumberDataPoint {
		return &metricsv1.NumberDataPoint{TimeUnixNano: 10, Value: &metricsv1.NumberDataPoint_AsDouble{AsDouble: v}}
	}

	req := &collectormetricsv1.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricsv1.ResourceMetrics{{
			Resource: serviceResource("api"),
			ScopeMetrics: []*metricsv1.ScopeMetrics{{
				Metrics: []*metricsv1.Metric{
					{
						Name: "requests",
						Data: &metricsv1.Metric_Sum{Sum: &metricsv1.Sum{
							IsMonotonic:            true,
							AggregationTemporality: metricsv1.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE,
							DataPoints: []*metricsv1.NumberDataPoint{number(1), {
								TimeUnixNano: 20, Value: &metricsv1.NumberDataPoint_AsInt{AsInt: 3},
							}},
						}},
					},
					{
						Name: "latency",
						Data: &metricsv1.Metric_Summary{Summary: &metricsv1.Summary{
							DataPoints: []*metricsv1.SummaryDataPoint{{}, {}, {}},
						}},
					},
					{
						Name: "queue",
						Data: &metricsv1.Metric_Gauge{Gauge: &metricsv1.Gauge{DataPoints: []*metricsv1.NumberDataPoint{number(7)}}},
					},
				},
			}},
		}},
	}

	batches, rejections := ConvertMetrics(req, DefaultLimits())

	assert.Equal(t, int64(3), rejections.Count)
	assert.Equal(t, ErrUnsupportedMetric.Error(), rejections.Message)

	require.Len(t, batches, 1)
	items := batches[0].Scopes[0].Items
	require.Len(t, items, 2)

	assert.Equal(t, models.InstrumentKindCounter, items[0].Kind)
	assert.True(t, items[0].Monotonic)
	assert.Equal(t, models.TemporalityCumulative, items[0].Temporality)
	assert.InDelta(t, 3.0, items[0].Points[1].Value, 0)
	assert.Equal(t, models.InstrumentKindGauge, items[1].Kind)
}

func TestExponentialToExplicit(t *testing.T) {
	bounds, counts := ExponentialToExplicit(0, 4,
		&metricsv1.ExponentialHistogramDataPoint_Buckets{Offset: 0, BucketCounts: []uint64{1, 2}},
		&metricsv1.ExponentialHistogramDataPoint_Buckets{Offset: 1, BucketCounts: []uint64{5}},
	)

	assert.Equal(t, []float64{-4, -2, 0, 2, 4}, bounds)
	assert.Equal(t, []uint64{0, 5, 4, 1, 2, 0}, counts)
	assert.Len(t, counts, len(bounds)+1)
}
