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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	collectorlogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	metricsv1 "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/otelconv"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

func stringAttr(key, value string) *commonv1.KeyValue {
	return &commonv1.KeyValue{Key: key, Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_StringValue{StringValue: value}}}
}

func testSpan(i byte) *tracev1.Span {
	traceID := make([]byte, 16)
	traceID[15] = i
	spanID := make([]byte, 8)
	spanID[7] = i

	return &tracev1.Span{
		TraceId:           traceID,
		SpanId:            spanID,
		Name:              "op",
		StartTimeUnixNano: 1_000_000_000,
		EndTimeUnixNano:   2_000_000_000,
	}
}

func traceRequest(service string, spans ...*tracev1.Span) *collectortracev1.ExportTraceServiceRequest {
	return &collectortracev1.ExportTraceServiceRequest{
		ResourceSpans: []*tracev1.ResourceSpans{{
			Resource:   &resourcev1.Resource{Attributes: []*commonv1.KeyValue{stringAttr("service.name", service)}},
			ScopeSpans: []*tracev1.ScopeSpans{{Spans: spans}},
		}},
	}
}

func TestExportTracesReportsPartialSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	spans := make([]*tracev1.Span, 0, 10)
	for i := byte(1); i <= 8; i++ {
		spans = append(spans, testSpan(i))
	}

	bad := testSpan(9)
	bad.TraceId = []byte{1, 2, 3}
	spans = append(spans, bad)

	missing := testSpan(10)
	missing.SpanId = nil
	spans = append(spans, missing)

	sink.EXPECT().
		AddTraces(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, batches []models.ResourceBatch[models.SpanRecord]) telemetry.AddResult {
			require.Len(t, batches, 1)
			assert.Equal(t, "svc", batches[0].Resource.Name)
			assert.Equal(t, 8, batches[0].Count())

			return telemetry.AddResult{Accepted: 8}
		})

	ingester := NewIngester(sink, otelconv.DefaultLimits(), logger.NewTestLogger())
	resp := ingester.ExportTraces(context.Background(), traceRequest("svc", spans...))

	require.NotNil(t, resp.GetPartialSuccess())
	assert.Equal(t, int64(2), resp.GetPartialSuccess().GetRejectedSpans())
	assert.NotEmpty(t, resp.GetPartialSuccess().GetErrorMessage())
}

func TestExportEmptyRequestsSkipSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	ingester := NewIngester(sink, otelconv.DefaultLimits(), logger.NewTestLogger())
	ctx := context.Background()

	traces := ingester.ExportTraces(ctx, &collectortracev1.ExportTraceServiceRequest{})
	assert.Nil(t, traces.GetPartialSuccess())

	logs := ingester.ExportLogs(ctx, &collectorlogsv1.ExportLogsServiceRequest{})
	assert.Nil(t, logs.GetPartialSuccess())

	metrics := ingester.ExportMetrics(ctx, &collectormetricsv1.ExportMetricsServiceRequest{})
	assert.Nil(t, metrics.GetPartialSuccess())
}

func TestExportMetricsRejectsSummaries(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)

	req := &collectormetricsv1.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricsv1.ResourceMetrics{{
			Resource: &resourcev1.Resource{Attributes: []*commonv1.KeyValue{stringAttr("service.name", "svc")}},
			ScopeMetrics: []*metricsv1.ScopeMetrics{{
				Metrics: []*metricsv1.Metric{{
					Name: "latency",
					Data: &metricsv1.Metric_Summary{Summary: &metricsv1.Summary{
						DataPoints: []*metricsv1.SummaryDataPoint{{}, {}},
					}},
				}},
			}},
		}},
	}

	ingester := NewIngester(sink, otelconv.DefaultLimits(), logger.NewTestLogger())
	resp := ingester.ExportMetrics(context.Background(), req)

	require.NotNil(t, resp.GetPartialSuccess())
	assert.Equal(t, int64(2), resp.GetPartialSuccess().GetRejectedDataPoints())
}

func TestEncodingFromContentType(t *testing.T) {
	tests := []struct {
		header  string
		want    Encoding
		wantErr bool
	}{
		{"application/x-protobuf", EncodingProtobuf, false},
		{"application/protobuf", EncodingProtobuf, false},
		{"application/json", EncodingJSON, false},
		{"application/json; charset=utf-8", EncodingJSON, false},
		{"text/plain", EncodingProtobuf, true},
		{"", EncodingProtobuf, true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := EncodingFromContentType(tt.header)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedMediaType)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignalFromSubject(t *testing.T) {
	signal, err := signalFromSubject("otlp.traces")
	require.NoError(t, err)
	assert.Equal(t, telemetry.SignalTraces, signal)

	signal, err = signalFromSubject("tenant.a.otlp.metrics")
	require.NoError(t, err)
	assert.Equal(t, telemetry.SignalMetrics, signal)

	_, err = signalFromSubject("otlp.resources")
	require.ErrorIs(t, err, ErrUnknownSubject)

	_, err = signalFromSubject("otlp.profiles")
	require.ErrorIs(t, err, ErrUnknownSubject)
}

func TestNATSConfigValidate(t *testing.T) {
	cfg := DefaultNATSConfig()
	require.NoError(t, cfg.Validate())

	cfg.Enabled = true
	require.NoError(t, cfg.Validate())

	cfg.Stream = ""
	cfg.Subjects = nil
	require.ErrorIs(t, cfg.Validate(), ErrNATSNotConfigured)
}
