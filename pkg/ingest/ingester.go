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

	collectorlogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/otelconv"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

// Ingester normalizes decoded export requests and forwards them to a Sink.
// Every transport in this package shares one Ingester.
type Ingester struct {
	sink   Sink
	limits otelconv.Limits
	logger logger.Logger
}

// NewIngester creates an Ingester.
func NewIngester(sink Sink, limits otelconv.Limits, log logger.Logger) *Ingester {
	return &Ingester{sink: sink, limits: limits, logger: log}
}

// ExportTraces stores the spans of req. Partial success is reported only when
// spans were rejected.
func (i *Ingester) ExportTraces(
	ctx context.Context, req *collectortracev1.ExportTraceServiceRequest,
) *collectortracev1.ExportTraceServiceResponse {
	batches, rejections := otelconv.ConvertTraces(req, i.limits)

	var result telemetry.AddResult
	if len(batches) > 0 {
		result = i.sink.AddTraces(ctx, batches)
	}

	i.record(ctx, telemetry.SignalTraces, result, rejections)

	resp := &collectortracev1.ExportTraceServiceResponse{}
	if !rejections.Empty() {
		resp.PartialSuccess = &collectortracev1.ExportTracePartialSuccess{
			RejectedSpans: rejections.Count,
			ErrorMessage:  rejections.Message,
		}
	}

	return resp
}

// ExportLogs stores the log records of req.
func (i *Ingester) ExportLogs(
	ctx context.Context, req *collectorlogsv1.ExportLogsServiceRequest,
) *collectorlogsv1.ExportLogsServiceResponse {
	batches, rejections := otelconv.ConvertLogs(req, i.limits)

	var result telemetry.AddResult
	if len(batches) > 0 {
		result = i.sink.AddLogs(ctx, batches)
	}

	i.record(ctx, telemetry.SignalLogs, result, rejections)

	resp := &collectorlogsv1.ExportLogsServiceResponse{}
	if !rejections.Empty() {
		resp.PartialSuccess = &collectorlogsv1.ExportLogsPartialSuccess{
			RejectedLogRecords: rejections.Count,
			ErrorMessage:       rejections.Message,
		}
	}

	return resp
}

// ExportMetrics stores the data points of req.
func (i *Ingester) ExportMetrics(
	ctx context.Context, req *collectormetricsv1.ExportMetricsServiceRequest,
) *collectormetricsv1.ExportMetricsServiceResponse {
	batches, rejections := otelconv.ConvertMetrics(req, i.limits)

	var result telemetry.AddResult
	if len(batches) > 0 {
		result = i.sink.AddMetrics(ctx, batches)
	}

	i.record(ctx, telemetry.SignalMetrics, result, rejections)

	resp := &collectormetricsv1.ExportMetricsServiceResponse{}
	if !rejections.Empty() {
		resp.PartialSuccess = &collectormetricsv1.ExportMetricsPartialSuccess{
			RejectedDataPoints: rejections.Count,
			ErrorMessage:       rejections.Message,
		}
	}

	return resp
}

func (i *Ingester) record(ctx context.Context, signal telemetry.Signal, result telemetry.AddResult, rejections otelconv.Rejections) {
	telemetry.RecordRejected(ctx, signal, rejections.Count)

	event := i.logger.Debug()
	if !rejections.Empty() {
		event = i.logger.Warn().Str("reason", rejections.Message)
	}

	event.
		Str("signal", string(signal)).
		Int("accepted", result.Accepted).
		Int64("rejected", rejections.Count).
		Int("evicted", result.Evicted).
		Msg("Ingested export request")
}
