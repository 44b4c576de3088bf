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
	"google.golang.org/grpc"
)

// TraceService implements the OTLP trace collector service.
type TraceService struct {
	collectortracev1.UnimplementedTraceServiceServer
	ingester *Ingester
}

func (s *TraceService) Export(
	ctx context.Context, req *collectortracev1.ExportTraceServiceRequest,
) (*collectortracev1.ExportTraceServiceResponse, error) {
	return s.ingester.ExportTraces(ctx, req), nil
}

// LogsService implements the OTLP logs collector service.
type LogsService struct {
	collectorlogsv1.UnimplementedLogsServiceServer
	ingester *Ingester
}

func (s *LogsService) Export(
	ctx context.Context, req *collectorlogsv1.ExportLogsServiceRequest,
) (*collectorlogsv1.ExportLogsServiceResponse, error) {
	return s.ingester.ExportLogs(ctx, req), nil
}

// MetricsService implements the OTLP metrics collector service.
type MetricsService struct {
	collectormetricsv1.UnimplementedMetricsServiceServer
	ingester *Ingester
}

func (s *MetricsService) Export(
	ctx context.Context, req *collectormetricsv1.ExportMetricsServiceRequest,
) (*collectormetricsv1.ExportMetricsServiceResponse, error) {
	return s.ingester.ExportMetrics(ctx, req), nil
}

// RegisterGRPC registers the three OTLP collector services.
func (i *Ingester) RegisterGRPC(registrar grpc.ServiceRegistrar) {
	collectortracev1.RegisterTraceServiceServer(registrar, &TraceService{ingester: i})
	collectorlogsv1.RegisterLogsServiceServer(registrar, &LogsService{ingester: i})
	collectormetricsv1.RegisterMetricsServiceServer(registrar, &MetricsService{ingester: i})
}
