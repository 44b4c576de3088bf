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

// Package ingest decodes OTLP export requests arriving over gRPC, HTTP and
// NATS JetStream and hands normalized batches to a Sink.
package ingest

import (
	"context"

	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

//go:generate mockgen -destination=mock_sink.go -package=ingest github.com/carverauto/otelhub/pkg/ingest Sink

// Sink stores normalized telemetry. *telemetry.Repository implements it.
type Sink interface {
	AddTraces(ctx context.Context, batches []models.ResourceBatch[models.SpanRecord]) telemetry.AddResult
	AddLogs(ctx context.Context, batches []models.ResourceBatch[models.LogRecord]) telemetry.AddResult
	AddMetrics(ctx context.Context, batches []models.ResourceBatch[models.MetricRecord]) telemetry.AddResult
}
