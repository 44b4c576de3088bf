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

// Package telemetrytest builds repositories and normalized batches for tests
// of packages that read from a telemetry.Repository.
package telemetrytest

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

// BaseTime anchors every timestamp produced by this package.
var BaseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// NewRepository returns a repository with default limits and a fake clock at BaseTime.
func NewRepository(t testing.TB) *telemetry.Repository {
	t.Helper()

	repo, err := telemetry.NewRepository(
		telemetry.DefaultLimits(),
		logger.NewTestLogger(),
		telemetry.WithClock(clockwork.NewFakeClockAt(BaseTime)),
	)
	require.NoError(t, err)

	return repo
}

// Resource returns a resource record. An empty instance defaults to the name.
func Resource(name, instance string) models.ResourceRecord {
	if instance == "" {
		instance = name
	}

	return models.ResourceRecord{
		Name:       name,
		InstanceID: instance,
		Attributes: []models.KeyValue{{Key: "service.name", Value: name}},
	}
}

func TraceID(n int) string {
	return fmt.Sprintf("%032x", n)
}

func SpanID(n int) string {
	return fmt.Sprintf("%016x", n)
}

// Span returns a one second span. A zero parent makes it a root.
func Span(trace, id, parent int, offset time.Duration) models.SpanRecord {
	rec := models.SpanRecord{
		TraceID:   TraceID(trace),
		SpanID:    SpanID(id),
		Name:      fmt.Sprintf("span-%d", id),
		StartTime: BaseTime.Add(offset),
		EndTime:   BaseTime.Add(offset + time.Second),
	}

	if parent > 0 {
		rec.ParentSpanID = SpanID(parent)
	}

	return rec
}

func SpanBatch(res models.ResourceRecord, spans ...models.SpanRecord) []models.ResourceBatch[models.SpanRecord] {
	return []models.ResourceBatch[models.SpanRecord]{{
		Resource: res,
		Scopes:   []models.ScopeBatch[models.SpanRecord]{{Scope: models.Scope{Name: "lib"}, Items: spans}},
	}}
}

// LogBatch returns Information records one second apart.
func LogBatch(res models.ResourceRecord, messages ...string) []models.ResourceBatch[models.LogRecord] {
	items := make([]models.LogRecord, 0, len(messages))
	for i, msg := range messages {
		items = append(items, models.LogRecord{
			Timestamp: BaseTime.Add(time.Duration(i) * time.Second),
			Severity:  models.SeverityInformation,
			Message:   msg,
		})
	}

	return []models.ResourceBatch[models.LogRecord]{{
		Resource: res,
		Scopes:   []models.ScopeBatch[models.LogRecord]{{Scope: models.Scope{Name: "app"}, Items: items}},
	}}
}

// GaugeBatch returns one gauge with a point per value, one second apart.
func GaugeBatch(res models.ResourceRecord, name string, values ...float64) []models.ResourceBatch[models.MetricRecord] {
	points := make([]models.DataPoint, 0, len(values))
	for i, v := range values {
		points = append(points, models.DataPoint{
			Time:       BaseTime.Add(time.Duration(i) * time.Second),
			Value:      v,
			Attributes: []models.KeyValue{{Key: "host", Value: fmt.Sprintf("h%d", i%2)}},
		})
	}

	return []models.ResourceBatch[models.MetricRecord]{{
		Resource: res,
		Scopes: []models.ScopeBatch[models.MetricRecord]{{
			Scope: models.Scope{Name: "meter"},
			Items: []models.MetricRecord{{Name: name, Unit: "ms", Kind: models.InstrumentKindGauge, Points: points}},
		}},
	}}
}
