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
	"strings"

	collectorlogsv1 "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	logsv1 "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/carverauto/otelhub/pkg/models"
)

// AttrEventName carries the event name on records that predate LogRecord.event_name.
const AttrEventName = "event.name"

// ConvertLogs normalizes an export request. Records with malformed correlation
// ids are counted in the returned Rejections.
func ConvertLogs(
	req *collectorlogsv1.ExportLogsServiceRequest, limits Limits,
) ([]models.ResourceBatch[models.LogRecord], Rejections) {
	var (
		batches    []models.ResourceBatch[models.LogRecord]
		rejections Rejections
	)

	for _, rl := range req.GetResourceLogs() {
		batch := models.ResourceBatch[models.LogRecord]{
			Resource: ResolveResource(rl.GetResource(), limits),
		}

		for _, sl := range rl.GetScopeLogs() {
			scope := models.ScopeBatch[models.LogRecord]{
				Scope: ConvertScope(sl.GetScope(), limits),
			}

			for _, lr := range sl.GetLogRecords() {
				record, err := ConvertLogRecord(lr, limits)
				if err != nil {
					rejections.add(1, err)
					continue
				}

				scope.Items = append(scope.Items, record)
			}

			if len(scope.Items) > 0 {
				batch.Scopes = append(batch.Scopes, scope)
			}
		}

		if len(batch.Scopes) > 0 {
			batches = append(batches, batch)
		}
	}

	return batches, rejections
}

// ConvertLogRecord validates and normalizes a single log record.
func ConvertLogRecord(lr *logsv1.LogRecord, limits Limits) (models.LogRecord, error) {
	traceID, err := optionalID(lr.GetTraceId(), traceIDSize, ErrInvalidTraceID)
	if err != nil {
		return models.LogRecord{}, err
	}

	spanID, err := optionalID(lr.GetSpanId(), spanIDSize, ErrInvalidSpanID)
	if err != nil {
		return models.LogRecord{}, err
	}

	timestamp := unixNano(lr.GetTimeUnixNano())
	observed := unixNano(lr.GetObservedTimeUnixNano())

	if timestamp.IsZero() {
		timestamp = observed
	}

	if observed.IsZero() {
		observed = timestamp
	}

	attrs := ConvertAttributes(lr.GetAttributes(), limits)

	eventName := strings.TrimSpace(lr.GetEventName())
	if eventName == "" {
		eventName, _ = models.AttributeValue(attrs, AttrEventName)
	}

	severityNumber := int32(lr.GetSeverityNumber())

	return models.LogRecord{
		Timestamp:         timestamp,
		ObservedTimestamp: observed,
		Severity:          SeverityFromOTLP(severityNumber, lr.GetSeverityText()),
		SeverityNumber:    severityNumber,
		SeverityText:      lr.GetSeverityText(),
		Message:           FlattenValue(lr.GetBody()),
		EventName:         eventName,
		TraceID:           traceID,
		SpanID:            spanID,
		Flags:             lr.GetFlags(),
		Attributes:        attrs,
	}, nil
}
