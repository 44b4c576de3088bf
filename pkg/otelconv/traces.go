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
	"encoding/hex"

	collectortracev1 "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/carverauto/otelhub/pkg/models"
)

// ConvertTraces normalizes an export request. Spans failing id validation are
// counted in the returned Rejections and left out of the batches.
func ConvertTraces(
	req *collectortracev1.ExportTraceServiceRequest, limits Limits,
) ([]models.ResourceBatch[models.SpanRecord], Rejections) {
	var (
		batches    []models.ResourceBatch[models.SpanRecord]
		rejections Rejections
	)

	for _, rs := range req.GetResourceSpans() {
		batch := models.ResourceBatch[models.SpanRecord]{
			Resource: ResolveResource(rs.GetResource(), limits),
		}

		for _, ss := range rs.GetScopeSpans() {
			scope := models.ScopeBatch[models.SpanRecord]{
				Scope: ConvertScope(ss.GetScope(), limits),
			}

			for _, span := range ss.GetSpans() {
				record, err := ConvertSpan(span, limits)
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

// ConvertSpan validates and normalizes a single span.
func ConvertSpan(span *tracev1.Span, limits Limits) (models.SpanRecord, error) {
	traceID, err := requiredID(span.GetTraceId(), traceIDSize, ErrInvalidTraceID)
	if err != nil {
		return models.SpanRecord{}, err
	}

	spanID, err := requiredID(span.GetSpanId(), spanIDSize, ErrInvalidSpanID)
	if err != nil {
		return models.SpanRecord{}, err
	}

	parentID, err := optionalID(span.GetParentSpanId(), spanIDSize, ErrInvalidParentSpanID)
	if err != nil {
		return models.SpanRecord{}, err
	}

	start := unixNano(span.GetStartTimeUnixNano())
	end := unixNano(span.GetEndTimeUnixNano())

	if start.IsZero() {
		start = end
	}

	if !end.IsZero() && end.Before(start) {
		end = start
	}

	record := models.SpanRecord{
		TraceID:       traceID,
		SpanID:        spanID,
		ParentSpanID:  parentID,
		Name:          span.GetName(),
		Kind:          convertSpanKind(span.GetKind()),
		StartTime:     start,
		EndTime:       end,
		Status:        convertStatus(span.GetStatus().GetCode()),
		StatusMessage: span.GetStatus().GetMessage(),
		TraceState:    span.GetTraceState(),
		Attributes:    ConvertAttributes(span.GetAttributes(), limits),
	}

	events := span.GetEvents()
	if limits.MaxSpanEventCount > 0 && len(events) > limits.MaxSpanEventCount {
		events = events[:limits.MaxSpanEventCount]
	}

	for _, event := range events {
		record.Events = append(record.Events, models.SpanEvent{
			Name:       event.GetName(),
			Time:       unixNano(event.GetTimeUnixNano()),
			Attributes: ConvertAttributes(event.GetAttributes(), limits),
		})
	}

	for _, link := range span.GetLinks() {
		record.Links = append(record.Links, models.SpanLink{
			TraceID:    hex.EncodeToString(link.GetTraceId()),
			SpanID:     hex.EncodeToString(link.GetSpanId()),
			TraceState: link.GetTraceState(),
			Attributes: ConvertAttributes(link.GetAttributes(), limits),
		})
	}

	return record, nil
}

func convertSpanKind(kind tracev1.Span_SpanKind) models.SpanKind {
	switch kind {
	case tracev1.Span_SPAN_KIND_SERVER:
		return models.SpanKindServer
	case tracev1.Span_SPAN_KIND_CLIENT:
		return models.SpanKindClient
	case tracev1.Span_SPAN_KIND_PRODUCER:
		return models.SpanKindProducer
	case tracev1.Span_SPAN_KIND_CONSUMER:
		return models.SpanKindConsumer
	case tracev1.Span_SPAN_KIND_INTERNAL, tracev1.Span_SPAN_KIND_UNSPECIFIED:
		return models.SpanKindInternal
	default:
		return models.SpanKindInternal
	}
}

func convertStatus(code tracev1.Status_StatusCode) models.SpanStatus {
	switch code {
	case tracev1.Status_STATUS_CODE_OK:
		return models.SpanStatusOK
	case tracev1.Status_STATUS_CODE_ERROR:
		return models.SpanStatusError
	case tracev1.Status_STATUS_CODE_UNSET:
		return models.SpanStatusUnset
	default:
		return models.SpanStatusUnset
	}
}
