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

	collectormetricsv1 "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricsv1 "go.opentelemetry.io/proto/otlp/metrics/v1"

	"github.com/carverauto/otelhub/pkg/models"
)

// ConvertMetrics normalizes an export request. Rejections are counted in data points.
func ConvertMetrics(
	req *collectormetricsv1.ExportMetricsServiceRequest, limits Limits,
) ([]models.ResourceBatch[models.MetricRecord], Rejections) {
	var (
		batches    []models.ResourceBatch[models.MetricRecord]
		rejections Rejections
	)

	for _, rm := range req.GetResourceMetrics() {
		batch := models.ResourceBatch[models.MetricRecord]{
			Resource: ResolveResource(rm.GetResource(), limits),
		}

		for _, sm := range rm.GetScopeMetrics() {
			scope := models.ScopeBatch[models.MetricRecord]{
				Scope: ConvertScope(sm.GetScope(), limits),
			}

			for _, metric := range sm.GetMetrics() {
				record, err := ConvertMetric(metric, limits)
				if err != nil {
					rejections.add(int64(DataPointCount(metric)), err)
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

// DataPointCount returns the number of data points carried by a metric.
func DataPointCount(metric *metricsv1.Metric) int {
	switch data := metric.GetData().(type) {
	case *metricsv1.Metric_Gauge:
		return len(data.Gauge.GetDataPoints())
	case *metricsv1.Metric_Sum:
		return len(data.Sum.GetDataPoints())
	case *metricsv1.Metric_Histogram:
		return len(data.Histogram.GetDataPoints())
	case *metricsv1.Metric_ExponentialHistogram:
		return len(data.ExponentialHistogram.GetDataPoints())
	case *metricsv1.Metric_Summary:
		return len(data.Summary.GetDataPoints())
	default:
		return 0
	}
}

// ConvertMetric routes a metric by its payload variant.
func ConvertMetric(metric *metricsv1.Metric, limits Limits) (models.MetricRecord, error) {
	if metric.GetName() == "" {
		return models.MetricRecord{}, ErrMissingMetricName
	}

	record := models.MetricRecord{
		Name:        metric.GetName(),
		Unit:        metric.GetUnit(),
		Description: metric.GetDescription(),
	}

	switch data := metric.GetData().(type) {
	case *metricsv1.Metric_Gauge:
		record.Kind = models.InstrumentKindGauge
		record.Points = convertNumberPoints(data.Gauge.GetDataPoints(), limits)
	case *metricsv1.Metric_Sum:
		record.Kind = models.InstrumentKindCounter
		record.Temporality = convertTemporality(data.Sum.GetAggregationTemporality())
		record.Monotonic = data.Sum.GetIsMonotonic()
		record.Points = convertNumberPoints(data.Sum.GetDataPoints(), limits)
	case *metricsv1.Metric_Histogram:
		record.Kind = models.InstrumentKindHistogram
		record.Temporality = convertTemporality(data.Histogram.GetAggregationTemporality())
		record.Points = convertHistogramPoints(data.Histogram.GetDataPoints(), limits)
	case *metricsv1.Metric_ExponentialHistogram:
		record.Kind = models.InstrumentKindHistogram
		record.Temporality = convertTemporality(data.ExponentialHistogram.GetAggregationTemporality())
		record.Points = convertExponentialPoints(data.ExponentialHistogram.GetDataPoints(), limits)
	case *metricsv1.Metric_Summary:
		return models.MetricRecord{}, ErrUnsupportedMetric
	default:
		return models.MetricRecord{}, ErrMissingMetricPayload
	}

	return record, nil
}

func convertTemporality(t metricsv1.AggregationTemporality) models.AggregationTemporality {
	switch t {
	case metricsv1.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA:
		return models.TemporalityDelta
	case metricsv1.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE:
		return models.TemporalityCumulative
	case metricsv1.AggregationTemporality_AGGREGATION_TEMPORALITY_UNSPECIFIED:
		return models.TemporalityUnspecified
	default:
		return models.TemporalityUnspecified
	}
}

func convertNumberPoints(points []*metricsv1.NumberDataPoint, limits Limits) []models.DataPoint {
	out := make([]models.DataPoint, 0, len(points))

	for _, p := range points {
		var value float64

		switch v := p.GetValue().(type) {
		case *metricsv1.NumberDataPoint_AsDouble:
			value = v.AsDouble
		case *metricsv1.NumberDataPoint_AsInt:
			value = float64(v.AsInt)
		}

		out = append(out, models.DataPoint{
			StartTime:  unixNano(p.GetStartTimeUnixNano()),
			Time:       unixNano(p.GetTimeUnixNano()),
			Attributes: ConvertAttributes(p.GetAttributes(), limits),
			Value:      value,
			Exemplars:  convertExemplars(p.GetExemplars(), limits),
		})
	}

	return out
}

func convertHistogramPoints(points []*metricsv1.HistogramDataPoint, limits Limits) []models.DataPoint {
	out := make([]models.DataPoint, 0, len(points))

	for _, p := range points {
		hist := &models.HistogramValue{
			Count:          p.GetCount(),
			Sum:            p.GetSum(),
			Min:            copyFloat(p.Min),
			Max:            copyFloat(p.Max),
			ExplicitBounds: append([]float64(nil), p.GetExplicitBounds()...),
			BucketCounts:   append([]uint64(nil), p.GetBucketCounts()...),
		}

		out = append(out, models.DataPoint{
			StartTime:  unixNano(p.GetStartTimeUnixNano()),
			Time:       unixNano(p.GetTimeUnixNano()),
			Attributes: ConvertAttributes(p.GetAttributes(), limits),
			Histogram:  hist,
			Exemplars:  convertExemplars(p.GetExemplars(), limits),
		})
	}

	return out
}

func convertExponentialPoints(points []*metricsv1.ExponentialHistogramDataPoint, limits Limits) []models.DataPoint {
	out := make([]models.DataPoint, 0, len(points))

	for _, p := range points {
		bounds, counts := ExponentialToExplicit(p.GetScale(), p.GetZeroCount(), p.GetPositive(), p.GetNegative())

		out = append(out, models.DataPoint{
			StartTime:  unixNano(p.GetStartTimeUnixNano()),
			Time:       unixNano(p.GetTimeUnixNano()),
			Attributes: ConvertAttributes(p.GetAttributes(), limits),
			Histogram: &models.HistogramValue{
				Count:          p.GetCount(),
				Sum:            p.GetSum(),
				Min:            copyFloat(p.Min),
				Max:            copyFloat(p.Max),
				ExplicitBounds: bounds,
				BucketCounts:   counts,
			},
			Exemplars: convertExemplars(p.GetExemplars(), limits),
		})
	}

	return out
}

// ExponentialToExplicit rewrites exponential buckets as explicit upper bounds.
// The result always has one more count than bounds, with an empty overflow bucket.
func ExponentialToExplicit(
	scale int32, zeroCount uint64, positive, negative *metricsv1.ExponentialHistogramDataPoint_Buckets,
) ([]float64, []uint64) {
	base := math.Exp2(math.Exp2(-float64(scale)))

	var (
		bounds []float64
		counts []uint64
	)

	negCounts := negative.GetBucketCounts()
	if len(negCounts) > 0 {
		offset := int(negative.GetOffset())
		lowest := offset + len(negCounts)

		bounds = append(bounds, -math.Pow(base, float64(lowest)))
		counts = append(counts, 0)

		for i := len(negCounts) - 1; i >= 0; i-- {
			bounds = append(bounds, -math.Pow(base, float64(offset+i)))
			counts = append(counts, negCounts[i])
		}
	}

	bounds = append(bounds, 0)
	counts = append(counts, zeroCount)

	offset := int(positive.GetOffset())
	for i, c := range positive.GetBucketCounts() {
		bounds = append(bounds, math.Pow(base, float64(offset+i+1)))
		counts = append(counts, c)
	}

	counts = append(counts, 0)

	return bounds, counts
}

func convertExemplars(exemplars []*metricsv1.Exemplar, limits Limits) []models.Exemplar {
	if len(exemplars) == 0 {
		return nil
	}

	out := make([]models.Exemplar, 0, len(exemplars))

	for _, e := range exemplars {
		var value float64

		switch v := e.GetValue().(type) {
		case *metricsv1.Exemplar_AsDouble:
			value = v.AsDouble
		case *metricsv1.Exemplar_AsInt:
			value = float64(v.AsInt)
		}

		traceID, _ := optionalID(e.GetTraceId(), traceIDSize, ErrInvalidTraceID)
		spanID, _ := optionalID(e.GetSpanId(), spanIDSize, ErrInvalidSpanID)

		out = append(out, models.Exemplar{
			Time:       unixNano(e.GetTimeUnixNano()),
			Value:      value,
			TraceID:    traceID,
			SpanID:     spanID,
			Attributes: ConvertAttributes(e.GetFilteredAttributes(), limits),
		})
	}

	return out
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}

	v := *f

	return &v
}
