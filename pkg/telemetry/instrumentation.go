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

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName              = "otelhub.telemetry"
	metricIngestedTotal    = "otelhub_ingested_records_total"
	metricRejectedTotal    = "otelhub_rejected_records_total"
	metricEvictedTotal     = "otelhub_evicted_records_total"
	metricDroppedTotal     = "otelhub_subscription_dropped_total"
	metricSubscriptionsNow = "otelhub_subscriptions"
)

var (
	// instrumentation handles are cached globally to avoid re-registering OTEL instruments on every call.
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	ingestedCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	rejectedCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	evictedCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	droppedCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	subscriptionsGauge metric.Int64UpDownCounter
)

func initMeter() {
	meter := otel.Meter(meterName)

	counter, err := meter.Int64Counter(
		metricIngestedTotal,
		metric.WithDescription("Telemetry records accepted into the in-memory stores"),
	)
	if err != nil {
		otel.Handle(err)
	}
	ingestedCounter = counter

	rejected, err := meter.Int64Counter(
		metricRejectedTotal,
		metric.WithDescription("Telemetry records rejected by validation during ingestion"),
	)
	if err != nil {
		otel.Handle(err)
	}
	rejectedCounter = rejected

	evicted, err := meter.Int64Counter(
		metricEvictedTotal,
		metric.WithDescription("Telemetry records evicted to stay within capacity limits"),
	)
	if err != nil {
		otel.Handle(err)
	}
	evictedCounter = evicted

	dropped, err := meter.Int64Counter(
		metricDroppedTotal,
		metric.WithDescription("Change notifications dropped because a subscriber fell behind"),
	)
	if err != nil {
		otel.Handle(err)
	}
	droppedCounter = dropped

	gauge, err := meter.Int64UpDownCounter(
		metricSubscriptionsNow,
		metric.WithDescription("Active live-tail subscriptions"),
	)
	if err != nil {
		otel.Handle(err)
	}
	subscriptionsGauge = gauge
}

func signalAttr(signal Signal) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("signal", string(signal)))
}

// RecordIngested counts records accepted for a signal.
func RecordIngested(ctx context.Context, signal Signal, count int) {
	if count <= 0 {
		return
	}

	meterOnce.Do(initMeter)
	if ingestedCounter == nil {
		return
	}

	ingestedCounter.Add(ctx, int64(count), signalAttr(signal))
}

// RecordRejected counts records rejected during conversion.
func RecordRejected(ctx context.Context, signal Signal, count int64) {
	if count <= 0 {
		return
	}

	meterOnce.Do(initMeter)
	if rejectedCounter == nil {
		return
	}

	rejectedCounter.Add(ctx, count, signalAttr(signal))
}

func recordEvicted(ctx context.Context, signal Signal, count int) {
	if count <= 0 {
		return
	}

	meterOnce.Do(initMeter)
	if evictedCounter == nil {
		return
	}

	evictedCounter.Add(ctx, int64(count), signalAttr(signal))
}

func recordDropped(count int64) {
	meterOnce.Do(initMeter)
	if droppedCounter == nil {
		return
	}

	droppedCounter.Add(context.Background(), count)
}

func recordSubscriptions(delta int64) {
	meterOnce.Do(initMeter)
	if subscriptionsGauge == nil {
		return
	}

	subscriptionsGauge.Add(context.Background(), delta)
}
