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

package logger

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// meterProvider tracks the global metrics provider so we can shut it down cleanly.
//
//nolint:gochecknoglobals // global state is required for coordinated shutdown
var meterProvider *sdkmetric.MeterProvider

//nolint:gochecknoglobals // scrape handler bound to the provider's registry
var metricsHandler http.Handler

// guard concurrent initialisation of the metrics provider.
//
//nolint:gochecknoglobals // package-level guard for init logic
var meterMu sync.Mutex

// MetricsConfig captures what is required to expose in-process instruments.
type MetricsConfig struct {
	// Registry receives the exporter's collector. A fresh registry is
	// created when nil so repeated initialisation in tests does not collide
	// with the default registerer.
	Registry *prometheus.Registry
}

// InitializeMetrics installs a global MeterProvider backed by a Prometheus
// reader and returns the scrape handler for it.
//
// It is safe to call this multiple times; subsequent calls return a handler
// for the already initialised provider.
func InitializeMetrics(_ context.Context, config MetricsConfig) (http.Handler, error) {
	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider != nil {
		return metricsHandler, nil
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	otel.SetMeterProvider(provider)
	meterProvider = provider
	metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return metricsHandler, nil
}

// ShutdownMetrics flushes and stops the metrics pipeline.
func ShutdownMetrics(ctx context.Context) error {
	meterMu.Lock()
	defer meterMu.Unlock()

	if meterProvider == nil {
		return nil
	}

	if err := meterProvider.Shutdown(ctx); err != nil {
		return err
	}

	meterProvider = nil
	metricsHandler = nil

	return nil
}
