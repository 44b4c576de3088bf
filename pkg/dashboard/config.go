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

package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/otelhub/pkg/ingest"
	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/models"
	"github.com/carverauto/otelhub/pkg/query"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

var errInvalidConfig = errors.New("invalid configuration")

const (
	defaultGRPCAddr = ":4317"
	defaultHTTPAddr = ":4318"
	defaultAPIAddr  = ":18888"
)

// Config is the complete service configuration.
type Config struct {
	Logging       *logger.Config     `json:"logging"`
	OTLP          OTLPConfig         `json:"otlp"`
	API           APIConfig          `json:"api"`
	Limits        telemetry.Limits   `json:"limits"`
	Subscriptions SubscriptionConfig `json:"subscriptions"`
	NATS          ingest.NATSConfig  `json:"nats"`
}

// OTLPConfig configures the OTLP/gRPC and OTLP/HTTP receivers.
type OTLPConfig struct {
	GRPCAddr        string            `json:"grpc_addr"`
	HTTPAddr        string            `json:"http_addr"`
	MaxRequestBytes int64             `json:"max_request_bytes"`
	CORS            models.CORSConfig `json:"cors"`
}

// APIConfig configures the query listener.
type APIConfig struct {
	Addr           string            `json:"addr"`
	CORS           models.CORSConfig `json:"cors"`
	MCPEnabled     bool              `json:"mcp_enabled"`
	MetricsEnabled bool              `json:"metrics_enabled"`
}

// SubscriptionConfig sizes live-tail subscriptions.
type SubscriptionConfig struct {
	BufferSize        int             `json:"buffer_size"`
	HeartbeatInterval logger.Duration `json:"heartbeat_interval"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Logging: logger.DefaultConfig(),
		OTLP: OTLPConfig{
			GRPCAddr:        defaultGRPCAddr,
			HTTPAddr:        defaultHTTPAddr,
			MaxRequestBytes: ingest.DefaultMaxRequestBytes,
		},
		API: APIConfig{
			Addr:           defaultAPIAddr,
			MCPEnabled:     true,
			MetricsEnabled: true,
		},
		Limits: telemetry.DefaultLimits(),
		Subscriptions: SubscriptionConfig{
			BufferSize:        telemetry.DefaultSubscriptionBuffer,
			HeartbeatInterval: logger.Duration(query.DefaultHeartbeatInterval),
		},
		NATS: ingest.DefaultNATSConfig(),
	}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	var errs []error

	if c.OTLP.GRPCAddr == "" {
		errs = append(errs, fmt.Errorf("%w: otlp.grpc_addr is required", errInvalidConfig))
	}

	if c.OTLP.HTTPAddr == "" {
		errs = append(errs, fmt.Errorf("%w: otlp.http_addr is required", errInvalidConfig))
	}

	if c.API.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: api.addr is required", errInvalidConfig))
	}

	if c.OTLP.MaxRequestBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w: otlp.max_request_bytes must be positive", errInvalidConfig))
	}

	if c.Subscriptions.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: subscriptions.buffer_size must be positive", errInvalidConfig))
	}

	if time.Duration(c.Subscriptions.HeartbeatInterval) <= 0 {
		errs = append(errs, fmt.Errorf("%w: subscriptions.heartbeat_interval must be positive", errInvalidConfig))
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.NATS.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
