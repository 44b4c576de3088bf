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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

const (
	defaultMaxPullMessages = 50
	defaultPullExpiry      = 2 * time.Second
	defaultAckWait         = 30 * time.Second
	defaultMaxDeliver      = 3
	fetchRetryDelay        = time.Second
	connectRetryDelay      = 2 * time.Second
	maxConnectRetryDelay   = 30 * time.Second

	headerContentType = "Content-Type"
)

// NATSConfig configures the JetStream ingestion adapter. The last token of a
// message subject (traces, logs or metrics) selects the payload type.
type NATSConfig struct {
	Enabled  bool     `json:"enabled"`
	URL      string   `json:"url"`
	Stream   string   `json:"stream"`
	Consumer string   `json:"consumer"`
	Subjects []string `json:"subjects"`
}

// DefaultNATSConfig returns a disabled configuration with the usual names filled in.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:      nats.DefaultURL,
		Stream:   "OTLP",
		Consumer: "otelhub",
		Subjects: []string{"otlp.traces", "otlp.logs", "otlp.metrics"},
	}
}

// Validate checks the configuration when the adapter is enabled.
func (c *NATSConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error

	if c.URL == "" || c.Stream == "" {
		errs = append(errs, ErrNATSNotConfigured)
	}

	if c.Consumer == "" {
		errs = append(errs, fmt.Errorf("%w: consumer name is required", ErrNATSNotConfigured))
	}

	if len(c.Subjects) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one subject is required", ErrNATSNotConfigured))
	}

	return errors.Join(errs...)
}

// NATSConsumer pulls OTLP payloads from a JetStream stream.
type NATSConsumer struct {
	ingester   *Ingester
	cfg        NATSConfig
	logger     logger.Logger
	retryDelay time.Duration
}

// NewNATSConsumer creates the consumer. Run connects and processes messages.
func NewNATSConsumer(ingester *Ingester, cfg NATSConfig, log logger.Logger) *NATSConsumer {
	return &NATSConsumer{ingester: ingester, cfg: cfg, logger: log, retryDelay: connectRetryDelay}
}

// Run connects to NATS, ensures the stream and durable consumer exist and
// processes messages until ctx is cancelled. Connection and setup failures are
// logged and retried with backoff; Run only returns once ctx is done.
func (c *NATSConsumer) Run(ctx context.Context) error {
	delay := c.retryDelay

	for {
		err := c.runOnce(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		c.logger.Warn().
			Err(err).
			Str("url", c.cfg.URL).
			Dur("retry_in", delay).
			Msg("NATS OTLP consumer unavailable, retrying")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay = min(delay*2, maxConnectRetryDelay)
	}
}

func (c *NATSConsumer) runOnce(ctx context.Context) error {
	nc, err := nats.Connect(c.cfg.URL, nats.Name("otelhub"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumer, err := c.ensureConsumer(ctx, js)
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("stream_name", c.cfg.Stream).
		Str("consumer_name", c.cfg.Consumer).
		Strs("subjects", c.cfg.Subjects).
		Msg("NATS OTLP consumer started")

	c.processMessages(ctx, consumer)

	return nil
}

func (c *NATSConsumer) ensureConsumer(ctx context.Context, js jetstream.JetStream) (jetstream.Consumer, error) {
	_, err := js.Stream(ctx, c.cfg.Stream)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     c.cfg.Stream,
			Subjects: c.cfg.Subjects,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", c.cfg.Stream, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", c.cfg.Stream, err)
	}

	consumer, err := js.Consumer(ctx, c.cfg.Stream, c.cfg.Consumer)
	if err == nil {
		return consumer, nil
	}

	cfg := jetstream.ConsumerConfig{
		Durable:       c.cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       defaultAckWait,
		MaxDeliver:    defaultMaxDeliver,
		MaxAckPending: 1000,
	}

	if len(c.cfg.Subjects) == 1 {
		cfg.FilterSubject = c.cfg.Subjects[0]
	} else {
		cfg.FilterSubjects = c.cfg.Subjects
	}

	consumer, err = js.CreateConsumer(ctx, c.cfg.Stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	return consumer, nil
}

func (c *NATSConsumer) processMessages(ctx context.Context, consumer jetstream.Consumer) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Stopping NATS OTLP consumer")
			return
		default:
		}

		batch, err := consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(defaultPullExpiry))
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to fetch messages")

			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}

			continue
		}

		for msg := range batch.Messages() {
			c.HandleMessage(ctx, msg)
		}

		if fetchErr := batch.Error(); fetchErr != nil && !errors.Is(fetchErr, nats.ErrTimeout) {
			c.logger.Debug().Err(fetchErr).Msg("Fetch completed with error")
		}
	}
}

// HandleMessage decodes and stores one message. Undecodable messages are
// terminated so they are never redelivered.
func (c *NATSConsumer) HandleMessage(ctx context.Context, msg jetstream.Msg) {
	if err := c.ingest(ctx, msg); err != nil {
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Dropping undecodable OTLP message")

		if termErr := msg.Term(); termErr != nil {
			c.logger.Debug().Err(termErr).Msg("Failed to terminate message")
		}

		return
	}

	if err := msg.Ack(); err != nil {
		c.logger.Debug().Err(err).Str("subject", msg.Subject()).Msg("Failed to ack message")
	}
}

func (c *NATSConsumer) ingest(ctx context.Context, msg jetstream.Msg) error {
	signal, err := signalFromSubject(msg.Subject())
	if err != nil {
		return err
	}

	enc := EncodingProtobuf
	if headers := msg.Headers(); headers != nil {
		if contentType := headers.Get(headerContentType); contentType != "" {
			if enc, err = EncodingFromContentType(contentType); err != nil {
				return err
			}
		}
	}

	switch signal {
	case telemetry.SignalTraces:
		req, err := DecodeTraces(msg.Data(), enc)
		if err != nil {
			return err
		}

		c.ingester.ExportTraces(ctx, req)
	case telemetry.SignalLogs:
		req, err := DecodeLogs(msg.Data(), enc)
		if err != nil {
			return err
		}

		c.ingester.ExportLogs(ctx, req)
	case telemetry.SignalMetrics:
		req, err := DecodeMetrics(msg.Data(), enc)
		if err != nil {
			return err
		}

		c.ingester.ExportMetrics(ctx, req)
	case telemetry.SignalResources:
		return fmt.Errorf("%w: %s", ErrUnknownSubject, msg.Subject())
	}

	return nil
}

func signalFromSubject(subject string) (telemetry.Signal, error) {
	token := subject
	if idx := strings.LastIndexByte(subject, '.'); idx >= 0 {
		token = subject[idx+1:]
	}

	switch telemetry.Signal(token) {
	case telemetry.SignalTraces, telemetry.SignalLogs, telemetry.SignalMetrics:
		return telemetry.Signal(token), nil
	case telemetry.SignalResources:
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
}
