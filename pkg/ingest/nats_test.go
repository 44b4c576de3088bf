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
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	return runJetStreamServerOn(t, -1)
}

func runJetStreamServerOn(t *testing.T, port int) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      port,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server did not start")
	}

	t.Cleanup(srv.Shutdown)

	return srv
}

func TestNATSConsumerIngestsTraces(t *testing.T) {
	srv := runJetStreamServer(t)

	repo, err := telemetry.NewRepository(telemetry.DefaultLimits(), logger.NewTestLogger())
	require.NoError(t, err)

	cfg := DefaultNATSConfig()
	cfg.Enabled = true
	cfg.URL = srv.ClientURL()

	consumer := NewNATSConsumer(NewIngester(repo, repo.Limits().Normalization(), logger.NewTestLogger()), cfg, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- consumer.Run(ctx) }()

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := js.StreamInfo(cfg.Stream)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	binary, err := proto.Marshal(traceRequest("queue-worker", testSpan(1)))
	require.NoError(t, err)

	_, err = js.Publish("otlp.traces", binary)
	require.NoError(t, err)

	jsonMsg := nats.NewMsg("otlp.traces")
	jsonMsg.Header.Set(headerContentType, "application/json")
	jsonMsg.Data = []byte(myServiceTraces)
	_, err = js.PublishMsg(jsonMsg)
	require.NoError(t, err)

	_, err = js.Publish("otlp.logs", []byte{0xff, 0xff})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		page, err := repo.GetTraces(telemetry.TraceQuery{})
		return err == nil && page.TotalCount == 2
	}, 10*time.Second, 50*time.Millisecond)

	_, ok := repo.GetTrace("5b8efff798038103d269b633813fc60c")
	assert.True(t, ok)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNATSConsumerRetriesUntilServerIsReachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	repo, err := telemetry.NewRepository(telemetry.DefaultLimits(), logger.NewTestLogger())
	require.NoError(t, err)

	cfg := DefaultNATSConfig()
	cfg.Enabled = true
	cfg.URL = fmt.Sprintf("nats://127.0.0.1:%d", port)

	consumer := NewNATSConsumer(NewIngester(repo, repo.Limits().Normalization(), logger.NewTestLogger()), cfg, logger.NewTestLogger())
	consumer.retryDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- consumer.Run(ctx) }()

	// Nothing is listening yet; Run must keep retrying instead of returning.
	select {
	case err := <-done:
		t.Fatalf("consumer returned while server was down: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	srv := runJetStreamServerOn(t, port)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := nc.JetStream()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := js.StreamInfo(cfg.Stream)
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)

	binary, err := proto.Marshal(traceRequest("late-worker", testSpan(7)))
	require.NoError(t, err)

	_, err = js.Publish("otlp.traces", binary)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		page, err := repo.GetTraces(telemetry.TraceQuery{Resource: "late-worker"})
		return err == nil && page.TotalCount == 1
	}, 10*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNATSConsumerStopsCleanlyWhileUnreachable(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.Enabled = true
	cfg.URL = "nats://127.0.0.1:1"

	consumer := NewNATSConsumer(nil, cfg, logger.NewTestLogger())
	consumer.retryDelay = time.Millisecond

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, consumer.Run(ctx))
}
