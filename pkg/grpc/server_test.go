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

package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/carverauto/otelhub/pkg/logger"
)

type pingServer interface {
	Ping(ctx context.Context, in *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error)
}

type panicking struct{}

func (panicking) Ping(context.Context, *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	panic("boom")
}

var pingDesc = grpc.ServiceDesc{
	ServiceName: "otelhub.test.Ping",
	HandlerType: (*pingServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Ping",
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(healthpb.HealthCheckRequest)
			if err := dec(in); err != nil {
				return nil, err
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/otelhub.test.Ping/Ping"}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return srv.(pingServer).Ping(ctx, req.(*healthpb.HealthCheckRequest))
			}

			return interceptor(ctx, in, info, handler)
		},
	}},
}

func startServer(t *testing.T) (*Server, *grpc.ClientConn) {
	t.Helper()

	srv := NewServer("127.0.0.1:0", logger.NewTestLogger(), WithTelemetryDisabled())
	srv.RegisterService(&pingDesc, panicking{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, srv.Listen(ctx))

	done := make(chan error, 1)

	go func() { done <- srv.Start(ctx) }()

	conn, err := grpc.NewClient(srv.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()

		srv.Stop(context.Background())

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	return srv, conn
}

func TestRegisteredServicesReportServing(t *testing.T) {
	_, conn := startServer(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: "otelhub.test.Ping",
	})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRecoveryInterceptorReturnsInternal(t *testing.T) {
	_, conn := startServer(t)

	out := new(healthpb.HealthCheckResponse)
	err := conn.Invoke(context.Background(), "/otelhub.test.Ping/Ping", &healthpb.HealthCheckRequest{}, out)
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestStopMarksServicesNotServing(t *testing.T) {
	srv := NewServer("127.0.0.1:0", logger.NewTestLogger(), WithTelemetryDisabled())
	srv.RegisterService(&pingDesc, panicking{})

	srv.Stop(context.Background())

	resp, err := srv.GetHealthCheck().Check(context.Background(), &healthpb.HealthCheckRequest{Service: "otelhub.test.Ping"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
	assert.Nil(t, srv.Addr())
}

func TestRequestLoggerCarriesSpanContext(t *testing.T) {
	base := logger.NewTestLogger()
	assert.Same(t, base, requestLogger(context.Background(), base))

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "call")
	defer span.End()

	assert.NotSame(t, base, requestLogger(ctx, base))
}
