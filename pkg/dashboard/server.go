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

// Package dashboard wires the telemetry repository to its ingestion and query
// listeners and runs them together.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	grpcstats "google.golang.org/grpc/stats"

	grpcserver "github.com/carverauto/otelhub/pkg/grpc"
	httpx "github.com/carverauto/otelhub/pkg/http"
	"github.com/carverauto/otelhub/pkg/ingest"
	"github.com/carverauto/otelhub/pkg/lifecycle"
	"github.com/carverauto/otelhub/pkg/logger"
	"github.com/carverauto/otelhub/pkg/mcp"
	"github.com/carverauto/otelhub/pkg/query"
	"github.com/carverauto/otelhub/pkg/telemetry"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	metricsPath       = "/metrics"
)

// Option customizes a Server.
type Option func(*Server)

// WithConsoleLogSource enables the console log MCP tool.
func WithConsoleLogSource(src mcp.ConsoleLogSource) Option {
	return func(s *Server) {
		s.console = src
	}
}

// Server owns the repository and every listener reading from or writing to it.
type Server struct {
	config   *Config
	repo     *telemetry.Repository
	ingester *ingest.Ingester
	tailer   *query.Tailer
	console  mcp.ConsoleLogSource
	logger   logger.Logger

	grpc     *grpcserver.Server
	otlpHTTP *http.Server
	apiHTTP  *http.Server
	nats     *ingest.NATSConsumer

	otlpListener   net.Listener
	apiListener    net.Listener
	metrics        bool
	tracerProvider *sdktrace.TracerProvider
}

func componentLogger(log logger.Logger, name string) logger.Logger {
	return lifecycle.WrapLogger(log.WithComponent(name))
}

// NewServer builds every component described by cfg. Nothing listens until Listen.
func NewServer(ctx context.Context, cfg *Config, log logger.Logger, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{config: cfg, logger: log}

	for _, opt := range opts {
		opt(s)
	}

	repo, err := telemetry.NewRepository(cfg.Limits, componentLogger(log, "repository"))
	if err != nil {
		return nil, err
	}

	s.repo = repo
	s.ingester = ingest.NewIngester(repo, cfg.Limits.Normalization(), componentLogger(log, "ingest"))
	s.tailer = query.NewTailer(
		repo,
		cfg.Subscriptions.BufferSize,
		time.Duration(cfg.Subscriptions.HeartbeatInterval),
		componentLogger(log, "tail"),
	)

	// Spans are never exported; they only give request logs trace and span ids.
	s.tracerProvider = sdktrace.NewTracerProvider()

	s.grpc = grpcserver.NewServer(
		cfg.OTLP.GRPCAddr,
		componentLogger(log, "grpc"),
		grpcserver.WithMaxRecvSize(int(cfg.OTLP.MaxRequestBytes)),
		grpcserver.WithTelemetryFilter(skipHealthChecks),
		grpcserver.WithTracerProvider(s.tracerProvider),
	)
	s.ingester.RegisterGRPC(s.grpc)
	query.NewWatchService(s.tailer).Register(s.grpc)

	s.otlpHTTP = s.newHTTPServer(ctx, s.otlpHandler())

	apiHandler, err := s.apiHandler(ctx)
	if err != nil {
		return nil, err
	}

	s.apiHTTP = s.newHTTPServer(ctx, apiHandler)

	if cfg.NATS.Enabled {
		s.nats = ingest.NewNATSConsumer(s.ingester, cfg.NATS, componentLogger(log, "nats"))
	}

	return s, nil
}

func skipHealthChecks(info *grpcstats.RPCTagInfo) bool {
	return !strings.HasPrefix(info.FullMethodName, "/grpc.health.v1.Health/")
}

// newHTTPServer ties request contexts to ctx so open streams end on shutdown.
func (s *Server) newHTTPServer(ctx context.Context, handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func (s *Server) otlpHandler() http.Handler {
	router := mux.NewRouter()
	ingest.NewHTTPHandler(s.ingester, s.config.OTLP.MaxRequestBytes, componentLogger(s.logger, "otlp-http")).
		Register(router)

	return httpx.CommonMiddleware(router, s.config.OTLP.CORS, s.logger)
}

func (s *Server) apiHandler(ctx context.Context) (http.Handler, error) {
	api := query.NewAPIServer(s.repo, s.tailer, s.config.API.CORS, componentLogger(s.logger, "api"))

	var opts []mcp.Option
	if s.console != nil {
		opts = append(opts, mcp.WithConsoleLogSource(s.console))
	}

	mcp.NewMCPServer(s.repo, componentLogger(s.logger, "mcp"), &mcp.MCPConfig{Enabled: s.config.API.MCPEnabled}, opts...).
		RegisterRoutes(api.Router())

	if s.config.API.MetricsEnabled {
		handler, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{})
		if err != nil {
			return nil, err
		}

		api.Router().Handle(metricsPath, handler).Methods(http.MethodGet)

		s.metrics = true
	}

	return api.Handler(), nil
}

// Repository returns the store shared by every listener.
func (s *Server) Repository() *telemetry.Repository {
	return s.repo
}

// Listen binds all listeners so address conflicts surface before serving.
func (s *Server) Listen(ctx context.Context) error {
	lc := &net.ListenConfig{}

	otlpListener, err := lc.Listen(ctx, "tcp", s.config.OTLP.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.OTLP.HTTPAddr, err)
	}

	apiListener, err := lc.Listen(ctx, "tcp", s.config.API.Addr)
	if err != nil {
		_ = otlpListener.Close()

		return fmt.Errorf("failed to listen on %s: %w", s.config.API.Addr, err)
	}

	if err := s.grpc.Listen(ctx); err != nil {
		_ = otlpListener.Close()
		_ = apiListener.Close()

		return err
	}

	s.otlpListener = otlpListener
	s.apiListener = apiListener

	return nil
}

// Addrs returns the bound OTLP/gRPC, OTLP/HTTP and API addresses after Listen.
func (s *Server) Addrs() (grpcAddr, otlpAddr, apiAddr string) {
	if s.otlpListener == nil || s.apiListener == nil || s.grpc.Addr() == nil {
		return "", "", ""
	}

	return s.grpc.Addr().String(), s.otlpListener.Addr().String(), s.apiListener.Addr().String()
}

// Run listens if needed and serves until ctx is canceled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s.otlpListener == nil {
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.grpc.Start(gctx)
	})

	g.Go(func() error {
		return serveHTTP(s.otlpHTTP, s.otlpListener)
	})

	g.Go(func() error {
		return serveHTTP(s.apiHTTP, s.apiListener)
	})

	if s.nats != nil {
		g.Go(func() error {
			return s.nats.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		return s.shutdown()
	})

	s.logger.Info().
		Str("otlp_grpc", s.grpc.Addr().String()).
		Str("otlp_http", s.otlpListener.Addr().String()).
		Str("api", s.apiListener.Addr().String()).
		Bool("nats", s.nats != nil).
		Msg("otelhub started")

	return g.Wait()
}

func serveHTTP(srv *http.Server, lis net.Listener) error {
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.grpc.Stop(ctx)

	errs := []error{
		s.otlpHTTP.Shutdown(ctx),
		s.apiHTTP.Shutdown(ctx),
		s.tracerProvider.Shutdown(ctx),
	}

	if s.metrics {
		errs = append(errs, logger.ShutdownMetrics(ctx))
	}

	s.logger.Info().Msg("otelhub stopped")

	return errors.Join(errs...)
}
