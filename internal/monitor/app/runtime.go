// Package app wires the monitor runtime: storage, cache, bus, pipeline, and
// the query surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rmoraes/coldtrace/internal/monitor/bus"
	"github.com/rmoraes/coldtrace/internal/monitor/cache"
	"github.com/rmoraes/coldtrace/internal/monitor/ingest"
	"github.com/rmoraes/coldtrace/internal/monitor/query"
	monitorsqlite "github.com/rmoraes/coldtrace/internal/monitor/storage/sqlite"
)

// RuntimeConfig controls monitor startup, dependencies, and pipeline behavior.
type RuntimeConfig struct {
	HTTPPort      int
	HealthPort    int
	BrokerURL     string
	ReadingsTopic string
	DBPath        string
	QueueSize     int
	Workers       int
	WriteTimeout  time.Duration
}

const (
	defaultHTTPPort   = 8090
	defaultHealthPort = 8091
	defaultMonitorDB  = "data/monitor.db"
)

// Run starts the monitor runtime and blocks until ctx is done.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return fmt.Errorf("broker url is required")
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultHTTPPort
	}
	if cfg.HealthPort <= 0 {
		cfg.HealthPort = defaultHealthPort
	}
	if strings.TrimSpace(cfg.ReadingsTopic) == "" {
		cfg.ReadingsTopic = bus.DefaultReadingsTopic
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultMonitorDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create monitor storage dir: %w", err)
		}
	}

	store, err := monitorsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open monitor sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close monitor sqlite store: %v", closeErr)
		}
	}()

	latest := cache.NewLatest()

	pipeline, err := ingest.New(store, latest, ingest.Config{
		QueueSize:    cfg.QueueSize,
		Workers:      cfg.Workers,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("build ingest pipeline: %w", err)
	}

	querier, err := query.NewService(store, latest)
	if err != nil {
		return fmt.Errorf("build query service: %w", err)
	}

	connector, err := bus.New(bus.Config{BrokerURL: cfg.BrokerURL})
	if err != nil {
		return fmt.Errorf("build bus connector: %w", err)
	}
	if err := connector.Connect(ctx); err != nil {
		return err
	}
	defer connector.Disconnect()

	if err := connector.Subscribe(cfg.ReadingsTopic, pipeline.Enqueue); err != nil {
		return fmt.Errorf("subscribe readings topic: %w", err)
	}
	log.Printf("listening for readings on %s", cfg.ReadingsTopic)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           NewRouter(querier),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http serve: %v", err)
		}
	}()
	log.Printf("query API listening on :%d", cfg.HTTPPort)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
	if err != nil {
		return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("monitor.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("health server listening at %v", listener.Addr())
	err = pipeline.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
