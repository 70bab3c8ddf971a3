// Package monitor parses monitor command flags and launches the runtime.
package monitor

import (
	"context"
	"flag"
	"time"

	"github.com/rmoraes/coldtrace/internal/monitor/app"
	"github.com/rmoraes/coldtrace/internal/monitor/bus"
	entrypoint "github.com/rmoraes/coldtrace/internal/platform/cmd"
)

// Config holds monitor command configuration.
type Config struct {
	HTTPPort      int           `env:"COLDTRACE_MONITOR_HTTP_PORT" envDefault:"8090"`
	HealthPort    int           `env:"COLDTRACE_MONITOR_HEALTH_PORT" envDefault:"8091"`
	BrokerURL     string        `env:"COLDTRACE_BROKER_URL" envDefault:"tcp://localhost:1883"`
	ReadingsTopic string        `env:"COLDTRACE_READINGS_TOPIC" envDefault:"coldtrace/readings"`
	DBPath        string        `env:"COLDTRACE_MONITOR_DB_PATH" envDefault:"data/monitor.db"`
	QueueSize     int           `env:"COLDTRACE_QUEUE_SIZE" envDefault:"256"`
	Workers       int           `env:"COLDTRACE_WORKERS" envDefault:"4"`
	WriteTimeout  time.Duration `env:"COLDTRACE_WRITE_TIMEOUT" envDefault:"5s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The query API HTTP port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port")
	fs.StringVar(&cfg.BrokerURL, "broker", cfg.BrokerURL, "The MQTT broker URL")
	fs.StringVar(&cfg.ReadingsTopic, "readings-topic", cfg.ReadingsTopic, "The telemetry readings topic")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The monitor SQLite database path")
	fs.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Inbound payload queue capacity")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Ingestion worker count")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-reading persistence timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.ReadingsTopic == "" {
		cfg.ReadingsTopic = bus.DefaultReadingsTopic
	}
	return cfg, nil
}

// Run starts the monitor runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMonitor, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			HTTPPort:      cfg.HTTPPort,
			HealthPort:    cfg.HealthPort,
			BrokerURL:     cfg.BrokerURL,
			ReadingsTopic: cfg.ReadingsTopic,
			DBPath:        cfg.DBPath,
			QueueSize:     cfg.QueueSize,
			Workers:       cfg.Workers,
			WriteTimeout:  cfg.WriteTimeout,
		})
	})
}
