// Package sensorsim publishes synthetic telemetry readings to the bus.
package sensorsim

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/rmoraes/coldtrace/internal/monitor/bus"
	entrypoint "github.com/rmoraes/coldtrace/internal/platform/cmd"
)

// Config holds sensor simulator command configuration.
type Config struct {
	BrokerURL     string        `env:"COLDTRACE_BROKER_URL" envDefault:"tcp://localhost:1883"`
	ReadingsTopic string        `env:"COLDTRACE_READINGS_TOPIC" envDefault:"coldtrace/readings"`
	Shipments     string        `env:"COLDTRACE_SIM_SHIPMENTS" envDefault:"1,2,3"`
	Interval      time.Duration `env:"COLDTRACE_SIM_INTERVAL" envDefault:"2s"`
	BaseTemp      float64       `env:"COLDTRACE_SIM_BASE_TEMP" envDefault:"5"`
	TempJitter    float64       `env:"COLDTRACE_SIM_TEMP_JITTER" envDefault:"3"`
	BaseHumidity  float64       `env:"COLDTRACE_SIM_BASE_HUMIDITY" envDefault:"45"`
	HumidityJit   float64       `env:"COLDTRACE_SIM_HUMIDITY_JITTER" envDefault:"10"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.BrokerURL, "broker", cfg.BrokerURL, "The MQTT broker URL")
	fs.StringVar(&cfg.ReadingsTopic, "readings-topic", cfg.ReadingsTopic, "The telemetry readings topic")
	fs.StringVar(&cfg.Shipments, "shipments", cfg.Shipments, "Comma-separated shipment ids to emit for")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Delay between readings")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ShipmentIDs parses the configured comma-separated shipment id list.
func (cfg Config) ShipmentIDs() ([]int64, error) {
	parts := strings.Split(cfg.Shipments, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid shipment id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one shipment id is required")
	}
	return ids, nil
}

// Run connects to the broker and publishes readings until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSensorSim, func(context.Context) error {
		ids, err := cfg.ShipmentIDs()
		if err != nil {
			return err
		}

		connector, err := bus.New(bus.Config{
			BrokerURL: cfg.BrokerURL,
			ClientID:  "coldtrace-sensorsim",
		})
		if err != nil {
			return err
		}
		if err := connector.Connect(ctx); err != nil {
			return err
		}
		defer connector.Disconnect()

		log.Printf("publishing readings for shipments %v every %s", ids, cfg.Interval)
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				id := ids[rand.Intn(len(ids))]
				payload := map[string]any{
					"shipment_id": id,
					"temperature": jitter(cfg.BaseTemp, cfg.TempJitter),
					"humidity":    jitter(cfg.BaseHumidity, cfg.HumidityJit),
				}
				if err := connector.Publish(cfg.ReadingsTopic, payload); err != nil {
					log.Printf("publish reading: %v", err)
				}
			}
		}
	})
}

func jitter(base, amplitude float64) float64 {
	return base + (rand.Float64()*2-1)*amplitude
}
