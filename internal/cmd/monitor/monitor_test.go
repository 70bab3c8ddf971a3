package monitor

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	t.Setenv("COLDTRACE_MONITOR_HTTP_PORT", "9090")
	t.Setenv("COLDTRACE_BROKER_URL", "tcp://broker:1883")

	cfg, err := ParseConfig(fs, []string{"-workers", "8", "-write-timeout", "2s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("http port = %d, want env override 9090", cfg.HTTPPort)
	}
	if cfg.BrokerURL != "tcp://broker:1883" {
		t.Fatalf("broker = %q, want env override", cfg.BrokerURL)
	}
	if cfg.Workers != 8 {
		t.Fatalf("workers = %d, want flag override 8", cfg.Workers)
	}
	if cfg.WriteTimeout != 2*time.Second {
		t.Fatalf("write timeout = %v, want 2s", cfg.WriteTimeout)
	}
	if cfg.ReadingsTopic != "coldtrace/readings" {
		t.Fatalf("topic = %q, want default", cfg.ReadingsTopic)
	}
	if cfg.QueueSize != 256 {
		t.Fatalf("queue size = %d, want default 256", cfg.QueueSize)
	}
}

func TestParseConfig_FlagOverridesEnv(t *testing.T) {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	t.Setenv("COLDTRACE_READINGS_TOPIC", "coldtrace/env-topic")

	cfg, err := ParseConfig(fs, []string{"-readings-topic", "coldtrace/flag-topic"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ReadingsTopic != "coldtrace/flag-topic" {
		t.Fatalf("topic = %q, want flag value", cfg.ReadingsTopic)
	}
}
