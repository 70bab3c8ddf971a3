package config

import (
	"strings"
	"testing"
)

type testConfig struct {
	Port int `env:"COLDTRACE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("port = %d, want 123", cfg.Port)
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("COLDTRACE_TEST_PORT", "9090")
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Port)
	}
}

func TestParseEnvInvalidValue(t *testing.T) {
	t.Setenv("COLDTRACE_TEST_PORT", "not-a-number")
	var cfg testConfig
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error for invalid port value")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("error = %q, want parse env prefix", err)
	}
}
