package bus

import (
	"strings"
	"testing"
	"time"
)

func TestNewRequiresBrokerURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing broker url")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	cfg := Config{BrokerURL: "tcp://localhost:1883"}.withDefaults()
	if cfg.ClientID != "coldtrace-monitor" {
		t.Fatalf("client id = %q, want coldtrace-monitor", cfg.ClientID)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("connect timeout = %v, want 5s", cfg.ConnectTimeout)
	}
	if cfg.PublishTimeout != 2*time.Second {
		t.Fatalf("publish timeout = %v, want 2s", cfg.PublishTimeout)
	}
	if cfg.MaxReconnectInterval != 30*time.Second {
		t.Fatalf("max reconnect interval = %v, want 30s", cfg.MaxReconnectInterval)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c, err := New(Config{BrokerURL: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}

	if err := c.Subscribe("", func([]byte) {}); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if err := c.Subscribe(DefaultReadingsTopic, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestPublishValidation(t *testing.T) {
	c, err := New(Config{BrokerURL: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}

	if err := c.Publish("  ", map[string]int{"a": 1}); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if err := c.Publish(DefaultShipmentCreatedTopic, func() {}); err == nil {
		t.Fatal("expected error for unencodable payload")
	}
}

func TestTopicNamingConvention(t *testing.T) {
	for _, topic := range []string{DefaultReadingsTopic, DefaultShipmentCreatedTopic} {
		if !strings.HasPrefix(topic, "coldtrace/") {
			t.Fatalf("topic %q does not follow the coldtrace/<event> convention", topic)
		}
	}
}
