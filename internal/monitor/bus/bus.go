// Package bus owns the MQTT connection lifecycle for the monitor.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Default topics, following the coldtrace/<event> naming convention.
const (
	DefaultReadingsTopic        = "coldtrace/readings"
	DefaultShipmentCreatedTopic = "coldtrace/shipments"
)

const subscribeQoS = 1

// Config controls broker connection behavior.
type Config struct {
	// BrokerURL is the broker address, e.g. tcp://localhost:1883.
	BrokerURL string
	// ClientID prefixes the MQTT client identifier; a random suffix is
	// appended so restarted instances do not steal each other's session.
	ClientID string
	// ConnectTimeout bounds each individual connect attempt.
	ConnectTimeout time.Duration
	// ConnectMaxElapsed bounds the initial connect retry loop.
	ConnectMaxElapsed time.Duration
	// PublishTimeout bounds waiting for the client publish token.
	PublishTimeout time.Duration
	// MaxReconnectInterval caps the client's automatic reconnect delay.
	MaxReconnectInterval time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.ClientID == "" {
		cfg.ClientID = "coldtrace-monitor"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ConnectMaxElapsed <= 0 {
		cfg.ConnectMaxElapsed = 2 * time.Minute
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = 30 * time.Second
	}
	return cfg
}

// Handler receives one raw message payload.
type Handler func(payload []byte)

// Connector maintains one broker connection, re-establishing subscriptions
// after every reconnect so no in-memory state is lost on connection churn.
type Connector struct {
	cfg    Config
	client mqtt.Client

	mu            sync.Mutex
	subscriptions map[string]Handler
}

// New creates a connector for the given broker.
func New(cfg Config) (*Connector, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, fmt.Errorf("broker url is required")
	}

	c := &Connector{
		cfg:           cfg,
		subscriptions: make(map[string]Handler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(cfg.MaxReconnectInterval)
	opts.SetCleanSession(false)
	opts.OnConnect = func(client mqtt.Client) {
		log.Printf("mqtt connected to %s", cfg.BrokerURL)
		c.resubscribe(client)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("mqtt connection lost, reconnecting: %v", err)
	}

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes the broker connection, retrying with exponential
// backoff until the connection succeeds or ctx is done.
func (c *Connector) Connect(ctx context.Context) error {
	attempt := func() (struct{}, error) {
		token := c.client.Connect()
		if !token.WaitTimeout(c.cfg.ConnectTimeout) {
			return struct{}{}, fmt.Errorf("mqtt connect timeout after %s", c.cfg.ConnectTimeout)
		}
		if err := token.Error(); err != nil {
			return struct{}{}, fmt.Errorf("mqtt connect: %w", err)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.cfg.ConnectMaxElapsed),
	)
	if err != nil {
		return fmt.Errorf("connect to broker %s: %w", c.cfg.BrokerURL, err)
	}
	return nil
}

// Subscribe registers a handler for a topic. Messages are delivered in broker
// order, one call per delivery, with no deduplication. The subscription is
// re-established automatically after reconnects.
func (c *Connector) Subscribe(topic string, handler Handler) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	c.mu.Lock()
	c.subscriptions[topic] = handler
	c.mu.Unlock()

	return c.subscribeTopic(c.client, topic, handler)
}

func (c *Connector) subscribeTopic(client mqtt.Client, topic string, handler Handler) error {
	token := client.Subscribe(topic, subscribeQoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (c *Connector) resubscribe(client mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subscriptions))
	for topic, handler := range c.subscriptions {
		subs[topic] = handler
	}
	c.mu.Unlock()

	for topic, handler := range subs {
		if err := c.subscribeTopic(client, topic, handler); err != nil {
			log.Printf("mqtt resubscribe %s: %v", topic, err)
		}
	}
}

// Publish JSON-encodes payload and publishes it, fire-and-forget: the call
// waits only for the local client token, not for broker acknowledgment.
func (c *Connector) Publish(topic string, payload any) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("topic is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", topic, err)
	}

	token := c.client.Publish(topic, 0, false, body)
	if !token.WaitTimeout(c.cfg.PublishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishShipmentCreated emits the shipment-created event the external CRUD
// subsystem publishes when a new shipment enters the system. The ingestion
// pipeline does not consume it.
func (c *Connector) PublishShipmentCreated(topic string, shipmentID int64) error {
	return c.Publish(topic, map[string]int64{"shipment_id": shipmentID})
}

// Disconnect closes the broker connection, allowing a short grace period for
// in-flight work.
func (c *Connector) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		log.Printf("mqtt disconnected")
	}
}
