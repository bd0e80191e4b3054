// Package publisher pushes metrics snapshots to an MQTT broker.
package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/j-veylop/vehicle-dashboard/internal/config"
	"github.com/j-veylop/vehicle-dashboard/internal/logger"
	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

const (
	defaultTopicPrefix = "vehicle_dashboard"
	publishTimeout     = 5 * time.Second
	connectTimeout     = 10 * time.Second
	qos                = 1
)

// Client is the subset of the paho client used by Publisher.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher publishes snapshots as retained MQTT messages.
type Publisher struct {
	client      Client
	topicPrefix string
}

// New connects to the configured broker.
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("MQTT broker address is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID("vdash-" + uuid.NewString()[:8])
	// Reconnect once connected, but fail fast on the first attempt
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if err := waitConnect(client.Connect(), connectTimeout); err != nil {
		return nil, err
	}

	logger.Info("Connected to MQTT broker", "broker", cfg.Broker)

	return NewWithClient(client, cfg.TopicPrefix), nil
}

// waitConnect waits at most timeout for a connect token to complete.
func waitConnect(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out connecting to MQTT broker after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// NewWithClient wraps an already connected client.
func NewWithClient(client Client, topicPrefix string) *Publisher {
	topicPrefix = strings.Trim(topicPrefix, "/")
	if topicPrefix == "" {
		topicPrefix = defaultTopicPrefix
	}
	return &Publisher{client: client, topicPrefix: topicPrefix}
}

// brokerURL adds the tcp scheme when the broker is given as host:port.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Topic returns the topic for one of a user's metrics.
func (p *Publisher) Topic(userID, metric string) string {
	return p.topicPrefix + "/" + userID + "/" + metric
}

// PublishSnapshot publishes the full snapshot as JSON and each headline
// metric on its own topic. All messages are retained.
func (p *Publisher) PublishSnapshot(userID string, snap models.MetricsSnapshot) error {
	if userID == "" {
		return errors.New("user id is required")
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := p.publish(p.Topic(userID, "snapshot"), body); err != nil {
		return err
	}

	metrics := []struct {
		name  string
		value float64
	}{
		{"current_reading", snap.CurrentReading},
		{"window_distance", snap.WindowDistance},
		{"window_fuel", snap.WindowFuel},
		{"window_cost", snap.WindowCost},
		{"window_efficiency", snap.WindowEfficiency},
	}

	for _, m := range metrics {
		if err := p.publish(p.Topic(userID, m.name), fmt.Sprintf("%.2f", m.value)); err != nil {
			return err
		}
	}

	logger.Debug("Published snapshot", "user", userID, "prefix", p.topicPrefix)
	return nil
}

func (p *Publisher) publish(topic string, payload interface{}) error {
	token := p.client.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
