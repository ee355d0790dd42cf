package statusmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/connectors"
)

const (
	statusQoS      byte = 1
	publishTimeout      = 5 * time.Second
	connectTimeout      = 10 * time.Second
)

// Publisher is the part of mqtt.Client the mirror needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect opens a broker connection described by cfg.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (mqtt.Client, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt broker is required")
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", cfg.Broker, "error", err)
	})

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	logger.Info("mqtt connected", "broker", cfg.Broker, "client_id", cfg.ClientID)

	return c, nil
}

// Mirror republishes every connection status event as a retained JSON
// message on <prefix>/status.
type Mirror struct {
	client Publisher
	topic  string
	logger *slog.Logger
}

func NewMirror(client Publisher, prefix string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}

	return &Mirror{
		client: client,
		topic:  StatusTopic(prefix),
		logger: logger,
	}
}

func StatusTopic(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "status"
	}

	return prefix + "/status"
}

func (m *Mirror) Topic() string {
	return m.topic
}

// Run mirrors status events from b until ctx is done. The returned channel is
// closed when mirroring has stopped.
func (m *Mirror) Run(ctx context.Context, b bus.MessageBus) <-chan struct{} {
	return bus.Listen(ctx, b, connectors.TopicConnStatus, func(status connectors.ConnectionStatus) {
		if err := m.Publish(status); err != nil {
			m.logger.Warn("status mirror publish failed", "state", status.State.String(), "error", err)
		}
	})
}

func (m *Mirror) Publish(status connectors.ConnectionStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	tok := m.client.Publish(m.topic, statusQoS, true, data)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", m.topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	m.logger.Debug("status mirrored", "topic", m.topic, "state", status.State.String())

	return nil
}
