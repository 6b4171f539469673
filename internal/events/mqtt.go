package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// MQTTPublisher publishes each event as JSON on <prefix>/<type with dots as
// slashes>, e.g. lumeskin/appointment/booked.
type MQTTPublisher struct {
	client  mqttClient
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *logging.Logger
}

var _ Publisher = (*MQTTPublisher)(nil)

// ConnectMQTT dials the broker and returns a publisher.
func ConnectMQTT(cfg MQTTConfig, logger *logging.Logger) (*MQTTPublisher, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("events: mqtt broker url required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("events: mqtt connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("events: mqtt connect: %w", err)
	}
	logger.Info("mqtt connected", "broker", cfg.BrokerURL)
	return NewMQTTPublisher(client, cfg, logger), nil
}

func NewMQTTPublisher(client mqttClient, cfg MQTTConfig, logger *logging.Logger) *MQTTPublisher {
	if client == nil {
		panic("events: mqtt client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "lumeskin"
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: cfg.QoS, timeout: timeout, logger: logger}
}

// Topic returns the topic an event type is published on.
func (p *MQTTPublisher) Topic(t Type) string {
	return p.prefix + "/" + strings.ReplaceAll(string(t), ".", "/")
}

func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}
	token := p.client.Publish(p.Topic(event.Type), p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("events: publish %s timed out", event.Type)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Type, err)
	}
	return nil
}

// Close disconnects, allowing 250ms for in-flight messages.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
