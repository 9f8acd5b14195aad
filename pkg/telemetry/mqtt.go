package telemetry

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker         string // e.g. tcp://localhost:1883
	ClientID       string
	Topic          string // readings go to Topic/<sensor>
	QoS            byte
	ConnectTimeout time.Duration
}

// MQTTSink publishes every reading on its own sensor topic.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
}

var _ Sink = (*MQTTSink)(nil)

// DialMQTT connects to the broker.
func DialMQTT(cfg MQTTConfig) (*MQTTSink, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	return NewMQTTSink(client, cfg.Topic, cfg.QoS), nil
}

// NewMQTTSink wraps a connected client.
func NewMQTTSink(client mqtt.Client, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Send(ctx context.Context, msg Message) error {
	topic := s.topic
	if msg.Key != "" {
		topic += "/" + msg.Key
	}

	token := s.client.Publish(topic, s.qos, false, msg.Payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
