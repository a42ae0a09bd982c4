// Package mqtt publishes poll samples to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/logger"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/poller"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt sink not connected")

// Config holds MQTT sink configuration.
type Config struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883".
	Broker string `yaml:"broker" json:"broker"`

	// ClientID identifies this client to the broker. A random id is
	// generated when empty.
	ClientID string `yaml:"client_id" json:"client_id"`

	// Topic is the topic samples are published to.
	Topic string `yaml:"topic" json:"topic"`

	// Username and Password are optional broker credentials.
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// QOS is the publish quality of service (0, 1 or 2).
	QOS byte `yaml:"qos" json:"qos"`

	// ConnectTimeout bounds the initial broker connection.
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// DefaultConfig returns default sink configuration.
func DefaultConfig() Config {
	return Config{
		Broker:         "tcp://localhost:1883",
		Topic:          "smbtc/samples",
		QOS:            0,
		ConnectTimeout: 10 * time.Second,
	}
}

// Sink publishes samples to an MQTT topic.
type Sink struct {
	config Config
	client paho.Client
	log    *logger.Logger
}

// NewSink creates a sink from the config. Connect must be called before
// publishing.
func NewSink(config Config) (*Sink, error) {
	defaults := DefaultConfig()
	if config.Broker == "" {
		return nil, errors.New("mqtt broker url required")
	}
	if config.Topic == "" {
		config.Topic = defaults.Topic
	}
	if config.ClientID == "" {
		config.ClientID = "smbtc-" + uuid.NewString()[:8]
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}

	return &Sink{
		config: config,
		log:    logger.Global().Component("mqtt"),
	}, nil
}

// Connect establishes the broker connection.
func (s *Sink) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.config.Broker).
		SetClientID(s.config.ClientID).
		SetConnectTimeout(s.config.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.log.Warn("broker connection lost", "error", err)
		}).
		SetOnConnectHandler(func(paho.Client) {
			s.log.Info("connected to broker", "broker", s.config.Broker)
		})

	if s.config.Username != "" {
		opts.SetUsername(s.config.Username)
		opts.SetPassword(s.config.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.config.Broker, err)
	}

	s.client = client
	return nil
}

// Close disconnects from the broker.
func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Disconnect(250)
		s.client = nil
	}
	return nil
}

// Publish sends one sample as a JSON message.
func (s *Sink) Publish(sample *poller.Sample) error {
	if s.client == nil || !s.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	token := s.client.Publish(s.config.Topic, s.config.QOS, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.config.Topic, err)
	}
	return nil
}

// Run publishes every sample from ch until the channel closes or the
// context ends. Publish errors are logged, not fatal.
func (s *Sink) Run(ctx context.Context, ch <-chan *poller.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Publish(sample); err != nil {
				s.log.Error("publish failed", "error", err)
			}
		}
	}
}
