// Package config handles configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/logger"
	"github.com/ThinKC13/SimpleModbusTCPClient/pkg/transport"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default config file locations.
var configPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./smbtc.yaml",
	"./smbtc.yml",
	"~/.config/smbtc/config.yaml",
	"/etc/smbtc/config.yaml",
}

// Config is the root configuration.
type Config struct {
	// Device describes the Modbus TCP server to talk to.
	Device DeviceConfig `yaml:"device" json:"device"`

	// Poll configures the periodic read loop (poll mode only).
	Poll PollConfig `yaml:"poll" json:"poll"`

	// Logging configures the application logger.
	Logging logger.Config `yaml:"logging" json:"logging"`

	// API configures the optional HTTP status/metrics server.
	API APIConfig `yaml:"api" json:"api"`

	// MQTT configures the optional poll-sample publisher.
	MQTT MQTTConfig `yaml:"mqtt" json:"mqtt"`
}

// DeviceConfig describes the target server and its connection settings.
type DeviceConfig struct {
	// Address is the server address (host:port).
	Address string `yaml:"address" json:"address" validate:"omitempty,hostname_port"`

	// UnitID addresses the unit behind the server.
	UnitID uint8 `yaml:"unit_id" json:"unit_id"`

	// ConnectTimeout, ReadTimeout and WriteTimeout bound the connection
	// phases. Zero values fall back to the transport defaults.
	ConnectTimeout Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout" json:"write_timeout"`

	// KeepAlive enables TCP keepalive probes.
	KeepAlive bool `yaml:"keepalive" json:"keepalive"`

	// NoDelay disables Nagle's algorithm.
	NoDelay bool `yaml:"no_delay" json:"no_delay"`
}

// TransportConfig converts the device section into a transport config.
func (d DeviceConfig) TransportConfig() transport.Config {
	return transport.Config{
		Address:        d.Address,
		ConnectTimeout: d.ConnectTimeout.Std(),
		ReadTimeout:    d.ReadTimeout.Std(),
		WriteTimeout:   d.WriteTimeout.Std(),
		KeepAlive:      d.KeepAlive,
		NoDelay:        d.NoDelay,
	}
}

// PollConfig configures the periodic read loop.
type PollConfig struct {
	// Function is the read function code (1-4).
	Function uint8 `yaml:"function" json:"function" validate:"omitempty,min=1,max=4"`

	// Address is the starting register address.
	Address uint16 `yaml:"address" json:"address"`

	// Quantity is the number of registers to read per poll.
	Quantity uint16 `yaml:"quantity" json:"quantity"`

	// Interval is the time between polls.
	Interval Duration `yaml:"interval" json:"interval"`
}

// APIConfig configures the HTTP status surface.
type APIConfig struct {
	// Enabled turns the server on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen is the listen address, e.g. ":8080".
	Listen string `yaml:"listen" json:"listen"`
}

// MQTTConfig configures the poll-sample publisher.
type MQTTConfig struct {
	// Enabled turns publishing on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Broker is the broker URI (e.g. tcp://localhost:1883).
	Broker string `yaml:"broker" json:"broker" validate:"required_if=Enabled true"`

	// Topic is the topic samples are published to.
	Topic string `yaml:"topic" json:"topic" validate:"required_if=Enabled true"`

	// ClientID is the MQTT client identifier.
	ClientID string `yaml:"client_id" json:"client_id"`

	// Username is the broker username.
	Username string `yaml:"username" json:"username"`

	// Password is the broker password.
	Password string `yaml:"password" json:"password"`

	// QOS is the quality-of-service level (0, 1, 2).
	QOS int `yaml:"qos" json:"qos" validate:"min=0,max=2"`
}

// Load loads configuration from file. An empty path probes the default
// locations and falls back to DefaultConfig when none exists.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}

	for _, p := range configPaths {
		if p[0] == '~' {
			home, err := os.UserHomeDir()
			if err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		if _, err := os.Stat(p); err == nil {
			return loadFile(p)
		}
	}

	return DefaultConfig(), nil
}

// loadFile loads configuration from a specific file.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func Validate(cfg *Config) error {
	validate := validator.New()
	return validate.Struct(cfg)
}

// Save saves configuration to file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Address:        "localhost:502",
			UnitID:         1,
			ConnectTimeout: Duration(10 * time.Second),
			ReadTimeout:    Duration(5 * time.Second),
			WriteTimeout:   Duration(5 * time.Second),
			KeepAlive:      true,
			NoDelay:        true,
		},
		Poll: PollConfig{
			Function: 3,
			Address:  0,
			Quantity: 1,
			Interval: Duration(time.Second),
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  ":8080",
		},
		MQTT: MQTTConfig{
			Enabled: false,
			QOS:     0,
		},
	}
}
