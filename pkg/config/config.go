// Package config loads the driver inventory and optional integrations from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML file.
type Config struct {
	Kasa    KasaConfig    `yaml:"kasa"`
	Relays  []RelayBoard  `yaml:"relays"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
}

// KasaConfig controls Kasa plug discovery.
type KasaConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BroadcastAddress string        `yaml:"broadcast_address"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	IOTimeout        time.Duration `yaml:"io_timeout"`
	Hosts            []string      `yaml:"hosts"`
}

// RelayBoard describes one USB relay board.
type RelayBoard struct {
	Port     string   `yaml:"port"`
	Channels int      `yaml:"channels"`
	Names    []string `yaml:"names"`
}

// MQTTConfig controls the optional state publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// LoggingConfig sets the zerolog level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used without a file: Kasa broadcast
// discovery on, no relay boards, MQTT off.
func Default() *Config {
	return &Config{
		Kasa: KasaConfig{
			Enabled:          true,
			BroadcastAddress: "255.255.255.255",
			DiscoveryTimeout: 3 * time.Second,
			IOTimeout:        2 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "alpacaswitch",
			QoS:         1,
			TopicPrefix: "alpaca",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPACA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("ALPACA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []string

	for i, b := range c.Relays {
		if b.Port == "" {
			errs = append(errs, fmt.Sprintf("relays[%d].port is required", i))
		}
		if b.Channels < 1 || b.Channels > 8 {
			errs = append(errs, fmt.Sprintf("relays[%d].channels must be between 1 and 8", i))
		}
		if len(b.Names) > b.Channels {
			errs = append(errs, fmt.Sprintf("relays[%d].names has more entries than channels", i))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, "logging.format must be console or json")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
