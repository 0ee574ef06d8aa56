// Package mqtt publishes switch state to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 2 * time.Second
	disconnectQuiesce = 250 // milliseconds
	keepAlive         = 60 * time.Second
)

// Config is the broker connection and topic layout.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	TopicPrefix string
}

// client is the subset of pahomqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher mirrors switch state transitions to retained MQTT topics.
type Publisher struct {
	client client
	cfg    Config
	topics Topics
}

// StatePayload is the body published on a switch state topic.
type StatePayload struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Model     string `json:"model"`
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

func buildClientOptions(cfg Config, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(topics.Status(), "offline", 1, true)
	return opts
}

// Connect dials the broker and announces availability.
func Connect(cfg Config) (*Publisher, error) {
	topics := Topics{Prefix: cfg.TopicPrefix}
	opts := buildClientOptions(cfg, topics)

	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		c.Publish(topics.Status(), cfg.QoS, true, "online")
		log.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg Config) *Publisher {
	return &Publisher{client: c, cfg: cfg, topics: Topics{Prefix: cfg.TopicPrefix}}
}

// Publish sends a retained state message for one switch.
func (p *Publisher) Publish(info device.Info, on bool, at time.Time) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	state := "off"
	if on {
		state = "on"
	}
	payload, err := json.Marshal(StatePayload{
		Name:      info.Name,
		Address:   info.Address,
		Model:     info.Model,
		State:     state,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topics.SwitchState(info.Address), p.cfg.QoS, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// StateChanged publishes a transition, logging rather than returning failures.
func (p *Publisher) StateChanged(info device.Info, on bool, at time.Time) {
	if err := p.Publish(info, on, at); err != nil {
		log.Warn().Err(err).Str("switch", info.Name).Msg("Failed to publish switch state")
	}
}

// Close marks the server offline and disconnects.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Publish(p.topics.Status(), p.cfg.QoS, true, "offline").WaitTimeout(publishTimeout)
	}
	p.client.Disconnect(disconnectQuiesce)
}
