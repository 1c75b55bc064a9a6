package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/config"
	"github.com/muurk/remootio/internal/remootio"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second

	// qos is used for every message.
	qos = 1
)

// Availability payloads.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

var (
	// ErrNotConnected is returned when publishing without a broker connection.
	ErrNotConnected = errors.New("mqtt: client not connected")
	// ErrConnectionFailed is returned when the initial connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	// ErrPublishFailed is returned when a publish is not acknowledged.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)

// StatePayload is published retained on the state topic of each device.
type StatePayload struct {
	Serial      string    `json:"serial"`
	State       string    `json:"state"`
	DeviceClass string    `json:"device_class"`
	Timestamp   time.Time `json:"timestamp"`
}

// broker is the part of pahomqtt.Client the publisher uses.
type broker interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes device state and availability. Safe for concurrent use.
type Publisher struct {
	client broker
	topics Topics
	logger *zap.Logger
	now    func() time.Time

	closeOnce sync.Once
}

// Connect dials the broker in cfg. The bridge status topic carries a
// retained "offline" last will and is set to "online" on every (re)connect.
func Connect(cfg config.MQTTPrefs, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("%w: no broker configured", ErrConnectionFailed)
	}

	p := &Publisher{
		topics: NewTopics(cfg.TopicPrefix),
		logger: logger,
		now:    time.Now,
	}

	opts := buildClientOptions(cfg)
	opts.SetWill(p.topics.BridgeStatus(), StatusOffline, qos, true)
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
		c.Publish(p.topics.BridgeStatus(), qos, true, StatusOnline)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p.client = client
	return p, nil
}

func buildClientOptions(cfg config.MQTTPrefs) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = "remootio-bridge-" + host
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	return opts
}

// Topics returns the topic builder in use.
func (p *Publisher) Topics() Topics {
	return p.topics
}

// PublishState publishes the current state of a device.
func (p *Publisher) PublishState(serial, deviceClass string, state remootio.State) error {
	payload, err := json.Marshal(StatePayload{
		Serial:      serial,
		State:       state.String(),
		DeviceClass: deviceClass,
		Timestamp:   p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return p.publish(p.topics.State(serial), payload)
}

// PublishAvailability publishes whether the bridge holds a session with the device.
func (p *Publisher) PublishAvailability(serial string, online bool) error {
	status := StatusOffline
	if online {
		status = StatusOnline
	}
	return p.publish(p.topics.Availability(serial), []byte(status))
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	p.logger.Debug("Published", zap.String("topic", topic), zap.ByteString("payload", payload))
	return nil
}

// Close publishes a graceful "offline" bridge status and disconnects.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		if p.client.IsConnected() {
			token := p.client.Publish(p.topics.BridgeStatus(), qos, true, StatusOffline)
			token.WaitTimeout(defaultPublishTimeout)
		}
		p.client.Disconnect(defaultDisconnectQuiesce)
	})
	return nil
}
