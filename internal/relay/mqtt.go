package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"irrigation_controller/internal/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second
	disconnectQuiesceMs   = 250
)

var (
	// ErrNotConnected is returned when the broker connection is down.
	ErrNotConnected = errors.New("relay: mqtt not connected")
	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("relay: mqtt connection failed")
	// ErrPublishFailed is returned when a relay command is not acknowledged.
	ErrPublishFailed = errors.New("relay: mqtt publish failed")
)

// publisher is the subset of the paho client the driver uses.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTDriver commands a networked relay board. Each write publishes the pin level ("0"/"1")
// to <prefix>/relay/<pin>/set.
type MQTTDriver struct {
	client   publisher
	prefix   string
	qos      byte
	retained bool
	timeout  time.Duration
	closeFn  func()
}

var _ Driver = (*MQTTDriver)(nil)

// DialMQTT connects to the broker described by cfg.
func DialMQTT(cfg config.MQTTConfig) (*MQTTDriver, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	d := newMQTTDriver(client, cfg)
	d.closeFn = func() { client.Disconnect(disconnectQuiesceMs) }
	return d, nil
}

func newMQTTDriver(client publisher, cfg config.MQTTConfig) *MQTTDriver {
	return &MQTTDriver{
		client:   client,
		prefix:   strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:      byte(cfg.QoS),
		retained: cfg.Retained,
		timeout:  defaultPublishTimeout,
	}
}

// Topic returns the command topic for pin.
func (d *MQTTDriver) Topic(pin int) string {
	return d.prefix + "/relay/" + strconv.Itoa(pin) + "/set"
}

func (d *MQTTDriver) Set(ctx context.Context, pin int, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.client.IsConnected() {
		return ErrNotConnected
	}
	payload := strconv.Itoa(Level(active))
	token := d.client.Publish(d.Topic(pin), d.qos, d.retained, payload)
	if !token.WaitTimeout(d.timeout) {
		return fmt.Errorf("%w: pin %d: timeout after %v", ErrPublishFailed, pin, d.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: pin %d: %w", ErrPublishFailed, pin, err)
	}
	return nil
}

// Close disconnects from the broker.
func (d *MQTTDriver) Close() {
	if d.closeFn != nil {
		d.closeFn()
	}
}
