package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"esphub/internal/config"
	"esphub/internal/logger"
)

const (
	clientID       = "esphub-bridge"
	connectTimeout = 10 * time.Second
)

// TelemetryHandler receives the raw body of each message published on the
// device's telemetry topic.
type TelemetryHandler func(payload []byte)

// Client owns the broker session. Reconfiguring tears the session down and,
// when enabled, dials the new broker; paho's auto-reconnect keeps the session
// alive afterwards without help from us.
type Client struct {
	mu          sync.RWMutex
	log         *logger.Logger
	cli         paho.Client
	baseTopic   string
	onTelemetry TelemetryHandler
}

func NewClient(log *logger.Logger) *Client {
	return &Client{log: log}
}

// OnTelemetry registers the inbound telemetry callback. Set before Configure.
func (c *Client) OnTelemetry(fn TelemetryHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTelemetry = fn
}

// Configure applies broker settings: it disconnects any current session and,
// if MQTT is enabled, connects and subscribes to <baseTopic>/telemetry.
func (c *Client) Configure(cfg config.MQTTConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cli != nil {
		c.cli.Disconnect(250)
		c.cli = nil
	}
	if !cfg.Enabled {
		c.log.Infow("mqtt_disabled")
		return nil
	}

	c.baseTopic = cfg.BaseTopic
	telemetryTopic := cfg.BaseTopic + "/telemetry"

	opts := paho.NewClientOptions().AddBroker(cfg.BrokerURL)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(cli paho.Client) {
		c.log.Infow("mqtt_connected", "broker", cfg.BrokerURL)
		tok := cli.Subscribe(telemetryTopic, 1, func(_ paho.Client, msg paho.Message) {
			c.mu.RLock()
			fn := c.onTelemetry
			c.mu.RUnlock()
			if fn != nil {
				fn(msg.Payload())
			}
		})
		if tok.Wait() && tok.Error() != nil {
			c.log.Errorw("mqtt_subscribe_failed", "topic", telemetryTopic, "err", tok.Error())
		} else {
			c.log.Infow("mqtt_subscribed", "topic", telemetryTopic)
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warnw("mqtt_connection_lost", "err", err)
	})

	cli := paho.NewClient(opts)
	c.cli = cli

	tok := cli.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		// retry continues in the background
		c.log.Warnw("mqtt_connect_pending", "broker", cfg.BrokerURL)
		return nil
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", cfg.BrokerURL, err)
	}
	return nil
}

// Connected reports whether the broker session is live.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cli != nil && c.cli.IsConnectionOpen()
}

// PublishPinCommand publishes a transient pin command to the control topic.
func (c *Client) PublishPinCommand(pin, state int) error {
	body, err := json.Marshal(map[string]int{"pin": pin, "state": state})
	if err != nil {
		return err
	}
	return c.publish("control/pins", body, false)
}

// PublishConfig publishes the device-facing config, retained so the device
// picks it up on its next (re)connect.
func (c *Client) PublishConfig(raw []byte) error {
	return c.publish("control/config", raw, true)
}

func (c *Client) publish(subTopic string, body []byte, retained bool) error {
	c.mu.RLock()
	cli := c.cli
	topic := c.baseTopic + "/" + subTopic
	c.mu.RUnlock()

	if cli == nil || !cli.IsConnectionOpen() {
		return errors.New("mqtt client not connected")
	}
	tok := cli.Publish(topic, 1, retained, body)
	if tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, tok.Error())
	}
	c.log.Debugw("mqtt_published", "topic", topic, "retained", retained)
	return nil
}
