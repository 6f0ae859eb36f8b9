package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vendlink/vendlink-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the fleet hub. It owns the broker
// connection, republishes hub status on reconnect, and restores every
// tracked subscription after the link comes back.
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	// subs holds active subscriptions, keyed by topic, so they can be
	// replayed against the broker after a reconnect.
	subsMu sync.RWMutex
	subs   map[string]subscription

	// mu guards connection state and the optional hooks below.
	mu        sync.RWMutex
	connected bool
	onUp      func()
	onDown    func(err error)
	log       Logger
}

// Logger is the subset of logging.Logger the client needs. slog.Logger
// satisfies it too.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives messages for a subscribed topic. Paho invokes
// handlers on its own goroutines; a returned error is logged, it does
// not affect acknowledgement. Keep handlers quick.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker, registers the hub's last-will status
// message, and enables auto-reconnect with backoff. It blocks until the
// first connection succeeds or times out.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := clientOptions(cfg)
	setWill(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleUp()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDown(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Paho fires the connect handler asynchronously; mark connected here
	// so IsConnected is true as soon as Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) handleUp() {
	c.mu.Lock()
	c.connected = true
	hook := c.onUp
	c.mu.Unlock()

	c.subsMu.RLock()
	for _, sub := range c.subs {
		// Errors here are swallowed; the next reconnect retries.
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.subsMu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, onlineStatus(c.cfg.Broker.ClientID))

	if hook != nil {
		hook()
	}
}

func (c *Client) handleDown(err error) {
	c.mu.Lock()
	c.connected = false
	hook := c.onDown
	c.mu.Unlock()

	if hook != nil {
		hook(err)
	}
}

// Close publishes a graceful offline status, distinct from the crash
// status the will carries, then disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, offlineStatus(c.cfg.Broker.ClientID))
		token.WaitTimeout(publishTimeout)
	}

	c.client.Disconnect(disconnectQuiesceMs)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports whether the broker link is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a hook invoked on initial connect and every
// reconnect.
func (c *Client) SetOnConnect(hook func()) {
	c.mu.Lock()
	c.onUp = hook
	c.mu.Unlock()
}

// SetOnDisconnect registers a hook invoked when the broker link drops.
func (c *Client) SetOnDisconnect(hook func(err error)) {
	c.mu.Lock()
	c.onDown = hook
	c.mu.Unlock()
}

// SetLogger attaches a logger for handler errors and recovered panics.
// Without one those are dropped.
func (c *Client) SetLogger(log Logger) {
	c.mu.Lock()
	c.log = log
	c.mu.Unlock()
}

func (c *Client) logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

// wrapHandler adds panic recovery and error logging around a handler
// before handing it to paho.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.logger(); log != nil {
					log.Error("mqtt handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if log := c.logger(); log != nil {
				log.Warn("mqtt handler error", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
