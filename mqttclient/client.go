package mqttclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/errors"
	"github.com/penguineer/SensorsReport/metric"
	"github.com/penguineer/SensorsReport/pkg/retry"
)

const (
	defaultKeepAlive      = 30
	defaultSessionExpiry  = 60
	defaultConnectTimeout = 10 * time.Second

	// publishQoS is at-least-once. The session queues QoS 1 publishes
	// while disconnected instead of dropping them.
	publishQoS = 1
)

// Config describes one broker session.
type Config struct {
	// BrokerURL is the broker endpoint, e.g. "tcp://localhost:1883".
	BrokerURL string

	ClientID string
	Username string
	Password string

	// KeepAlive is the MQTT keep-alive interval in seconds.
	KeepAlive uint16

	// SessionExpiry is the broker-side session lifetime in seconds.
	SessionExpiry uint32

	// ConnectTimeout bounds each connection attempt.
	ConnectTimeout time.Duration
}

// ConfigFromMQTT maps the document-level broker section onto a session
// configuration.
func ConfigFromMQTT(mc config.MQTTConfig) Config {
	return Config{
		BrokerURL: mc.BrokerURL(),
		ClientID:  mc.ClientID,
		Username:  mc.User,
		Password:  mc.Password,
	}
}

func (c *Config) applyDefaults() {
	if c.KeepAlive == 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.SessionExpiry == 0 {
		c.SessionExpiry = defaultSessionExpiry
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
}

// MessageHandler consumes one inbound message.
type MessageHandler func(topic string, payload []byte)

// Metrics tracks broker session activity.
type Metrics struct {
	PublishesTotal     prometheus.Counter
	PublishErrorsTotal prometheus.Counter
	ReconnectsTotal    prometheus.Counter
}

func newMetrics(registry *metric.Registry, logger *slog.Logger) *Metrics {
	m := &Metrics{
		PublishesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_publishes_total",
			Help: "Total number of successful publishes",
		}),
		PublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_publish_errors_total",
			Help: "Total number of failed publishes",
		}),
		ReconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_reconnects_total",
			Help: "Total number of broker connection establishments",
		}),
	}

	if registry != nil {
		register := func(name string, err error) {
			if err != nil {
				logger.Warn("failed to register metric", "metric", name, "error", err)
			}
		}
		register("publishes_total", registry.RegisterCounter("mqtt", "publishes_total", m.PublishesTotal))
		register("publish_errors_total", registry.RegisterCounter("mqtt", "publish_errors_total", m.PublishErrorsTotal))
		register("reconnects_total", registry.RegisterCounter("mqtt", "reconnects_total", m.ReconnectsTotal))
	}
	return m
}

// Client is a broker session with automatic reconnection and a
// client-owned subscription table.
type Client struct {
	cfg       Config
	serverURL *url.URL
	logger    *slog.Logger
	metrics   *Metrics

	cm        *autopaho.ConnectionManager
	connected atomic.Bool

	mu            sync.Mutex
	subscriptions map[string]MessageHandler
}

// New validates the configuration and returns an unconnected client.
func New(cfg Config, logger *slog.Logger, registry *metric.Registry) (*Client, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: broker URL %q: %w", errors.ErrInvalidConfig, cfg.BrokerURL, err),
			"mqttclient", "New", "parse broker URL")
	}
	if u.Host == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: broker URL %q has no host", errors.ErrInvalidConfig, cfg.BrokerURL),
			"mqttclient", "New", "parse broker URL")
	}

	return &Client{
		cfg:           cfg,
		serverURL:     u,
		logger:        logger,
		metrics:       newMetrics(registry, logger),
		subscriptions: make(map[string]MessageHandler),
	}, nil
}

// Connect establishes the session and blocks until the first connection is
// up or the startup retry budget is exhausted. After it returns, reconnects
// are handled internally.
func (c *Client) Connect(ctx context.Context) error {
	if c.cm != nil {
		return errors.Wrap(errors.ErrAlreadyStarted, "mqttclient", "Connect", "establish session")
	}

	clientCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{c.serverURL},
		KeepAlive:                     c.cfg.KeepAlive,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		CleanStartOnInitialConnection: true,
		ConnectTimeout:                c.cfg.ConnectTimeout,
		OnConnectionUp:                c.onConnectionUp,
		OnConnectError: func(err error) {
			c.logger.Warn("broker connection attempt failed", "broker", c.cfg.BrokerURL, "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.onPublishReceived,
			},
			OnClientError: func(err error) {
				c.connected.Store(false)
				c.logger.Warn("broker connection lost", "error", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.connected.Store(false)
				c.logger.Warn("broker closed connection", "reason_code", d.ReasonCode)
			},
		},
	}
	if c.cfg.Username != "" {
		clientCfg.ConnectUsername = c.cfg.Username
		clientCfg.ConnectPassword = []byte(c.cfg.Password)
	}

	cm, err := autopaho.NewConnection(ctx, clientCfg)
	if err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrNoConnection, err),
			"mqttclient", "Connect", "create session")
	}
	c.cm = cm

	err = retry.Do(ctx, retry.Startup(), func() error {
		awaitCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
		return cm.AwaitConnection(awaitCtx)
	})
	if err != nil {
		_ = cm.Disconnect(context.Background())
		c.cm = nil
		return errors.WrapFatal(
			fmt.Errorf("%w: broker %s: %w", errors.ErrConnectionTimeout, c.cfg.BrokerURL, err),
			"mqttclient", "Connect", "await first connection")
	}
	return nil
}

// IsConnected reports whether the session currently has a live connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Publish sends one message. Retained messages replace the broker-held
// value for the topic.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if c.cm == nil {
		return errors.Wrap(errors.ErrNotStarted, "mqttclient", "Publish", "publish message")
	}

	_, err := c.cm.Publish(ctx, &paho.Publish{
		QoS:     publishQoS,
		Retain:  retain,
		Topic:   topic,
		Payload: payload,
	})
	if err != nil {
		c.metrics.PublishErrorsTotal.Inc()
		return errors.WrapTransient(err, "mqttclient", "Publish", "publish message")
	}
	c.metrics.PublishesTotal.Inc()
	return nil
}

// Subscribe registers a handler for a topic filter. The subscription is
// recorded in the client and restored on every reconnect.
func (c *Client) Subscribe(ctx context.Context, filter string, handler MessageHandler) error {
	c.mu.Lock()
	c.subscriptions[filter] = handler
	c.mu.Unlock()

	if c.cm == nil || !c.connected.Load() {
		// Recorded only; the connection-up callback subscribes.
		return nil
	}
	return c.sendSubscribe(ctx, []string{filter})
}

// Disconnect shuts the session down and waits for it to finish.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.cm == nil {
		return nil
	}
	c.connected.Store(false)
	if err := c.cm.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "mqttclient", "Disconnect", "close session")
	}
	select {
	case <-c.cm.Done():
	case <-ctx.Done():
		return errors.WrapTransient(ctx.Err(), "mqttclient", "Disconnect", "await session shutdown")
	}
	return nil
}

func (c *Client) onConnectionUp(cm *autopaho.ConnectionManager, connack *paho.Connack) {
	c.connected.Store(true)
	c.metrics.ReconnectsTotal.Inc()
	c.logger.Info("connected to broker",
		"broker", c.cfg.BrokerURL,
		"client_id", c.cfg.ClientID,
		"session_present", connack.SessionPresent)

	c.mu.Lock()
	filters := make([]string, 0, len(c.subscriptions))
	for f := range c.subscriptions {
		filters = append(filters, f)
	}
	c.mu.Unlock()

	if len(filters) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()
	if err := c.sendSubscribe(ctx, filters); err != nil {
		c.logger.Warn("failed to restore subscriptions", "error", err)
	}
}

func (c *Client) sendSubscribe(ctx context.Context, filters []string) error {
	subs := make([]paho.SubscribeOptions, 0, len(filters))
	for _, f := range filters {
		subs = append(subs, paho.SubscribeOptions{Topic: f, QoS: publishQoS})
	}
	_, err := c.cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs})
	if err != nil {
		return errors.WrapTransient(err, "mqttclient", "Subscribe", "subscribe to topics")
	}
	return nil
}

func (c *Client) onPublishReceived(pr paho.PublishReceived) (bool, error) {
	topic := pr.Packet.Topic
	payload := pr.Packet.Payload

	c.mu.Lock()
	var handlers []MessageHandler
	for filter, h := range c.subscriptions {
		if topicMatches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
	return len(handlers) > 0, nil
}
