// client.go: paho-backed implementation of the Client interface.
package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/observability"
	"github.com/datatone/tonewire/internal/observability/metrics"
)

// ErrNotConnected is returned by Publish when no broker connection is up.
var ErrNotConnected = errors.NewStd("not connected to MQTT broker")

// client implements the Client interface.
type client struct {
	config          Config
	node            string
	version         string
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopOnce        sync.Once
	metrics         *metrics.MQTTMetrics
}

// NewClient creates a new MQTT client from the realtime settings.
func NewClient(settings *conf.Settings, m *observability.Metrics) (Client, error) {
	cfg := DefaultConfig()
	cfg.Broker = settings.Realtime.MQTT.Broker
	cfg.ClientID = settings.Main.Name
	cfg.Username = settings.Realtime.MQTT.Username
	cfg.Password = settings.Realtime.MQTT.Password
	cfg.Topic = settings.Realtime.MQTT.Topic
	cfg.Retain = settings.Realtime.MQTT.Retain

	return &client{
		config:        cfg,
		node:          settings.Main.Name,
		version:       settings.Version,
		reconnectStop: make(chan struct{}),
		metrics:       m.MQTT,
	}, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return errors.Newf("invalid broker URL: %w", err).
			Component("mqtt").
			Category(errors.CategoryValidation).
			Context("broker", c.config.Broker).
			Build()
	}

	host := u.Hostname()

	// Resolve the hostname up front so an unreachable broker fails fast
	// instead of spinning inside paho's retry loop.
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			// Surface DNS errors unwrapped; callers inspect them with errors.As.
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) {
				return dnsErr
			}
			return errors.Newf("failed to resolve hostname %s: %w", host, err).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Build()
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectRetry(true)
	// The broker announces us offline if the connection dies without a
	// clean disconnect.
	opts.SetWill(StatusTopic(c.config.Topic), c.statusPayload(StatusOffline), 0, true)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return errors.Newf("connection timeout after %v", c.config.ConnectTimeout).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.config.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("broker", c.config.Broker).
			Build()
	}

	c.metrics.UpdateConnectionStatus(true)

	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return errors.New(ErrNotConnected).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}

	mqttLogger.Debug("publishing message", "topic", topic, "size", len(payload))

	timer := c.metrics.StartPublishTimer()
	defer timer.ObserveDuration()

	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		mqttLogger.Warn("publish timed out", "topic", topic, "timeout", c.config.PublishTimeout)
		return errors.Newf("publish timeout after %v", c.config.PublishTimeout).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Context("topic", topic).
			Build()
	}

	c.metrics.IncrementMessagesDelivered()
	c.metrics.ObserveMessageSize(float64(len(payload)))

	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.announceStatus(c.internalClient, StatusOffline)
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.UpdateConnectionStatus(false)
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.stopOnce.Do(func() { close(c.reconnectStop) })
}

func (c *client) onConnect(pc mqtt.Client) {
	mqttLogger.Info("connected to MQTT broker", "broker", c.config.Broker)
	c.metrics.UpdateConnectionStatus(true)
	// Announce from a separate goroutine; paho connect handlers must not
	// block on the client they were called from.
	go c.announceStatus(pc, StatusOnline)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	mqttLogger.Warn("connection to MQTT broker lost", "broker", c.config.Broker, "error", err)
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	maxBackoff := 5 * time.Minute

	for {
		c.metrics.IncrementReconnectAttempts()
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			mqttLogger.Info("successfully reconnected to MQTT broker", "broker", c.config.Broker)
			return
		}

		c.metrics.IncrementErrors()
		mqttLogger.Warn("failed to reconnect to MQTT broker", "error", err, "retry_in", backoff)

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-c.reconnectStop:
			return
		}
	}
}
