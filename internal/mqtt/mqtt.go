// Package mqtt publishes received frames and node status to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/datatone/tonewire/internal/logging"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	// It returns an error if the connection fails.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	// It returns an error if the publish operation fails.
	Publish(ctx context.Context, topic, payload string) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect announces the node as offline and closes the connection.
	Disconnect()

	// TestConnection performs a multi-stage test of the MQTT connection and
	// functionality. It streams test results through the provided channel.
	TestConnection(ctx context.Context, resultChan chan<- TestResult)
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // base topic; events publish here, status and test messages on subtopics
	Retain   bool   // true to retain event messages at the broker
	// Connection management
	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration
	// Connection timeouts
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// Package-level logger for MQTT related events.
var mqttLogger = logging.ForService("mqtt")

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    1 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}
