// testing.go provides MQTT connection and functionality testing capabilities
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TestResult represents the result of an MQTT test
type TestResult struct {
	Success    bool   `json:"success"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
	IsProgress bool   `json:"isProgress,omitempty"`
	State      string `json:"state,omitempty"`     // Current state: running, completed, failed, timeout
	Timestamp  string `json:"timestamp,omitempty"` // ISO8601 timestamp of the result
}

// TestStage represents a stage in the MQTT test process
type TestStage int

const (
	DNSResolution TestStage = iota
	TCPConnection
	MQTTConnection
	MessagePublish
)

// String returns the string representation of a test stage
func (s TestStage) String() string {
	switch s {
	case DNSResolution:
		return "DNS Resolution"
	case TCPConnection:
		return "TCP Connection"
	case MQTTConnection:
		return "MQTT Connection"
	case MessagePublish:
		return "Message Publishing"
	default:
		return "Unknown Stage"
	}
}

// Timeout constants for various test stages
const (
	dnsTimeout  = 5 * time.Second
	tcpTimeout  = 5 * time.Second
	mqttTimeout = 10 * time.Second
	pubTimeout  = 5 * time.Second
)

// networkTest represents a generic network test function
type networkTest func(context.Context) error

// runNetworkTest executes a network test with proper timeout and cleanup
func runNetworkTest(ctx context.Context, stage TestStage, test networkTest) TestResult {
	resultChan := make(chan error, 1)

	go func() {
		resultChan <- test(ctx)
	}()

	// Wait for either test completion or context cancellation
	select {
	case <-ctx.Done():
		return TestResult{
			Success: false,
			Stage:   stage.String(),
			Error:   "operation timeout",
			Message: fmt.Sprintf("%s operation timed out", stage),
		}
	case err := <-resultChan:
		if err != nil {
			return TestResult{
				Success: false,
				Stage:   stage.String(),
				Error:   err.Error(),
				Message: fmt.Sprintf("Failed to perform %s", stage),
			}
		}
	}

	return TestResult{
		Success: true,
		Stage:   stage.String(),
		Message: fmt.Sprintf("Successfully completed %s", stage),
	}
}

// testDNSStage performs DNS resolution testing
func (c *client) testDNSStage(ctx context.Context, brokerHost string) TestResult {
	dnsCtx, dnsCancel := context.WithTimeout(ctx, dnsTimeout)
	defer dnsCancel()

	return runNetworkTest(dnsCtx, DNSResolution, func(ctx context.Context) error {
		_, err := net.DefaultResolver.LookupHost(ctx, brokerHost)
		return err
	})
}

// testTCPStage performs TCP connection testing
func (c *client) testTCPStage(ctx context.Context) TestResult {
	tcpCtx, tcpCancel := context.WithTimeout(ctx, tcpTimeout)
	defer tcpCancel()

	return runNetworkTest(tcpCtx, TCPConnection, func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", extractHostPort(c.config.Broker))
		if err != nil {
			return err
		}
		defer conn.Close()
		return nil
	})
}

// testMQTTStage performs MQTT connection testing
func (c *client) testMQTTStage(ctx context.Context) TestResult {
	if c.IsConnected() {
		return TestResult{
			Success: true,
			Stage:   MQTTConnection.String(),
			Message: "Already connected to MQTT broker",
		}
	}

	mqttCtx, mqttCancel := context.WithTimeout(ctx, mqttTimeout)
	defer mqttCancel()

	return runNetworkTest(mqttCtx, MQTTConnection, func(ctx context.Context) error {
		return c.Connect(ctx)
	})
}

// testPublishStage publishes a synthetic receive event to the test subtopic
func (c *client) testPublishStage(ctx context.Context) TestResult {
	pubCtx, pubCancel := context.WithTimeout(ctx, pubTimeout)
	defer pubCancel()

	return runNetworkTest(pubCtx, MessagePublish, func(ctx context.Context) error {
		event := NewReceiveEventDTO(
			uuid.New().String()[:8],
			c.node,
			"test",
			[]byte("tonewire connectivity test"),
			0,
		)

		eventJSON, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to create test message: %w", err)
		}

		return c.Publish(ctx, TestTopic(c.config.Topic), string(eventJSON))
	})
}

// TestConnection performs a multi-stage test of the MQTT connection and functionality
func (c *client) TestConnection(ctx context.Context, resultChan chan<- TestResult) {
	// Helper function to send a result
	sendResult := func(result TestResult) {
		// Mark progress messages
		result.IsProgress = strings.Contains(strings.ToLower(result.Message), "running")

		// Set state based on result
		switch {
		case result.Error != "":
			result.State = "failed"
			result.Success = false
			result.IsProgress = false
			if strings.Contains(strings.ToLower(result.Error), "timeout") ||
				strings.Contains(strings.ToLower(result.Error), "deadline exceeded") {
				result.State = "timeout"
			}
		case result.IsProgress:
			result.State = "running"
		case result.Success:
			result.State = "completed"
		default:
			result.State = "failed"
		}

		result.Timestamp = time.Now().Format(time.RFC3339)

		if result.Success || result.IsProgress {
			mqttLogger.Info("connection test stage", "stage", result.Stage, "state", result.State, "message", result.Message)
		} else {
			mqttLogger.Warn("connection test stage failed", "stage", result.Stage, "state", result.State, "error", result.Error)
		}

		select {
		case <-ctx.Done():
			return
		case resultChan <- result:
		}
	}

	// Check context before starting
	if err := ctx.Err(); err != nil {
		sendResult(TestResult{
			Success: false,
			Stage:   "Test Setup",
			Message: "Test cancelled",
			Error:   err.Error(),
			State:   "timeout",
		})
		return
	}

	// Extract broker host for testing
	brokerHost := extractHost(c.config.Broker)
	isIP := isIPAddress(brokerHost)

	// Helper function to run a test stage
	runStage := func(stage TestStage, test func() TestResult) bool {
		sendResult(TestResult{
			Success: true,
			Stage:   stage.String(),
			Message: fmt.Sprintf("Running %s test...", stage.String()),
		})

		result := test()
		sendResult(result)
		return result.Success
	}

	// Stage 1: DNS Resolution (skip if IP address)
	if !isIP {
		if !runStage(DNSResolution, func() TestResult {
			return c.testDNSStage(ctx, brokerHost)
		}) {
			return
		}
	}

	// Stage 2: TCP Connection
	if !runStage(TCPConnection, func() TestResult {
		return c.testTCPStage(ctx)
	}) {
		return
	}

	// Stage 3: MQTT Connection
	if !runStage(MQTTConnection, func() TestResult {
		return c.testMQTTStage(ctx)
	}) {
		return
	}

	// Stage 4: Message Publishing
	runStage(MessagePublish, func() TestResult {
		return c.testPublishStage(ctx)
	})
}

// isIPAddress checks if the given host is an IP address
func isIPAddress(host string) bool {
	// Remove protocol prefix if present
	if strings.Contains(host, "://") {
		parts := strings.Split(host, "://")
		if len(parts) != 2 {
			return false
		}
		// Only allow mqtt and tcp protocols
		if parts[0] != "mqtt" && parts[0] != "tcp" {
			return false
		}
		host = parts[1]
	}

	// Handle IPv6 addresses with brackets
	if strings.HasPrefix(host, "[") {
		// Extract the IPv6 address from within brackets
		end := strings.LastIndex(host, "]")
		if end == -1 {
			return false // Malformed IPv6 address with opening bracket but no closing bracket
		}
		// Extract the address without brackets
		host = host[1:end]
	} else if strings.Contains(host, ":") {
		// If it contains a colon but no brackets, it could be either:
		// 1. An IPv4 address with port (e.g. "192.168.1.1:1883")
		// 2. A raw IPv6 address (e.g. "::1" or "2001:db8::1")

		// If it has more than 2 colons, assume it's IPv6
		if strings.Count(host, ":") <= 1 {
			// Likely IPv4 with port, remove the port
			host = strings.Split(host, ":")[0]
		}
		// Otherwise leave it as is for IPv6 parsing
	}

	// Try to parse as IP address
	ip := net.ParseIP(host)
	return ip != nil
}

// extractHost extracts the hostname from broker URL
func extractHost(broker string) string {
	// Remove protocol prefix if present
	if strings.Contains(broker, "://") {
		parts := strings.Split(broker, "://")
		if len(parts) != 2 {
			return broker
		}
		broker = parts[1]
	}

	// Handle IPv6 addresses with brackets
	if strings.HasPrefix(broker, "[") {
		end := strings.LastIndex(broker, "]")
		if end == -1 {
			return broker // Malformed IPv6 address
		}
		return broker[1:end] // Return without brackets
	}

	// For IPv4 or hostname, remove port if present
	if strings.Count(broker, ":") <= 1 {
		if i := strings.LastIndex(broker, ":"); i != -1 {
			return broker[:i]
		}
	}
	// For IPv6 without brackets or no port, return as is
	return broker
}

// extractHostPort extracts host:port from broker URL
func extractHostPort(broker string) string {
	// Remove protocol prefix if present
	if strings.Contains(broker, "://") {
		parts := strings.Split(broker, "://")
		if len(parts) != 2 {
			return broker
		}
		broker = parts[1]
	}

	// Handle IPv6 addresses
	if strings.HasPrefix(broker, "[") {
		// IPv6 with port
		if i := strings.LastIndex(broker, "]:"); i != -1 {
			return broker
		}
		// IPv6 without port
		if strings.HasSuffix(broker, "]") {
			return broker[:len(broker)-1] + "]:1883"
		}
		// Malformed IPv6
		return broker
	}

	// Check if this might be a raw IPv6 address
	if strings.Count(broker, ":") > 1 {
		// Add brackets and port
		return "[" + broker + "]:1883"
	}

	// IPv4 or hostname
	if !strings.Contains(broker, ":") {
		return broker + ":1883"
	}

	return broker
}
