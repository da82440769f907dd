// status.go: retained node presence messages. A status subtopic carries an
// "online" message after every successful connect and an "offline" message
// on clean disconnect; the broker's last-will mechanism covers unclean
// drops.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Node status values published to the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// defaultBaseTopic is used when no topic is configured, which only happens
// for clients built outside the validated settings path.
const defaultBaseTopic = "tonewire"

// StatusMessage is the retained presence payload. Field names are part of
// the published MQTT contract; do not rename them.
type StatusMessage struct {
	Node    string `json:"node"`
	Status  string `json:"status"`
	Time    string `json:"time"`
	Version string `json:"version,omitempty"`
}

// StatusTopic returns the presence subtopic for a base topic.
func StatusTopic(baseTopic string) string {
	return subtopic(baseTopic, "status")
}

// TestTopic returns the connectivity-test subtopic for a base topic.
func TestTopic(baseTopic string) string {
	return subtopic(baseTopic, "test")
}

func subtopic(baseTopic, leaf string) string {
	baseTopic = strings.TrimRight(baseTopic, "/")
	if baseTopic == "" {
		baseTopic = defaultBaseTopic
	}
	return baseTopic + "/" + leaf
}

// statusPayload builds the presence JSON for the given status.
func (c *client) statusPayload(status string) string {
	msg := StatusMessage{
		Node:    c.node,
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: c.version,
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		// Marshaling a flat struct of strings cannot fail; keep the broker
		// informed anyway.
		return `{"status":"` + status + `"}`
	}
	return string(payload)
}

// announceStatus publishes a retained presence message on the status topic.
// It talks to the paho client directly so it stays safe to call from
// connection handlers without touching the client mutex.
func (c *client) announceStatus(pc mqtt.Client, status string) {
	topic := StatusTopic(c.config.Topic)
	token := pc.Publish(topic, 0, true, c.statusPayload(status))
	if !token.WaitTimeout(c.config.PublishTimeout) {
		mqttLogger.Warn("status announcement timed out", "topic", topic, "status", status)
		return
	}
	if err := token.Error(); err != nil {
		mqttLogger.Warn("status announcement failed", "topic", topic, "status", status, "error", err)
		return
	}
	mqttLogger.Debug("announced node status", "topic", topic, "status", status)
}
