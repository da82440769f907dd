// dto.go: data transfer objects for MQTT publishing.
package mqtt

import (
	"encoding/base64"
	"time"

	"github.com/datatone/tonewire/internal/bundle"
)

// ReceiveEventDTO is the data transfer object published for every decoded
// frame in daemon mode.
//
// IMPORTANT: Field names are part of the MQTT API contract. Subscribers
// filter and parse on them; do not rename existing fields. New fields may
// be added with camelCase names and omitempty.
type ReceiveEventDTO struct {
	ID      string  `json:"id"`      // short operation ID, matches the log stream
	Node    string  `json:"node"`    // name of the publishing node
	Time    string  `json:"time"`    // RFC3339 decode timestamp
	Mode    string  `json:"mode"`    // modulation profile that produced the frame
	Size    int     `json:"size"`    // decoded payload size in bytes
	Payload string  `json:"payload"` // base64-encoded payload
	RMS     float64 `json:"rms,omitempty"` // peak RMS level of the captured signal

	// Bundle fields, set only when the payload carried a file envelope.
	Bundle   bool   `json:"bundle,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

// NewReceiveEventDTO creates a ReceiveEventDTO for a decoded payload.
func NewReceiveEventDTO(id, node, mode string, payload []byte, rms float64) *ReceiveEventDTO {
	return &ReceiveEventDTO{
		ID:      id,
		Node:    node,
		Time:    time.Now().Format(time.RFC3339),
		Mode:    mode,
		Size:    len(payload),
		Payload: base64.StdEncoding.EncodeToString(payload),
		RMS:     rms,
	}
}

// SetBundle marks the event as a file transfer and records the original
// filename.
func (dto *ReceiveEventDTO) SetBundle(hdr *bundle.Header) {
	if hdr == nil || hdr.Name == "" {
		return
	}
	dto.Bundle = true
	dto.FileName = hdr.Name
}
