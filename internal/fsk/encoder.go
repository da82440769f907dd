package fsk

import (
	"encoding/binary"
	"time"

	"github.com/datatone/tonewire/internal/errors"
)

// ErrPayloadTooLarge is returned when a payload exceeds the 16-bit length
// field of the frame header.
var ErrPayloadTooLarge = errors.NewStd("payload too large")

// Encoder modulates byte payloads into PCM samples.
type Encoder struct {
	cfg Config
}

// NewEncoder validates cfg and returns an Encoder. The configuration is
// copied; an Encoder never changes behavior after construction.
func NewEncoder(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{cfg: cfg}, nil
}

// Config returns the encoder's modulation parameters.
func (e *Encoder) Config() Config { return e.cfg }

// EncodeBytes frames data and modulates it into float32 samples. The frame
// is preamble | length | payload | crc16 | postamble, one tone per bit,
// mark for 1 and space for 0. Encoding is deterministic.
func (e *Encoder) EncodeBytes(data []byte) ([]float32, error) {
	if len(data) > MaxPayloadSize {
		return nil, errors.Newf("%w: %d bytes exceeds frame limit of %d", ErrPayloadTooLarge, len(data), MaxPayloadSize).
			Component("fsk").
			Category(errors.CategoryEncode).
			Context("payload_bytes", len(data)).
			Build()
	}

	bits := e.frameBits(data)
	spb := e.cfg.SamplesPerBit()
	out := make([]float32, 0, len(bits)*spb)
	for _, bit := range bits {
		freq := e.cfg.SpaceFreq
		if bit == 1 {
			freq = e.cfg.MarkFreq
		}
		out = appendTone(out, freq, spb, e.cfg.SampleRate, e.cfg.Volume)
	}
	return out, nil
}

// Duration returns the play time of the modulated frame for a payload of
// the given size. Lead tones added by the transmitter are not included.
func (e *Encoder) Duration(payloadLen int) time.Duration {
	bits := e.cfg.PreambleBits + (frameOverheadBytes+payloadLen)*8 + e.cfg.PostambleBits
	samples := bits * e.cfg.SamplesPerBit()
	return time.Duration(samples) * time.Second / time.Duration(e.cfg.SampleRate)
}

// frameOverheadBytes is the length field plus the checksum trailer.
const frameOverheadBytes = 4

// frameBits lays out the complete frame as individual bits. Bytes are
// emitted most significant bit first.
func (e *Encoder) frameBits(data []byte) []byte {
	frame := make([]byte, 0, frameOverheadBytes+len(data))
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(data)))
	frame = append(frame, data...)
	frame = binary.BigEndian.AppendUint16(frame, Checksum(data))

	bits := make([]byte, 0, e.cfg.PreambleBits+len(frame)*8+e.cfg.PostambleBits)
	// Alternating preamble starting with a mark: 1,0,1,0,…
	for i := 0; i < e.cfg.PreambleBits; i++ {
		bits = append(bits, byte((i+1)%2))
	}
	for _, b := range frame {
		for shift := 7; shift >= 0; shift-- {
			bits = append(bits, b>>shift&1)
		}
	}
	// All-one postamble holds the carrier up long enough for silence
	// detection to close cleanly after the checksum.
	for i := 0; i < e.cfg.PostambleBits; i++ {
		bits = append(bits, 1)
	}
	return bits
}
