package fsk

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatone/tonewire/internal/errors"
)

func newTestPair(t *testing.T, mode Mode) (*Encoder, *Decoder) {
	t.Helper()
	cfg, err := mode.Config()
	require.NoError(t, err)
	enc, err := NewEncoder(cfg)
	require.NoError(t, err)
	dec, err := NewDecoder(cfg)
	require.NoError(t, err)
	return enc, dec
}

// binaryPayload returns a reproducible payload that exercises zero bytes,
// all-one bytes, and arbitrary bit patterns.
func binaryPayload(n int) []byte {
	r := rand.New(rand.NewSource(7))
	buf := make([]byte, n)
	_, _ = r.Read(buf)
	buf[0], buf[1] = 0x00, 0xFF
	return buf
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    Mode
		payload []byte
	}{
		{"audible text", ModeAudible, []byte("Hello uDOS!")},
		{"audible empty payload", ModeAudible, []byte{}},
		{"audible binary", ModeAudible, binaryPayload(64)},
		{"ultrasonic short", ModeUltrasonic, []byte("ping")},
		{"ultrasonic binary", ModeUltrasonic, binaryPayload(32)},
		{"ultrasonic 255 bytes", ModeUltrasonic, binaryPayload(255)},
		{"minimal burst", ModeMinimal, []byte("burst data 123")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc, dec := newTestPair(t, tt.mode)

			samples, err := enc.EncodeBytes(tt.payload)
			require.NoError(t, err)

			got, err := dec.DecodeSamples(samples)
			require.NoError(t, err)
			if len(tt.payload) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.payload, got)
			}
		})
	}
}

func TestDecodeSilence(t *testing.T) {
	t.Parallel()

	_, dec := newTestPair(t, ModeAudible)

	_, err := dec.DecodeSamples(make([]float32, 48000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPreamble))
	assert.True(t, errors.IsCategory(err, errors.CategoryDecode))
}

func TestDecodeNoise(t *testing.T) {
	t.Parallel()

	_, dec := newTestPair(t, ModeAudible)

	r := rand.New(rand.NewSource(11))
	noise := make([]float32, 48000)
	for i := range noise {
		noise[i] = (r.Float32()*2 - 1) * 0.3
	}

	_, err := dec.DecodeSamples(noise)
	assert.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	enc, dec := newTestPair(t, ModeAudible)
	samples, err := enc.EncodeBytes([]byte("Hello uDOS!"))
	require.NoError(t, err)

	tests := []struct {
		name string
		frac float64
	}{
		{"tenth", 0.10},
		{"third", 0.33},
		{"half", 0.50},
		{"three quarters", 0.75},
		{"ninety percent", 0.90},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cut := samples[:int(float64(len(samples))*tt.frac)]
			_, err := dec.DecodeSamples(cut)
			require.Error(t, err)
			assert.True(t,
				errors.Is(err, ErrNoPreamble) || errors.Is(err, ErrFrameTruncated),
				"expected a preamble or truncation failure, got: %v", err)
		})
	}
}

func TestDecodeCorruptedPayload(t *testing.T) {
	t.Parallel()

	enc, dec := newTestPair(t, ModeAudible)
	cfg := enc.Config()
	samples, err := enc.EncodeBytes([]byte("Hello uDOS!"))
	require.NoError(t, err)

	// Flatten two payload bytes' worth of tone to silence. The bit
	// classifier reads silence as ones, so the payload changes and the
	// checksum must catch it.
	spb := cfg.SamplesPerBit()
	payloadStart := (cfg.PreambleBits + 16) * spb
	for i := payloadStart + 8*8*spb; i < payloadStart+10*8*spb; i++ {
		samples[i] = 0
	}

	_, err = dec.DecodeSamples(samples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksum), "expected checksum failure, got: %v", err)
}

func TestDecodeSilencePadding(t *testing.T) {
	t.Parallel()

	enc, dec := newTestPair(t, ModeAudible)
	payload := []byte("padded")
	samples, err := enc.EncodeBytes(payload)
	require.NoError(t, err)

	tests := []struct {
		name  string
		lead  int
		trail int
	}{
		{"quarter second lead", 12000, 0},
		{"unaligned lead", 1000, 0},
		{"trailing only", 0, 2400},
		{"both sides", 6000, 6000},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			padded := make([]float32, tt.lead+len(samples)+tt.trail)
			copy(padded[tt.lead:], samples)

			got, err := dec.DecodeSamples(padded)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

// The receiver hands the decoder everything it buffered, which includes the
// transmitter's lead-in and lead-out tones around the frame.
func TestDecodeWithLeadTones(t *testing.T) {
	t.Parallel()

	enc, dec := newTestPair(t, ModeAudible)
	cfg := enc.Config()
	payload := []byte("gated")

	frame, err := enc.EncodeBytes(payload)
	require.NoError(t, err)

	lead := cfg.ToneDuration(cfg.LeadFreq, 200*time.Millisecond)
	capture := make([]float32, 0, 2*len(lead)+len(frame))
	capture = append(capture, lead...)
	capture = append(capture, frame...)
	capture = append(capture, lead...)

	got, err := dec.DecodeSamples(capture)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecodeBitClassification(t *testing.T) {
	t.Parallel()

	_, dec := newTestPair(t, ModeAudible)
	cfg := dec.Config()
	spb := cfg.SamplesPerBit()

	assert.Equal(t, byte(1), dec.decodeBit(cfg.Tone(cfg.MarkFreq, spb)))
	assert.Equal(t, byte(0), dec.decodeBit(cfg.Tone(cfg.SpaceFreq, spb)))
	// Silence is a tie; ties go to mark.
	assert.Equal(t, byte(1), dec.decodeBit(make([]float32, spb)))
}

func TestDecodeSamplesTooShortForPreamble(t *testing.T) {
	t.Parallel()

	_, dec := newTestPair(t, ModeAudible)
	cfg := dec.Config()

	// One sample short of the preamble span.
	short := make([]float32, cfg.PreambleBits*cfg.SamplesPerBit()-1)
	_, err := dec.DecodeSamples(short)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPreamble))
}
