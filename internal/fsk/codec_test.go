package fsk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(ModeAudible)
	require.NoError(t, err)

	payload := []byte("codec round trip")
	samples, err := codec.Encode(payload)
	require.NoError(t, err)

	got, err := codec.Decode(samples)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestNewCodecWithConfigRejectsInvalid(t *testing.T) {
	t.Parallel()

	cfg, err := ModeAudible.Config()
	require.NoError(t, err)
	cfg.BitRate = 0

	_, err = NewCodecWithConfig(cfg)
	assert.Error(t, err)
}

func TestCodecDuration(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(ModeAudible)
	require.NoError(t, err)

	samples, err := codec.Encode(make([]byte, 20))
	require.NoError(t, err)

	wantSec := float64(len(samples)) / float64(codec.Config().SampleRate)
	assert.InDelta(t, wantSec, codec.Duration(20).Seconds(), 1e-6)
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(ModeAudible)
	require.NoError(t, err)

	payload := []byte("written to disk and back")
	samples, err := codec.Encode(payload)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "frame.wav")
	require.NoError(t, WriteWAV(path, samples, codec.Config().SampleRate))

	loaded, rate, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, codec.Config().SampleRate, rate)
	require.Len(t, loaded, len(samples))

	// 16-bit quantization noise sits ~96 dB down; the demodulator must not
	// notice it.
	got, err := codec.Decode(loaded)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("this is not a wav file"), 0o644))

	_, _, err := ReadWAV(path)
	assert.Error(t, err)
}

func TestReadWAVMissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := ReadWAV(filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}

func TestFloatsToPCM16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float32
		want int
	}{
		{"zero", 0, 0},
		{"full scale", 1.0, 32767},
		{"negative full scale", -1.0, -32767},
		{"clamped high", 1.5, 32767},
		{"clamped low", -2.0, -32767},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FloatsToPCM16([]float32{tt.in})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestPCM16ToFloats(t *testing.T) {
	t.Parallel()

	got := PCM16ToFloats([]int{0, 32767, -32768})
	require.Len(t, got, 3)
	assert.InDelta(t, 0, got[0], 1e-9)
	assert.InDelta(t, 1.0, got[1], 1e-3)
	assert.InDelta(t, -1.0, got[2], 1e-9)
}
