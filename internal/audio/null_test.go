package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatone/tonewire/internal/errors"
)

func TestNullDeviceOutput(t *testing.T) {
	t.Parallel()

	dev := NewNullDevice()
	assert.True(t, dev.Available())

	stream, err := dev.OpenOutput(48000, 1)
	require.NoError(t, err)

	// 4800 samples at 48 kHz should pace at roughly 100 ms.
	start := time.Now()
	require.NoError(t, stream.Write(make([]float32, 4800)))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)

	require.NoError(t, stream.Close())
	err = stream.Write(make([]float32, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamClosed))
}

func TestNullDeviceInput(t *testing.T) {
	t.Parallel()

	dev := NewNullDevice()
	stream, err := dev.OpenInput(48000, 1)
	require.NoError(t, err)

	samples, err := stream.Read(4800)
	require.NoError(t, err)
	require.Len(t, samples, 4800)
	for _, s := range samples {
		assert.Zero(t, s)
	}

	require.NoError(t, stream.Close())
	_, err = stream.Read(10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamClosed))
}

func TestNullDeviceRejectsBadRate(t *testing.T) {
	t.Parallel()

	dev := NewNullDevice()
	_, err := dev.OpenOutput(0, 1)
	assert.Error(t, err)
	_, err = dev.OpenInput(-1, 1)
	assert.Error(t, err)
}

func TestMatchesDeviceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		enumerated string
		wanted     string
		want       bool
	}{
		{"exact", "USB Audio Device", "USB Audio Device", true},
		{"substring", "USB Audio Device", "usb audio", true},
		{"case insensitive", "Built-in Microphone", "BUILT-IN", true},
		{"trailing nulls", "sysdefault\x00\x00", "sysdefault", true},
		{"no match", "HDMI Output", "usb", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, matchesDeviceName(tt.enumerated, tt.wanted))
		})
	}
}

func TestHexToASCII(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		// "sysdefault" in hex, padded with NULs like ALSA IDs are.
		{"ascii id", "73797364656661756c740000", "sysdefault"},
		{"not hex", "zz-not-hex", "zz-not-hex"},
		{"binary id stays hex", "00ff00ff", "00ff00ff"},
		{"all nulls stay hex", "00000000", "00000000"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, hexToASCII(tt.in))
		})
	}
}
