package fsk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatone/tonewire/internal/errors"
)

func TestModeConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mode      Mode
		bitRate   int
		markFreq  float64
		spaceFreq float64
		leadFreq  float64
	}{
		{"audible", ModeAudible, 100, 1200, 2200, 800},
		{"ultrasonic", ModeUltrasonic, 600, 19000, 18000, 17500},
		{"minimal", ModeMinimal, 150, 1200, 2200, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := tt.mode.Config()
			require.NoError(t, err)
			assert.NoError(t, cfg.Validate())
			assert.Equal(t, DefaultSampleRate, cfg.SampleRate)
			assert.Equal(t, tt.bitRate, cfg.BitRate)
			assert.InDelta(t, tt.markFreq, cfg.MarkFreq, 0.01)
			assert.InDelta(t, tt.spaceFreq, cfg.SpaceFreq, 0.01)
			assert.InDelta(t, tt.leadFreq, cfg.LeadFreq, 0.01)
			assert.Positive(t, cfg.SamplesPerBit())
		})
	}
}

func TestModeConfigUnknown(t *testing.T) {
	t.Parallel()

	_, err := Mode("sideband").Config()
	assert.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode("ultrasonic")
	require.NoError(t, err)
	assert.Equal(t, ModeUltrasonic, mode)

	_, err = ParseMode("loud")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid, err := ModeAudible.Config()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"negative bit rate", func(c *Config) { c.BitRate = -100 }},
		{"bit rate too fast for sample rate", func(c *Config) { c.BitRate = 10000 }},
		{"zero mark frequency", func(c *Config) { c.MarkFreq = 0 }},
		{"zero space frequency", func(c *Config) { c.SpaceFreq = 0 }},
		{"identical mark and space", func(c *Config) { c.SpaceFreq = c.MarkFreq }},
		{"mark above nyquist", func(c *Config) { c.MarkFreq = 25000 }},
		{"space above nyquist", func(c *Config) { c.SpaceFreq = 24000 }},
		{"lead above nyquist", func(c *Config) { c.LeadFreq = 24000 }},
		{"volume above one", func(c *Config) { c.Volume = 1.5 }},
		{"negative volume", func(c *Config) { c.Volume = -0.1 }},
		{"preamble too short", func(c *Config) { c.PreambleBits = 1 }},
		{"negative postamble", func(c *Config) { c.PostambleBits = -1 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation),
				"validation failures must carry the validation category, got: %v", err)
		})
	}
}

func TestSamplesPerBit(t *testing.T) {
	t.Parallel()

	cfg := Config{SampleRate: 48000, BitRate: 100}
	assert.Equal(t, 480, cfg.SamplesPerBit())
	assert.Equal(t, 10*time.Millisecond, cfg.BitDuration())

	cfg.BitRate = 600
	assert.Equal(t, 80, cfg.SamplesPerBit())
}
