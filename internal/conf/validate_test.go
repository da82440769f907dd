package conf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatone/tonewire/internal/fsk"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Main.Name = "tonewire"
	s.Modem = ModemSettings{Mode: "audible", Volume: 0.8}
	s.Transmitter = TransmitterSettings{ChunkMS: 100, LeadInMS: 200, LeadOutMS: 150}
	s.Receiver = ReceiverSettings{
		NoiseThreshold:   0.02,
		SilenceTimeoutMS: 500,
		TimeoutSeconds:   10,
		Gain:             GainSettings{Enabled: true, TargetPeak: 0.5, MaxGain: 20},
	}
	s.Realtime.MQTT = MQTTSettings{Broker: "tcp://localhost:1883", Topic: "tonewire/frames"}
	s.Realtime.Telemetry = TelemetrySettings{Listen: "0.0.0.0:8090"}
	s.Output.Path = "output"
	return s
}

func TestValidateSettingsAccepted(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantSub string
	}{
		{
			name:    "unknown modem mode",
			mutate:  func(s *Settings) { s.Modem.Mode = "shortwave" },
			wantSub: "modem",
		},
		{
			name:    "volume out of range",
			mutate:  func(s *Settings) { s.Modem.Volume = 1.2 },
			wantSub: "modem",
		},
		{
			name:    "mark frequency above nyquist",
			mutate:  func(s *Settings) { s.Modem.MarkFreq = 30000 },
			wantSub: "modem",
		},
		{
			name:    "chunk too large",
			mutate:  func(s *Settings) { s.Transmitter.ChunkMS = 5000 },
			wantSub: "transmitter.chunkms",
		},
		{
			name:    "negative lead in",
			mutate:  func(s *Settings) { s.Transmitter.LeadInMS = -1 },
			wantSub: "transmitter.leadinms",
		},
		{
			name:    "noise threshold above one",
			mutate:  func(s *Settings) { s.Receiver.NoiseThreshold = 1.5 },
			wantSub: "receiver.noisethreshold",
		},
		{
			name:    "zero listen timeout",
			mutate:  func(s *Settings) { s.Receiver.TimeoutSeconds = 0 },
			wantSub: "receiver.timeoutseconds",
		},
		{
			name:    "gain target peak above one",
			mutate:  func(s *Settings) { s.Receiver.Gain.TargetPeak = 2 },
			wantSub: "receiver.gain.targetpeak",
		},
		{
			name: "mqtt enabled without broker",
			mutate: func(s *Settings) {
				s.Realtime.MQTT.Enabled = true
				s.Realtime.MQTT.Broker = ""
			},
			wantSub: "realtime.mqtt.broker",
		},
		{
			name: "telemetry listen without port",
			mutate: func(s *Settings) {
				s.Realtime.Telemetry.Enabled = true
				s.Realtime.Telemetry.Listen = "localhost"
			},
			wantSub: "realtime.telemetry.listen",
		},
		{
			name:    "empty output path",
			mutate:  func(s *Settings) { s.Output.Path = "" },
			wantSub: "output.path",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantSub),
				"error %q should mention %q", err.Error(), tt.wantSub)
		})
	}
}

func TestValidationErrorAggregates(t *testing.T) {
	t.Parallel()

	s := validSettings()
	s.Modem.Mode = "shortwave"
	s.Output.Path = ""

	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestFSKConfigOverrides(t *testing.T) {
	t.Parallel()

	m := ModemSettings{
		Mode:          "audible",
		Volume:        0.4,
		BitRate:       200,
		MarkFreq:      1000,
		SpaceFreq:     2000,
		PreambleBits:  24,
		PostambleBits: 12,
	}

	cfg, err := m.FSKConfig()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.BitRate)
	assert.InDelta(t, 1000.0, cfg.MarkFreq, 0.01)
	assert.InDelta(t, 2000.0, cfg.SpaceFreq, 0.01)
	assert.InDelta(t, 0.4, cfg.Volume, 1e-9)
	assert.Equal(t, 24, cfg.PreambleBits)
	assert.Equal(t, 12, cfg.PostambleBits)
}

func TestFSKConfigRejectsBadOverride(t *testing.T) {
	t.Parallel()

	m := ModemSettings{Mode: "audible", Volume: 0.8, MarkFreq: 2200, SpaceFreq: 2200}
	_, err := m.FSKConfig()
	assert.Error(t, err, "identical mark and space must fail validation")
}

func TestModemSettingsCodec(t *testing.T) {
	t.Parallel()

	t.Run("plain mode keeps its name", func(t *testing.T) {
		t.Parallel()

		m := ModemSettings{Mode: "ultrasonic"}
		codec, err := m.Codec()
		require.NoError(t, err)
		assert.Equal(t, fsk.ModeUltrasonic, codec.Mode())
	})

	t.Run("override becomes a custom profile", func(t *testing.T) {
		t.Parallel()

		m := ModemSettings{Mode: "audible", BitRate: 200}
		codec, err := m.Codec()
		require.NoError(t, err)
		assert.Equal(t, fsk.ModeCustom, codec.Mode())
		assert.Equal(t, 200, codec.Config().BitRate)
	})

	t.Run("unknown mode fails", func(t *testing.T) {
		t.Parallel()

		m := ModemSettings{Mode: "shortwave"}
		_, err := m.Codec()
		assert.Error(t, err)
	})
}
