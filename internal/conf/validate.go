package conf

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError aggregates every violation found in one pass, so a user
// can fix the whole file at once instead of replaying failures.
type ValidationError struct {
	Errors []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Errors, "; "))
}

// ValidateSettings checks the whole settings tree and returns a
// ValidationError listing every problem.
func ValidateSettings(settings *Settings) error {
	var ve ValidationError

	validateModemSettings(&ve, &settings.Modem)
	validateTransmitterSettings(&ve, &settings.Transmitter)
	validateReceiverSettings(&ve, &settings.Receiver)
	validateRealtimeSettings(&ve, &settings.Realtime)
	validateOutputSettings(&ve, &settings.Output)

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func (e *ValidationError) addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func validateModemSettings(ve *ValidationError, m *ModemSettings) {
	// Materializing the modulation parameters runs the full invariant
	// check: frequencies, Nyquist, volume range, samples per bit.
	if _, err := m.FSKConfig(); err != nil {
		ve.addf("modem: %v", err)
	}
}

func validateTransmitterSettings(ve *ValidationError, t *TransmitterSettings) {
	if t.ChunkMS <= 0 || t.ChunkMS > 1000 {
		ve.addf("transmitter.chunkms must be between 1 and 1000, got %d", t.ChunkMS)
	}
	if t.LeadInMS < 0 {
		ve.addf("transmitter.leadinms must not be negative, got %d", t.LeadInMS)
	}
	if t.LeadOutMS < 0 {
		ve.addf("transmitter.leadoutms must not be negative, got %d", t.LeadOutMS)
	}
}

func validateReceiverSettings(ve *ValidationError, r *ReceiverSettings) {
	if r.NoiseThreshold < 0 || r.NoiseThreshold > 1 {
		ve.addf("receiver.noisethreshold must be within 0.0 to 1.0, got %g", r.NoiseThreshold)
	}
	if r.SilenceTimeoutMS <= 0 {
		ve.addf("receiver.silencetimeoutms must be positive, got %d", r.SilenceTimeoutMS)
	}
	if r.TimeoutSeconds <= 0 {
		ve.addf("receiver.timeoutseconds must be positive, got %d", r.TimeoutSeconds)
	}
	if r.Gain.Enabled {
		if r.Gain.TargetPeak <= 0 || r.Gain.TargetPeak > 1 {
			ve.addf("receiver.gain.targetpeak must be within (0.0, 1.0], got %g", r.Gain.TargetPeak)
		}
		if r.Gain.MaxGain < 1 {
			ve.addf("receiver.gain.maxgain must be at least 1, got %g", r.Gain.MaxGain)
		}
	}
}

func validateRealtimeSettings(ve *ValidationError, r *RealtimeSettings) {
	if r.MQTT.Enabled {
		if r.MQTT.Broker == "" {
			ve.addf("realtime.mqtt.broker is required when MQTT is enabled")
		}
		if r.MQTT.Topic == "" {
			ve.addf("realtime.mqtt.topic is required when MQTT is enabled")
		}
	}
	if r.Telemetry.Enabled {
		if _, _, err := net.SplitHostPort(r.Telemetry.Listen); err != nil {
			ve.addf("realtime.telemetry.listen must be host:port, got %q", r.Telemetry.Listen)
		}
	}
}

func validateOutputSettings(ve *ValidationError, o *OutputSettings) {
	if o.Path == "" {
		ve.addf("output.path must not be empty")
	}
}
