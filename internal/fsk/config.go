package fsk

import (
	"time"

	"github.com/datatone/tonewire/internal/errors"
)

// DefaultSampleRate is the sample rate used by all built-in modes. 48 kHz
// keeps the 19 kHz ultrasonic mark tone comfortably under Nyquist.
const DefaultSampleRate = 48000

// MaxPayloadSize is the largest payload a single frame can carry, bounded
// by the 16-bit length field.
const MaxPayloadSize = 65535

// Default frame margins.
const (
	DefaultPreambleBits  = 16
	DefaultPostambleBits = 8
)

// Config holds the modulation parameters for one FSK channel. A Config is
// immutable after validation; all derived quantities are computed on the fly.
type Config struct {
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int
	// BitRate is the symbol rate in bits per second.
	BitRate int
	// MarkFreq is the tone frequency in Hz representing a 1 bit.
	MarkFreq float64
	// SpaceFreq is the tone frequency in Hz representing a 0 bit.
	SpaceFreq float64
	// LeadFreq is the framing tone played before and after a transmission
	// so receivers can open their noise gate ahead of the preamble. Zero
	// disables lead tones.
	LeadFreq float64
	// Volume scales generated samples, 0.0 to 1.0.
	Volume float64
	// PreambleBits is the number of alternating 1010… bits preceding the
	// length field.
	PreambleBits int
	// PostambleBits is the number of all-one bits following the checksum.
	PostambleBits int
}

// SamplesPerBit returns how many samples encode one bit.
func (c Config) SamplesPerBit() int {
	if c.BitRate <= 0 {
		return 0
	}
	return c.SampleRate / c.BitRate
}

// BitDuration returns the wall-clock duration of one bit.
func (c Config) BitDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.SamplesPerBit()) * time.Second / time.Duration(c.SampleRate)
}

// Validate checks the configuration invariants. It returns the first
// violation found.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.Newf(format, args...).
			Component("fsk").
			Category(errors.CategoryValidation).
			Build()
	}

	switch {
	case c.SampleRate <= 0:
		return fail("invalid sample rate %d: must be positive", c.SampleRate)
	case c.BitRate <= 0:
		return fail("invalid bit rate %d: must be positive", c.BitRate)
	case c.SamplesPerBit() < 8:
		return fail("invalid bit rate %d: fewer than 8 samples per bit at %d Hz", c.BitRate, c.SampleRate)
	case c.MarkFreq <= 0:
		return fail("invalid mark frequency %.1f: must be positive", c.MarkFreq)
	case c.SpaceFreq <= 0:
		return fail("invalid space frequency %.1f: must be positive", c.SpaceFreq)
	case c.MarkFreq == c.SpaceFreq:
		return fail("mark and space frequencies must differ, both are %.1f Hz", c.MarkFreq)
	case c.MarkFreq >= float64(c.SampleRate)/2:
		return fail("mark frequency %.1f exceeds Nyquist limit %.1f", c.MarkFreq, float64(c.SampleRate)/2)
	case c.SpaceFreq >= float64(c.SampleRate)/2:
		return fail("space frequency %.1f exceeds Nyquist limit %.1f", c.SpaceFreq, float64(c.SampleRate)/2)
	case c.LeadFreq < 0 || c.LeadFreq >= float64(c.SampleRate)/2:
		return fail("lead frequency %.1f out of range", c.LeadFreq)
	case c.Volume < 0 || c.Volume > 1:
		return fail("invalid volume %.2f: must be within 0.0 to 1.0", c.Volume)
	case c.PreambleBits < 2:
		return fail("invalid preamble length %d: need at least 2 bits", c.PreambleBits)
	case c.PostambleBits < 0:
		return fail("invalid postamble length %d", c.PostambleBits)
	}
	return nil
}

// Mode selects a predefined modulation profile.
type Mode string

const (
	// ModeAudible uses Bell-202-adjacent tones in the voice band. Robust
	// over speakers and microphones, clearly audible to people.
	ModeAudible Mode = "audible"
	// ModeUltrasonic places both tones near the top of the audible band
	// where most adults cannot hear them. Requires hardware that is flat
	// up to 19 kHz.
	ModeUltrasonic Mode = "ultrasonic"
	// ModeMinimal is the audible profile at a higher symbol rate with no
	// lead tones, for short machine-to-machine bursts.
	ModeMinimal Mode = "minimal"
)

// Config returns the modulation parameters for the mode.
func (m Mode) Config() (Config, error) {
	switch m {
	case ModeAudible:
		return Config{
			SampleRate:    DefaultSampleRate,
			BitRate:       100,
			MarkFreq:      1200,
			SpaceFreq:     2200,
			LeadFreq:      800,
			Volume:        0.8,
			PreambleBits:  DefaultPreambleBits,
			PostambleBits: DefaultPostambleBits,
		}, nil
	case ModeUltrasonic:
		return Config{
			SampleRate:    DefaultSampleRate,
			BitRate:       600,
			MarkFreq:      19000,
			SpaceFreq:     18000,
			LeadFreq:      17500,
			Volume:        0.8,
			PreambleBits:  DefaultPreambleBits,
			PostambleBits: DefaultPostambleBits,
		}, nil
	case ModeMinimal:
		return Config{
			SampleRate:    DefaultSampleRate,
			BitRate:       150,
			MarkFreq:      1200,
			SpaceFreq:     2200,
			LeadFreq:      0,
			Volume:        0.8,
			PreambleBits:  DefaultPreambleBits,
			PostambleBits: DefaultPostambleBits,
		}, nil
	default:
		return Config{}, errors.Newf("unknown mode %q", string(m)).
			Component("fsk").
			Category(errors.CategoryValidation).
			Build()
	}
}

// ParseMode converts a string to a Mode, accepting the mode names used in
// configuration files and command line flags.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAudible, ModeUltrasonic, ModeMinimal:
		return Mode(s), nil
	default:
		return "", errors.Newf("unknown mode %q: valid modes are audible, ultrasonic, minimal", s).
			Component("fsk").
			Category(errors.CategoryValidation).
			Build()
	}
}
