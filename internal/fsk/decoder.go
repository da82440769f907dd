package fsk

import (
	"encoding/binary"

	"github.com/datatone/tonewire/internal/errors"
)

// Decode-quality sentinels. Callers distinguish them with errors.Is; all
// three mean the buffer did not contain a usable frame.
var (
	// ErrNoPreamble means no alternating preamble was found anywhere in
	// the buffer.
	ErrNoPreamble = errors.NewStd("no preamble detected")
	// ErrFrameTruncated means the buffer ended before the declared frame
	// was complete.
	ErrFrameTruncated = errors.NewStd("frame truncated")
	// ErrChecksum means the payload did not match its CRC trailer.
	ErrChecksum = errors.NewStd("checksum mismatch")
)

// Decoder demodulates PCM samples back into byte payloads.
type Decoder struct {
	cfg Config
}

// NewDecoder validates cfg and returns a Decoder.
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Decoder{cfg: cfg}, nil
}

// Config returns the decoder's modulation parameters.
func (d *Decoder) Config() Config { return d.cfg }

// DecodeSamples locates one frame in samples and returns its payload.
// Leading and trailing non-frame audio is skipped. Returned errors wrap
// ErrNoPreamble, ErrFrameTruncated, or ErrChecksum.
func (d *Decoder) DecodeSamples(samples []float32) ([]byte, error) {
	spb := d.cfg.SamplesPerBit()

	offset, ok := d.findPreamble(samples)
	if !ok {
		return nil, errors.Newf("%w in %d samples", ErrNoPreamble, len(samples)).
			Component("fsk").
			Category(errors.CategoryDecode).
			Build()
	}

	lengthBits, ok := d.readBits(samples, offset, 16)
	if !ok {
		return nil, errors.Newf("%w: buffer ends inside length field", ErrFrameTruncated).
			Component("fsk").
			Category(errors.CategoryDecode).
			Build()
	}
	length := int(binary.BigEndian.Uint16(bitsToBytes(lengthBits)))
	offset += 16 * spb

	// Payload plus the 16-bit checksum trailer.
	bodyBits, ok := d.readBits(samples, offset, (length+2)*8)
	if !ok {
		return nil, errors.Newf("%w: declared %d payload bytes, buffer too short", ErrFrameTruncated, length).
			Component("fsk").
			Category(errors.CategoryDecode).
			Context("declared_length", length).
			Build()
	}
	body := bitsToBytes(bodyBits)
	payload := body[:length]

	want := binary.BigEndian.Uint16(body[length:])
	if got := Checksum(payload); got != want {
		return nil, errors.Newf("%w: frame carries 0x%04X, payload sums to 0x%04X", ErrChecksum, want, got).
			Component("fsk").
			Category(errors.CategoryDecode).
			Context("declared_length", length).
			Build()
	}
	return payload, nil
}

// findPreamble scans for the alternating preamble. Candidate offsets
// advance by half a bit so the scan locks on within half a bit of the true
// start. It returns the sample offset of the first bit after the preamble.
func (d *Decoder) findPreamble(samples []float32) (int, bool) {
	spb := d.cfg.SamplesPerBit()
	need := d.cfg.PreambleBits * spb
	if spb == 0 || len(samples) < need {
		return 0, false
	}

	step := spb / 2
	if step < 1 {
		step = 1
	}
	for offset := 0; offset+need <= len(samples); offset += step {
		if d.matchPreamble(samples, offset) {
			return offset + need, true
		}
	}
	return 0, false
}

// matchPreamble checks whether every preamble bit decodes to the expected
// alternating value at the candidate offset.
func (d *Decoder) matchPreamble(samples []float32, offset int) bool {
	spb := d.cfg.SamplesPerBit()
	for i := 0; i < d.cfg.PreambleBits; i++ {
		want := byte((i + 1) % 2)
		start := offset + i*spb
		if d.decodeBit(samples[start:start+spb]) != want {
			return false
		}
	}
	return true
}

// decodeBit classifies one bit window by comparing Goertzel magnitudes at
// the mark and space frequencies. Ties go to mark, so silence reads as an
// unbroken run of ones and can never fake a preamble.
func (d *Decoder) decodeBit(window []float32) byte {
	mark := Goertzel(window, d.cfg.MarkFreq, d.cfg.SampleRate)
	space := Goertzel(window, d.cfg.SpaceFreq, d.cfg.SampleRate)
	if mark >= space {
		return 1
	}
	return 0
}

// readBits decodes count consecutive bits starting at the sample offset.
// It reports false when the buffer ends first.
func (d *Decoder) readBits(samples []float32, offset, count int) ([]byte, bool) {
	spb := d.cfg.SamplesPerBit()
	if offset < 0 || offset+count*spb > len(samples) {
		return nil, false
	}
	bits := make([]byte, count)
	for i := range bits {
		start := offset + i*spb
		bits[i] = d.decodeBit(samples[start : start+spb])
	}
	return bits, true
}

// bitsToBytes packs bits most significant first. len(bits) must be a
// multiple of eight.
func bitsToBytes(bits []byte) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var b byte
		for j := 0; j < 8; j++ {
			b = b<<1 | bits[i*8+j]
		}
		out[i] = b
	}
	return out
}
