package fsk

import "time"

// Codec bundles a matched Encoder and Decoder for one modulation profile.
// It is the entry point most callers want: construct once from a Mode or a
// Config, then Encode and Decode freely. A Codec is safe for concurrent
// use; it holds no mutable state.
type Codec struct {
	cfg  Config
	mode Mode
	enc  *Encoder
	dec  *Decoder
}

// ModeCustom labels codecs built from explicit parameters rather than a
// predefined mode.
const ModeCustom Mode = "custom"

// NewCodec builds a codec from a predefined mode.
func NewCodec(mode Mode) (*Codec, error) {
	cfg, err := mode.Config()
	if err != nil {
		return nil, err
	}
	c, err := NewCodecWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	c.mode = mode
	return c, nil
}

// NewCodecWithConfig builds a codec from explicit modulation parameters.
func NewCodecWithConfig(cfg Config) (*Codec, error) {
	enc, err := NewEncoder(cfg)
	if err != nil {
		return nil, err
	}
	dec, err := NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	return &Codec{cfg: cfg, mode: ModeCustom, enc: enc, dec: dec}, nil
}

// Config returns the codec's modulation parameters.
func (c *Codec) Config() Config { return c.cfg }

// Mode returns the profile the codec was built from, or ModeCustom when it
// was built from explicit parameters.
func (c *Codec) Mode() Mode { return c.mode }

// Encode modulates a payload into float32 samples.
func (c *Codec) Encode(data []byte) ([]float32, error) {
	return c.enc.EncodeBytes(data)
}

// Decode extracts a payload from float32 samples.
func (c *Codec) Decode(samples []float32) ([]byte, error) {
	return c.dec.DecodeSamples(samples)
}

// Duration returns the frame play time for a payload of the given size.
func (c *Codec) Duration(payloadLen int) time.Duration {
	return c.enc.Duration(payloadLen)
}
