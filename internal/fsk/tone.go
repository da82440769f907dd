package fsk

import (
	"math"
	"time"
)

// Tone synthesizes count samples of a sine wave at freq, scaled by the
// configured volume. Each tone starts at phase zero, which keeps encoding
// deterministic.
func (c Config) Tone(freq float64, count int) []float32 {
	out := make([]float32, count)
	appendTone(out[:0], freq, count, c.SampleRate, c.Volume)
	return out
}

// ToneDuration synthesizes a tone of the given wall-clock duration.
func (c Config) ToneDuration(freq float64, d time.Duration) []float32 {
	count := int(d.Seconds() * float64(c.SampleRate))
	return c.Tone(freq, count)
}

// appendTone writes count sine samples into dst and returns the extended
// slice. Shared by Tone and the encoder's per-bit synthesis.
func appendTone(dst []float32, freq float64, count, sampleRate int, volume float64) []float32 {
	step := 2 * math.Pi * freq / float64(sampleRate)
	for i := 0; i < count; i++ {
		dst = append(dst, float32(volume*math.Sin(step*float64(i))))
	}
	return dst
}
