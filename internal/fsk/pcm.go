package fsk

// FloatsToPCM16 converts float32 samples to signed 16-bit PCM values.
// Input outside [-1.0, 1.0] is clamped rather than wrapped.
func FloatsToPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int(s * 32767)
	}
	return out
}

// PCM16ToFloats converts signed 16-bit PCM values to float32 samples.
func PCM16ToFloats(pcm []int) []float32 {
	out := make([]float32, len(pcm))
	for i, v := range pcm {
		out[i] = float32(v) / 32768
	}
	return out
}
