package fsk

import "math"

// Goertzel computes the magnitude of a single frequency bin over window
// using the Goertzel algorithm. It is an order of magnitude cheaper than a
// full FFT when only one or two bins are needed, which is exactly the
// mark/space comparison the demodulator performs per bit.
func Goertzel(window []float32, freq float64, sampleRate int) float64 {
	n := len(window)
	if n == 0 || sampleRate <= 0 {
		return 0
	}

	// Round the target frequency to the nearest bin for this window size.
	k := math.Round(float64(n) * freq / float64(sampleRate))
	omega := 2 * math.Pi * k / float64(n)
	coeff := 2 * math.Cos(omega)

	var s1, s2 float64
	for _, x := range window {
		s0 := float64(x) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		// Numerical noise on silent input can push the power slightly
		// negative.
		power = 0
	}
	return math.Sqrt(power)
}
