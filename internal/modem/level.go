package modem

import "math"

// rms returns the root-mean-square amplitude of a sample block.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// peak returns the largest absolute sample value.
func peak(samples []float32) float64 {
	var p float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > p {
			p = a
		}
	}
	return p
}

// applyGain scales samples in place so their peak approaches targetPeak,
// capping amplification at maxGain so a noise floor is never blown up to
// full scale. It only ever amplifies: signals already at or above the
// target, and pure silence, are left alone. Returns the gain applied.
func applyGain(samples []float32, targetPeak, maxGain float64) float64 {
	p := peak(samples)
	if p <= 0 || targetPeak <= 0 || p >= targetPeak {
		return 1
	}
	gain := targetPeak / p
	if maxGain > 0 && gain > maxGain {
		gain = maxGain
	}
	for i := range samples {
		samples[i] = float32(float64(samples[i]) * gain)
	}
	return gain
}

// LevelScale maps an RMS amplitude onto a 0..100 meter reading using a
// logarithmic scale with a -60 dB floor.
func LevelScale(level float64) float64 {
	if level <= 0 {
		return 0
	}
	db := 20 * math.Log10(level)
	if db < -60 {
		db = -60
	}
	if db > 0 {
		db = 0
	}
	return (db + 60) * 100 / 60
}
