package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRMS(t *testing.T) {
	assert.Zero(t, rms(nil))
	assert.InDelta(t, 1.0, rms([]float32{1, -1, 1, -1}), 1e-9)
	assert.InDelta(t, 0.5, rms([]float32{0.5, -0.5, 0.5, -0.5}), 1e-9)
}

func TestApplyGain(t *testing.T) {
	t.Run("amplifies toward target", func(t *testing.T) {
		samples := []float32{0.1, -0.05, 0.02}
		gain := applyGain(samples, 0.5, 20)
		assert.InDelta(t, 5.0, gain, 1e-6)
		assert.InDelta(t, 0.5, peak(samples), 1e-6)
	})

	t.Run("respects the gain cap", func(t *testing.T) {
		samples := []float32{0.01, -0.01}
		gain := applyGain(samples, 0.5, 10)
		assert.InDelta(t, 10.0, gain, 1e-9)
		assert.InDelta(t, 0.1, peak(samples), 1e-6)
	})

	t.Run("never attenuates", func(t *testing.T) {
		samples := []float32{0.9, -0.8}
		gain := applyGain(samples, 0.5, 20)
		assert.InDelta(t, 1.0, gain, 1e-9)
		assert.InDelta(t, 0.9, peak(samples), 1e-6)
	})

	t.Run("leaves silence alone", func(t *testing.T) {
		samples := make([]float32, 16)
		assert.InDelta(t, 1.0, applyGain(samples, 0.5, 20), 1e-9)
		assert.Zero(t, peak(samples))
	})
}

func TestLevelScale(t *testing.T) {
	assert.Zero(t, LevelScale(0))
	assert.Zero(t, LevelScale(-0.5))
	assert.InDelta(t, 100, LevelScale(1), 1e-9)
	assert.InDelta(t, 0, LevelScale(0.001), 1e-6) // the -60 dB floor
	assert.InDelta(t, 100.0*2/3, LevelScale(0.1), 1e-6)
	assert.Less(t, LevelScale(0.05), LevelScale(0.2))
}
