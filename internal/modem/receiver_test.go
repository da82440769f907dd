package modem

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datatone/tonewire/internal/audio"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/fsk"
)

func newTestReceiver(t *testing.T, mode fsk.Mode, settings *conf.Settings, script []float32) (*Receiver, *mockDevice) {
	t.Helper()
	codec, err := fsk.NewCodec(mode)
	require.NoError(t, err)
	dev := &mockDevice{input: &mockInputStream{script: script}}
	rx, err := NewReceiver(settings, codec, dev, nil)
	require.NoError(t, err)
	return rx, dev
}

// fastReceiverSettings shortens the silence window so decode tests finish
// after two quiet chunks instead of five.
func fastReceiverSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Receiver.NoiseThreshold = 0.02
	s.Receiver.SilenceTimeoutMS = 200
	return s
}

func TestListenDecodesFrame(t *testing.T) {
	payload := []byte("Hello uDOS!")
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	frame, err := codec.Encode(payload)
	require.NoError(t, err)

	// one silent chunk, then the frame; the mock plays silence after the
	// script runs out, which trips the soft end of capture
	script := append(make([]float32, 4800), frame...)
	rx, dev := newTestReceiver(t, fsk.ModeMinimal, fastReceiverSettings(), script)

	var states []RxState
	var delivered []byte
	got, err := rx.Listen(context.Background(), 5*time.Second,
		func(p []byte) { delivered = p },
		func(state RxState, err error) { states = append(states, state) })
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, payload, delivered)
	assert.Equal(t, []RxState{RxListening, RxReceiving, RxDecoding}, states)
	assert.Equal(t, RxIdle, rx.State())
	assert.Greater(t, rx.SignalLevel(), 0.0, "peak RMS of the capture should be recorded")
	assert.True(t, dev.input.isClosed(), "input stream must be released")
}

func TestListenTimeout(t *testing.T) {
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	rx, err := NewReceiver(fastReceiverSettings(), codec, audio.NewNullDevice(), nil)
	require.NoError(t, err)

	start := time.Now()
	payload, err := rx.Listen(context.Background(), time.Second, nil, nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrListenTimeout)
	assert.Nil(t, payload)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 1500*time.Millisecond)
	assert.Equal(t, RxIdle, rx.State())
}

func TestListenRejectsConcurrentAndStops(t *testing.T) {
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	rx, err := NewReceiver(fastReceiverSettings(), codec, audio.NewNullDevice(), nil)
	require.NoError(t, err)

	doneCh := make(chan error, 1)
	require.NoError(t, rx.ListenAsync(5*time.Second, nil, nil, func(_ []byte, err error) { doneCh <- err }))

	_, err = rx.Listen(context.Background(), time.Second, nil, nil)
	assert.ErrorIs(t, err, ErrReceiveBusy)

	rx.Stop()
	select {
	case err := <-doneCh:
		assert.ErrorIs(t, err, ErrListenStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}
	assert.Equal(t, RxIdle, rx.State())
}

func TestListenDecodeFailure(t *testing.T) {
	payload := []byte("Hello uDOS!")
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	frame, err := codec.Encode(payload)
	require.NoError(t, err)

	// wipe a stretch of payload tones; the checksum can no longer match
	spb := codec.Config().SamplesPerBit()
	start := (16 + 16 + 20) * spb
	for i := start; i < start+8*spb; i++ {
		frame[i] = 0
	}

	script := append(make([]float32, 4800), frame...)
	rx, _ := newTestReceiver(t, fsk.ModeMinimal, fastReceiverSettings(), script)

	var lastState RxState
	var lastErr error
	got, err := rx.Listen(context.Background(), 5*time.Second, nil,
		func(state RxState, err error) { lastState, lastErr = state, err })
	require.Error(t, err)
	assert.ErrorIs(t, err, fsk.ErrChecksum)
	assert.Nil(t, got)
	assert.Equal(t, RxError, lastState)
	assert.Error(t, lastErr)
	assert.Equal(t, RxError, rx.State())
}

func TestListenAppliesGain(t *testing.T) {
	payload := []byte("gain")
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	frame, err := codec.Encode(payload)
	require.NoError(t, err)

	// a signal well below full scale but above the gate
	quiet := make([]float32, len(frame))
	for i, s := range frame {
		quiet[i] = s * 0.05
	}

	settings := fastReceiverSettings()
	settings.Receiver.NoiseThreshold = 0.01
	settings.Receiver.Gain = conf.GainSettings{Enabled: true, TargetPeak: 0.5, MaxGain: 20}

	script := append(make([]float32, 4800), quiet...)
	rx, _ := newTestReceiver(t, fsk.ModeMinimal, settings, script)

	got, err := rx.Listen(context.Background(), 5*time.Second, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestListenDeviceOpenError(t *testing.T) {
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	dev := &mockDevice{openErr: errors.NewStd("capture hardware missing")}
	rx, err := NewReceiver(nil, codec, dev, nil)
	require.NoError(t, err)

	var sawError bool
	_, err = rx.Listen(context.Background(), time.Second, nil, func(state RxState, err error) {
		if state == RxError {
			sawError = true
		}
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioDevice))
	assert.True(t, sawError)
	assert.Equal(t, RxError, rx.State())
}

func TestInputLevel(t *testing.T) {
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	cfg := codec.Config()

	// 200 ms of a pure tone: RMS = volume / sqrt(2)
	script := cfg.Tone(1000, cfg.SampleRate/5)
	rx, dev := newTestReceiver(t, fsk.ModeMinimal, nil, script)

	level, err := rx.InputLevel(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.InDelta(t, cfg.Volume/math.Sqrt2, level, 0.01)
	assert.True(t, dev.input.isClosed())
}

func TestInputLevelSilence(t *testing.T) {
	codec, err := fsk.NewCodec(fsk.ModeMinimal)
	require.NoError(t, err)
	rx, err := NewReceiver(nil, codec, audio.NewNullDevice(), nil)
	require.NoError(t, err)

	level, err := rx.InputLevel(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, level)
}
