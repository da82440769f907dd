package modem

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/datatone/tonewire/internal/audio"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/fsk"
	"github.com/datatone/tonewire/internal/observability/metrics"
)

// Capture defaults, used when the corresponding setting is zero or no
// settings are supplied.
const (
	DefaultNoiseThreshold   = 0.02
	DefaultSilenceTimeoutMS = 500
	DefaultListenTimeout    = 10 * time.Second
)

// maxCaptureDuration caps a single capture so a stuck carrier cannot grow
// the buffer without bound; decoding proceeds with whatever was captured.
const maxCaptureDuration = 60 * time.Second

// DataFunc receives the decoded payload of a successful listen.
type DataFunc func(payload []byte)

// StatusFunc receives state transitions during a listen. err is non-nil
// only for the RxError state.
type StatusFunc func(state RxState, err error)

// Receiver captures audio from an input device and decodes one frame per
// listen. Like the Transmitter it serves many operations one at a time;
// a call while a listen is in flight fails with ErrReceiveBusy, and a
// failed operation parks the state machine in RxError until the next one.
type Receiver struct {
	codec   *fsk.Codec
	device  audio.Device
	metrics *metrics.ModemMetrics

	chunkSize      int
	noiseThreshold float64
	silenceTimeout time.Duration
	gain           conf.GainSettings

	state    atomic.Int32
	stopFlag atomic.Bool
	sigLevel atomic.Uint64 // float64 bits, peak chunk RMS of the last capture

	mu     sync.Mutex
	opDone chan struct{}
}

// NewReceiver builds a receiver around a codec and a capture device.
// Settings may be nil, leaving capture parameters at their defaults;
// metrics may be nil when telemetry is disabled.
func NewReceiver(settings *conf.Settings, codec *fsk.Codec, device audio.Device, m *metrics.ModemMetrics) (*Receiver, error) {
	if codec == nil || device == nil {
		return nil, errors.Newf("receiver requires a codec and an audio device").
			Component("modem").
			Category(errors.CategoryValidation).
			Build()
	}

	threshold := DefaultNoiseThreshold
	silenceMS := DefaultSilenceTimeoutMS
	var gain conf.GainSettings
	if settings != nil {
		if settings.Receiver.NoiseThreshold > 0 {
			threshold = settings.Receiver.NoiseThreshold
		}
		if settings.Receiver.SilenceTimeoutMS > 0 {
			silenceMS = settings.Receiver.SilenceTimeoutMS
		}
		gain = settings.Receiver.Gain
	}

	return &Receiver{
		codec:          codec,
		device:         device,
		metrics:        m,
		chunkSize:      codec.Config().SampleRate * DefaultChunkMS / 1000,
		noiseThreshold: threshold,
		silenceTimeout: time.Duration(silenceMS) * time.Millisecond,
		gain:           gain,
	}, nil
}

// State returns the current receiver state.
func (r *Receiver) State() RxState {
	return RxState(r.state.Load())
}

// Listen blocks until a frame is captured and decoded, the timeout expires
// with no signal, the context is cancelled, or Stop is called. The timeout
// bounds only the wait for a first signal; once capture begins, the
// silence window governs completion. A zero or negative timeout selects
// DefaultListenTimeout. Both callbacks may be nil.
func (r *Receiver) Listen(ctx context.Context, timeout time.Duration, onData DataFunc, onStatus StatusFunc) ([]byte, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	return r.run(ctx, timeout, onData, onStatus)
}

// ListenAsync runs Listen on a worker goroutine. The busy check happens
// synchronously, so a non-nil return means no work was started. The done
// callback, if provided, receives the final payload or error.
func (r *Receiver) ListenAsync(timeout time.Duration, onData DataFunc, onStatus StatusFunc, done func([]byte, error)) error {
	if err := r.begin(); err != nil {
		return err
	}
	go func() {
		payload, err := r.run(context.Background(), timeout, onData, onStatus)
		if done != nil {
			done(payload, err)
		}
	}()
	return nil
}

// Stop raises the cancellation flag and waits for the in-flight listen to
// wind down, at most stopJoinTimeout. Safe to call when idle.
func (r *Receiver) Stop() {
	r.stopFlag.Store(true)

	r.mu.Lock()
	done := r.opDone
	r.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		log.Warn("receiver did not stop within timeout")
	}
}

// SignalLevel returns the peak chunk RMS observed during the most recent
// listen. It resets when a new listen begins.
func (r *Receiver) SignalLevel() float64 {
	return math.Float64frombits(r.sigLevel.Load())
}

// InputLevel measures the RMS amplitude of the capture device over the
// given window. It opens its own stream and never touches the listen
// state machine, so a level meter can run independently.
func (r *Receiver) InputLevel(ctx context.Context, duration time.Duration) (float64, error) {
	if duration <= 0 {
		duration = 100 * time.Millisecond
	}
	cfg := r.codec.Config()

	stream, err := r.device.OpenInput(cfg.SampleRate, 1)
	if err != nil {
		return 0, errors.New(err).
			Component("modem").
			Category(errors.CategoryAudioDevice).
			Context("operation", "open_input").
			Build()
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			log.Warn("closing level meter stream", "error", cerr)
		}
	}()

	want := int(duration.Seconds() * float64(cfg.SampleRate))
	buf := make([]float32, 0, want)
	for len(buf) < want {
		select {
		case <-ctx.Done():
			return 0, errors.New(ctx.Err()).
				Component("modem").
				Category(errors.CategoryCancellation).
				Build()
		default:
		}
		chunk, rerr := stream.Read(min(r.chunkSize, want-len(buf)))
		if rerr != nil {
			return 0, errors.New(rerr).
				Component("modem").
				Category(errors.CategoryAudioDevice).
				Context("operation", "read").
				Build()
		}
		buf = append(buf, chunk...)
	}

	level := rms(buf)
	if r.metrics != nil {
		r.metrics.UpdateInputLevel(level)
	}
	return level, nil
}

// begin claims the receiver for one operation and resets the stop flag.
// The machine enters RxListening immediately; the capture loop owns it
// from here.
func (r *Receiver) begin() error {
	if !r.state.CompareAndSwap(int32(RxIdle), int32(RxListening)) &&
		!r.state.CompareAndSwap(int32(RxError), int32(RxListening)) {
		return errors.New(ErrReceiveBusy).
			Component("modem").
			Category(errors.CategoryState).
			Build()
	}
	r.stopFlag.Store(false)
	r.sigLevel.Store(0)
	r.mu.Lock()
	r.opDone = make(chan struct{})
	r.mu.Unlock()
	return nil
}

// run performs one listen. The caller must already hold the state machine
// via begin; run releases it through finish on every path.
func (r *Receiver) run(ctx context.Context, timeout time.Duration, onData DataFunc, onStatus StatusFunc) (payload []byte, err error) {
	if timeout <= 0 {
		timeout = DefaultListenTimeout
	}

	opLog := log.With("op", uuid.New().String()[:8])
	start := time.Now()
	defer func() { r.finish(opLog, start, len(payload), err) }()

	cfg := r.codec.Config()
	stream, err := r.device.OpenInput(cfg.SampleRate, 1)
	if err != nil {
		err = errors.New(err).
			Component("modem").
			Category(errors.CategoryAudioDevice).
			Context("operation", "open_input").
			Build()
		notify(onStatus, RxError, err)
		return nil, err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			opLog.Warn("closing input stream", "error", cerr)
		}
	}()

	opLog.Info("listening",
		"mode", string(r.codec.Mode()),
		"timeout", timeout,
		"threshold", r.noiseThreshold)
	notify(onStatus, RxListening, nil)

	capture, err := r.capture(ctx, stream, timeout, onStatus, opLog)
	if err != nil {
		return nil, err
	}

	r.state.Store(int32(RxDecoding))
	notify(onStatus, RxDecoding, nil)

	if r.gain.Enabled {
		if g := applyGain(capture, r.gain.TargetPeak, r.gain.MaxGain); g > 1 {
			opLog.Debug("gain applied", "gain", g)
		}
	}

	payload, err = r.codec.Decode(capture)
	if err != nil {
		notify(onStatus, RxError, err)
		return nil, err
	}

	opLog.Info("frame decoded", "bytes", len(payload))
	if onData != nil {
		onData(payload)
	}
	return payload, nil
}

// capture runs the gated read loop: discard chunks until one crosses the
// noise threshold, then buffer everything — trailing quiet included, so
// the postamble survives — until the silence window elapses.
func (r *Receiver) capture(ctx context.Context, stream audio.InputStream, timeout time.Duration, onStatus StatusFunc, opLog *slog.Logger) ([]float32, error) {
	cfg := r.codec.Config()
	deadline := time.Now().Add(timeout)
	silenceSamples := int(r.silenceTimeout.Seconds() * float64(cfg.SampleRate))
	maxSamples := int(maxCaptureDuration.Seconds() * float64(cfg.SampleRate))

	var buf []float32
	quiet := 0
	signalSeen := false

	for {
		if err := r.checkCancel(ctx); err != nil {
			return nil, err
		}
		if !signalSeen && time.Now().After(deadline) {
			return nil, errors.New(ErrListenTimeout).
				Component("modem").
				Category(errors.CategoryTimeout).
				Context("timeout", timeout.String()).
				Build()
		}

		chunk, err := stream.Read(r.chunkSize)
		if err != nil {
			return nil, errors.New(err).
				Component("modem").
				Category(errors.CategoryAudioDevice).
				Context("operation", "read").
				Build()
		}
		if len(chunk) == 0 {
			continue
		}

		level := rms(chunk)
		if r.metrics != nil {
			r.metrics.UpdateInputLevel(level)
		}
		loud := level >= r.noiseThreshold
		if loud && level > math.Float64frombits(r.sigLevel.Load()) {
			r.sigLevel.Store(math.Float64bits(level))
		}

		if !signalSeen {
			if !loud {
				continue
			}
			signalSeen = true
			opLog.Debug("signal detected", "rms", level)
			r.state.Store(int32(RxReceiving))
			notify(onStatus, RxReceiving, nil)
		} else if loud {
			quiet = 0
		} else {
			quiet += len(chunk)
		}

		buf = append(buf, chunk...)
		if quiet >= silenceSamples {
			opLog.Debug("capture ended on silence", "samples", len(buf))
			return buf, nil
		}
		if len(buf) >= maxSamples {
			opLog.Warn("capture hit size cap", "samples", len(buf))
			return buf, nil
		}
	}
}

// checkCancel is consulted between chunks, bounding stop latency to about
// one chunk of capture.
func (r *Receiver) checkCancel(ctx context.Context) error {
	if r.stopFlag.Load() {
		return errors.New(ErrListenStopped).
			Component("modem").
			Category(errors.CategoryCancellation).
			Build()
	}
	select {
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("modem").
			Category(errors.CategoryCancellation).
			Build()
	default:
		return nil
	}
}

// finish records the outcome, releases the state machine, and unblocks
// any Stop waiting on the operation.
func (r *Receiver) finish(opLog *slog.Logger, start time.Time, payloadBytes int, err error) {
	elapsed := time.Since(start)
	result := metrics.ResultOK
	switch {
	case err == nil:
		opLog.Info("listen complete", "elapsed", elapsed)
	case errors.Is(err, ErrListenTimeout):
		result = metrics.ResultTimeout
		opLog.Info("listen timed out", "elapsed", elapsed)
	case errors.Is(err, ErrListenStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = metrics.ResultStopped
		opLog.Info("listen stopped", "elapsed", elapsed)
	default:
		result = metrics.ResultError
		opLog.Error("listen failed", "error", err, "elapsed", elapsed)
	}

	if r.metrics != nil {
		r.metrics.RecordReceive(string(r.codec.Mode()), result, elapsed, payloadBytes)
	}

	if result == metrics.ResultError {
		r.state.Store(int32(RxError))
	} else {
		r.state.Store(int32(RxIdle))
	}

	r.mu.Lock()
	if r.opDone != nil {
		close(r.opDone)
		r.opDone = nil
	}
	r.mu.Unlock()
}

func notify(onStatus StatusFunc, state RxState, err error) {
	if onStatus != nil {
		onStatus(state, err)
	}
}
