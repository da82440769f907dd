package modem

import (
	"context"
	"log/slog"
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

// Streaming defaults, used when the corresponding setting is zero or no
// settings are supplied.
const (
	DefaultChunkMS   = 100
	DefaultLeadInMS  = 200
	DefaultLeadOutMS = 150
)

// stopJoinTimeout bounds how long Stop waits for an operation to wind
// down after the stop flag is raised.
const stopJoinTimeout = 5 * time.Second

// ProgressFunc is invoked after every streamed chunk. Percent grows
// monotonically from 0 to 100 over the whole transmission, lead tones
// included.
type ProgressFunc func(percent int, state TxState)

// Transmitter streams encoded frames to a playback device. One instance
// serves many transmissions, but only one at a time; a call while another
// transmission is in flight fails with ErrTransmitBusy. A failed operation
// parks the state machine in TxError for inspection; the next operation
// clears it.
type Transmitter struct {
	codec   *fsk.Codec
	device  audio.Device
	metrics *metrics.ModemMetrics

	chunkSize int
	leadIn    time.Duration
	leadOut   time.Duration

	state    atomic.Int32
	stopFlag atomic.Bool

	mu     sync.Mutex
	opDone chan struct{}
}

// NewTransmitter builds a transmitter around a codec and a playback
// device. Settings may be nil, leaving streaming parameters at their
// defaults; metrics may be nil when telemetry is disabled.
func NewTransmitter(settings *conf.Settings, codec *fsk.Codec, device audio.Device, m *metrics.ModemMetrics) (*Transmitter, error) {
	if codec == nil || device == nil {
		return nil, errors.Newf("transmitter requires a codec and an audio device").
			Component("modem").
			Category(errors.CategoryValidation).
			Build()
	}

	chunkMS := DefaultChunkMS
	leadInMS := DefaultLeadInMS
	leadOutMS := DefaultLeadOutMS
	if settings != nil {
		if settings.Transmitter.ChunkMS > 0 {
			chunkMS = settings.Transmitter.ChunkMS
		}
		leadInMS = max(settings.Transmitter.LeadInMS, 0)
		leadOutMS = max(settings.Transmitter.LeadOutMS, 0)
	}

	return &Transmitter{
		codec:     codec,
		device:    device,
		metrics:   m,
		chunkSize: codec.Config().SampleRate * chunkMS / 1000,
		leadIn:    time.Duration(leadInMS) * time.Millisecond,
		leadOut:   time.Duration(leadOutMS) * time.Millisecond,
	}, nil
}

// State returns the current transmitter state.
func (t *Transmitter) State() TxState {
	return TxState(t.state.Load())
}

// TransmitData encodes a payload and streams it, blocking until the frame
// has been fully played, the context is cancelled, or Stop is called.
func (t *Transmitter) TransmitData(ctx context.Context, data []byte, progress ProgressFunc) error {
	samples, err := t.codec.Encode(data)
	if err != nil {
		return err
	}
	if err := t.begin(); err != nil {
		return err
	}
	return t.run(ctx, samples, len(data), progress)
}

// TransmitSamples streams a prepared sample buffer with lead tones, the
// same way TransmitData streams an encoded frame.
func (t *Transmitter) TransmitSamples(ctx context.Context, samples []float32, progress ProgressFunc) error {
	if err := t.begin(); err != nil {
		return err
	}
	return t.run(ctx, samples, -1, progress)
}

// TransmitAsync encodes and streams a payload on a worker goroutine. The
// busy check happens synchronously, so a non-nil return means no work was
// started. The done callback, if provided, receives the final result.
func (t *Transmitter) TransmitAsync(data []byte, progress ProgressFunc, done func(error)) error {
	samples, err := t.codec.Encode(data)
	if err != nil {
		return err
	}
	if err := t.begin(); err != nil {
		return err
	}
	go func() {
		err := t.run(context.Background(), samples, len(data), progress)
		if done != nil {
			done(err)
		}
	}()
	return nil
}

// Stop raises the cancellation flag and waits for the in-flight operation
// to wind down, at most stopJoinTimeout. Safe to call when idle.
func (t *Transmitter) Stop() {
	t.stopFlag.Store(true)

	t.mu.Lock()
	done := t.opDone
	t.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		log.Warn("transmitter did not stop within timeout")
	}
}

// begin claims the transmitter for one operation and resets the stop flag.
func (t *Transmitter) begin() error {
	if !t.state.CompareAndSwap(int32(TxIdle), int32(TxTransmitting)) &&
		!t.state.CompareAndSwap(int32(TxError), int32(TxTransmitting)) {
		return errors.New(ErrTransmitBusy).
			Component("modem").
			Category(errors.CategoryState).
			Build()
	}
	t.stopFlag.Store(false)
	t.mu.Lock()
	t.opDone = make(chan struct{})
	t.mu.Unlock()
	return nil
}

// run streams the frame. The caller must already hold the state machine
// via begin; run releases it through finish on every path.
func (t *Transmitter) run(ctx context.Context, samples []float32, payloadBytes int, progress ProgressFunc) (err error) {
	opLog := log.With("op", uuid.New().String()[:8])
	start := time.Now()
	defer func() { t.finish(opLog, start, payloadBytes, err) }()

	cfg := t.codec.Config()
	signal := t.withLeadTones(samples)

	opLog.Info("transmission starting",
		"mode", string(t.codec.Mode()),
		"samples", len(signal),
		"duration", time.Duration(len(signal))*time.Second/time.Duration(cfg.SampleRate))

	stream, err := t.device.OpenOutput(cfg.SampleRate, 1)
	if err != nil {
		return errors.New(err).
			Component("modem").
			Category(errors.CategoryAudioDevice).
			Context("operation", "open_output").
			Build()
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			opLog.Warn("closing output stream", "error", cerr)
		}
	}()

	total := len(signal)
	for written := 0; written < total; {
		if err = t.checkCancel(ctx); err != nil {
			return err
		}
		end := min(written+t.chunkSize, total)
		if werr := stream.Write(signal[written:end]); werr != nil {
			return errors.New(werr).
				Component("modem").
				Category(errors.CategoryAudioDevice).
				Context("operation", "write").
				Context("written_samples", written).
				Build()
		}
		written = end
		if progress != nil {
			progress(written*100/total, t.State())
		}
	}
	return nil
}

// withLeadTones wraps the frame in the mode's framing tone so a receiver
// can open its noise gate before the preamble arrives. Modes without a
// lead frequency transmit the frame alone.
func (t *Transmitter) withLeadTones(samples []float32) []float32 {
	cfg := t.codec.Config()
	if cfg.LeadFreq <= 0 || (t.leadIn <= 0 && t.leadOut <= 0) {
		return samples
	}
	lead := cfg.ToneDuration(cfg.LeadFreq, t.leadIn)
	tail := cfg.ToneDuration(cfg.LeadFreq, t.leadOut)

	signal := make([]float32, 0, len(lead)+len(samples)+len(tail))
	signal = append(signal, lead...)
	signal = append(signal, samples...)
	signal = append(signal, tail...)
	return signal
}

// checkCancel is consulted between chunks, bounding stop latency to about
// one chunk of playback.
func (t *Transmitter) checkCancel(ctx context.Context) error {
	if t.stopFlag.Load() {
		return errors.New(ErrTransmitStopped).
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
func (t *Transmitter) finish(opLog *slog.Logger, start time.Time, payloadBytes int, err error) {
	elapsed := time.Since(start)
	result := metrics.ResultOK
	switch {
	case err == nil:
		opLog.Info("transmission complete", "elapsed", elapsed)
	case errors.Is(err, ErrTransmitStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = metrics.ResultStopped
		opLog.Info("transmission stopped", "elapsed", elapsed)
	default:
		result = metrics.ResultError
		opLog.Error("transmission failed", "error", err, "elapsed", elapsed)
	}

	if t.metrics != nil {
		t.metrics.RecordTransmission(string(t.codec.Mode()), result, elapsed, payloadBytes)
	}

	if result == metrics.ResultError {
		t.state.Store(int32(TxError))
	} else {
		t.state.Store(int32(TxIdle))
	}

	t.mu.Lock()
	if t.opDone != nil {
		close(t.opDone)
		t.opDone = nil
	}
	t.mu.Unlock()
}
