package audio

import (
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/logging"
)

const bytesPerSample = 4 // float32 PCM

// playbackHighWater bounds queued playback audio to half a second so a
// stop request takes effect quickly.
const playbackHighWater = time.Second / 2

// captureMaxBuffer bounds unread capture audio; beyond this the oldest
// samples are dropped.
const captureMaxBuffer = 30 * time.Second

// MalgoDevice opens capture and playback streams through the platform
// audio stack. Device names are matched as substrings against the
// enumerated hardware; empty names select the system default.
type MalgoDevice struct {
	captureName  string
	playbackName string
	logger       *slog.Logger
}

// NewMalgoDevice returns a device bound to the named endpoints. Empty
// names select system defaults.
func NewMalgoDevice(captureName, playbackName string) *MalgoDevice {
	return &MalgoDevice{
		captureName:  captureName,
		playbackName: playbackName,
		logger:       logging.ForService("audio"),
	}
}

// Available reports whether the platform audio stack can be initialized.
func (d *MalgoDevice) Available() bool {
	ctx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return false
	}
	_ = ctx.Uninit()
	ctx.Free()
	return true
}

// platformBackends pins the backend per OS; elsewhere malgo picks.
func platformBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func newMalgoContext(logger *slog.Logger) (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, func(message string) {
		logger.Debug("audio backend", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Build()
	}
	return ctx, nil
}

// findDeviceID resolves a device name to its backend ID. Empty name means
// system default, reported as a nil ID.
func findDeviceID(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (*malgo.DeviceID, error) {
	if name == "" {
		return nil, nil
	}
	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate").
			Build()
	}
	for i := range infos {
		if matchesDeviceName(infos[i].Name(), name) {
			id := infos[i].ID
			return &id, nil
		}
	}
	return nil, errors.Newf("audio device %q not found", name).
		Component("audio").
		Category(errors.CategoryAudioDevice).
		DeviceContext(name, deviceDirection(kind)).
		Build()
}

// matchesDeviceName compares an enumerated device name against the
// configured one. Enumerated names carry trailing NULs and whitespace.
func matchesDeviceName(enumerated, wanted string) bool {
	cleaned := strings.TrimSpace(strings.Trim(enumerated, "\x00"))
	return strings.Contains(strings.ToLower(cleaned), strings.ToLower(wanted))
}

func deviceDirection(kind malgo.DeviceType) string {
	if kind == malgo.Capture {
		return "capture"
	}
	return "playback"
}

// OpenOutput acquires the playback device and starts it. The returned
// stream owns the malgo context and device until Close.
func (d *MalgoDevice) OpenOutput(sampleRate, channels int) (OutputStream, error) {
	if channels != 1 {
		return nil, errors.Newf("unsupported channel count %d: playback is mono", channels).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx, err := newMalgoContext(d.logger)
	if err != nil {
		return nil, err
	}

	deviceID, err := findDeviceID(ctx, malgo.Playback, d.playbackName)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1
	if deviceID != nil {
		cfg.Playback.DeviceID = deviceID.Pointer()
	}

	stream := &malgoOutputStream{
		ctx:        ctx,
		sampleRate: sampleRate,
		highWater:  int(playbackHighWater.Seconds() * float64(sampleRate)),
		logger:     d.logger,
	}
	stream.cond = sync.NewCond(&stream.mu)

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			stream.fill(pOutput, int(frameCount))
		},
		Stop: func() {
			stream.deviceStopped()
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			DeviceContext(d.playbackName, "playback").
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			DeviceContext(d.playbackName, "playback").
			Build()
	}

	stream.device = device
	return stream, nil
}

// OpenInput acquires the capture device and starts it.
func (d *MalgoDevice) OpenInput(sampleRate, channels int) (InputStream, error) {
	if channels != 1 {
		return nil, errors.Newf("unsupported channel count %d: capture is mono", channels).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx, err := newMalgoContext(d.logger)
	if err != nil {
		return nil, err
	}

	deviceID, err := findDeviceID(ctx, malgo.Capture, d.captureName)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1
	if deviceID != nil {
		cfg.Capture.DeviceID = deviceID.Pointer()
	}

	stream := &malgoInputStream{
		ctx:       ctx,
		maxBuffer: int(captureMaxBuffer.Seconds() * float64(sampleRate)),
		logger:    d.logger,
	}
	stream.cond = sync.NewCond(&stream.mu)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			stream.push(pInput, int(frameCount))
		},
		Stop: func() {
			stream.deviceStopped()
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			DeviceContext(d.captureName, "capture").
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			DeviceContext(d.captureName, "capture").
			Build()
	}

	stream.device = device
	return stream, nil
}

// malgoOutputStream queues samples for the playback callback.
type malgoOutputStream struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	highWater  int
	logger     *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []float32
	head    int
	closed  bool
	stopped bool
}

func (s *malgoOutputStream) queued() int {
	return len(s.pending) - s.head
}

// fill runs on the device thread: pop queued samples into the hardware
// buffer, zero-filling any shortfall.
func (s *malgoOutputStream) fill(out []byte, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := frames
	if q := s.queued(); n > q {
		n = q
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[i*bytesPerSample:], math.Float32bits(s.pending[s.head+i]))
	}
	for i := n * bytesPerSample; i < frames*bytesPerSample; i++ {
		out[i] = 0
	}
	s.head += n
	if s.head == len(s.pending) {
		s.pending = s.pending[:0]
		s.head = 0
	}
	s.cond.Broadcast()
}

func (s *malgoOutputStream) deviceStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.stopped = true
	}
	s.cond.Broadcast()
}

// Write queues samples for playback, blocking while more than half a
// second of audio is already pending.
func (s *malgoOutputStream) Write(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.queued() > s.highWater && !s.closed && !s.stopped {
		s.cond.Wait()
	}
	if s.closed {
		return errors.New(ErrStreamClosed).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Build()
	}
	if s.stopped {
		return errors.New(ErrDeviceStopped).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Build()
	}
	s.pending = append(s.pending, samples...)
	return nil
}

// Close drains queued audio, then stops and releases the device.
func (s *malgoOutputStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	remaining := s.queued()
	stopped := s.stopped
	s.cond.Broadcast()
	s.mu.Unlock()

	if !stopped && remaining > 0 {
		s.drain(remaining)
	}

	_ = s.device.Stop()
	s.device.Uninit()
	if err := s.ctx.Uninit(); err != nil {
		s.logger.Warn("failed to uninit audio context", "error", err)
	}
	s.ctx.Free()
	return nil
}

// drain waits for the playback callback to consume the queue, bounded by
// the queued duration plus a margin.
func (s *malgoOutputStream) drain(remaining int) {
	wait := time.Duration(remaining) * time.Second / time.Duration(s.sampleRate)
	deadline := time.Now().Add(wait + time.Second)
	for {
		s.mu.Lock()
		left := s.queued()
		stopped := s.stopped
		s.mu.Unlock()
		if left == 0 || stopped || time.Now().After(deadline) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// malgoInputStream buffers captured samples for Read.
type malgoInputStream struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	maxBuffer int
	logger    *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []float32
	head    int
	dropped int64
	closed  bool
	stopped bool
}

func (s *malgoInputStream) buffered() int {
	return len(s.buf) - s.head
}

// push runs on the device thread: decode the hardware buffer and append it.
// When the reader falls captureMaxBuffer behind, the oldest samples are
// dropped.
func (s *malgoInputStream) push(in []byte, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for i := 0; i < frames; i++ {
		bits := binary.LittleEndian.Uint32(in[i*bytesPerSample:])
		s.buf = append(s.buf, math.Float32frombits(bits))
	}
	if over := s.buffered() - s.maxBuffer; over > 0 {
		s.head += over
		s.dropped += int64(over)
	}
	if s.head > len(s.buf)/2 && s.head > 0 {
		s.buf = append(s.buf[:0], s.buf[s.head:]...)
		s.head = 0
	}
	s.cond.Broadcast()
}

func (s *malgoInputStream) deviceStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.stopped = true
	}
	s.cond.Broadcast()
}

// Read blocks until captured samples are available and returns up to n.
func (s *malgoInputStream) Read(n int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.buffered() == 0 && !s.closed && !s.stopped {
		s.cond.Wait()
	}
	if s.closed {
		return nil, errors.New(ErrStreamClosed).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Build()
	}
	if s.buffered() == 0 && s.stopped {
		return nil, errors.New(ErrDeviceStopped).
			Component("audio").
			Category(errors.CategoryAudioDevice).
			Build()
	}

	m := n
	if b := s.buffered(); m > b {
		m = b
	}
	out := make([]float32, m)
	copy(out, s.buf[s.head:s.head+m])
	s.head += m
	if s.head == len(s.buf) {
		s.buf = s.buf[:0]
		s.head = 0
	}
	return out, nil
}

// Close stops and releases the device. Pending unread samples are
// discarded.
func (s *malgoInputStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := s.dropped
	s.cond.Broadcast()
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn("capture buffer overrun", "dropped_samples", dropped)
	}

	_ = s.device.Stop()
	s.device.Uninit()
	if err := s.ctx.Uninit(); err != nil {
		s.logger.Warn("failed to uninit audio context", "error", err)
	}
	s.ctx.Free()
	return nil
}

// hexToASCII renders a malgo device ID as readable text when it is an
// ASCII string (ALSA names are), falling back to the raw hex.
func hexToASCII(hexStr string) string {
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return hexStr
	}
	trimmed := strings.TrimRight(string(raw), "\x00")
	for _, r := range trimmed {
		if r < 0x20 || r > 0x7e {
			return hexStr
		}
	}
	if trimmed == "" {
		return hexStr
	}
	return trimmed
}
