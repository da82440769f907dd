// Package audio abstracts PCM capture and playback hardware behind small
// stream interfaces. The malgo backend talks to the platform audio stack
// (ALSA, WASAPI, CoreAudio); the null backend discards output and captures
// silence for hosts without audio hardware.
//
// All streams carry mono float32 samples in [-1.0, 1.0]. A stream belongs
// to the operation that opened it and must be closed on every exit path.
package audio

import (
	"github.com/datatone/tonewire/internal/errors"
)

// ErrStreamClosed is returned by stream operations after Close.
var ErrStreamClosed = errors.NewStd("audio stream closed")

// ErrDeviceStopped is returned when the hardware stops delivering audio
// mid-stream, typically because the device was unplugged.
var ErrDeviceStopped = errors.NewStd("audio device stopped")

// DeviceInfo describes one hardware endpoint for enumeration.
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// OutputStream plays mono float32 PCM. Write blocks while the playback
// queue is full, so a caller streaming chunks observes real playback pace.
// Close drains queued audio before releasing the device.
type OutputStream interface {
	Write(samples []float32) error
	Close() error
}

// InputStream captures mono float32 PCM. Read blocks until samples are
// available and returns up to n of them.
type InputStream interface {
	Read(n int) ([]float32, error)
	Close() error
}

// Device opens audio streams. Implementations are reusable across
// operations; each opened stream is owned by exactly one operation.
type Device interface {
	// Available reports whether the backend can reach audio hardware.
	Available() bool
	// OpenOutput acquires a playback stream.
	OpenOutput(sampleRate, channels int) (OutputStream, error)
	// OpenInput acquires a capture stream.
	OpenInput(sampleRate, channels int) (InputStream, error)
}
