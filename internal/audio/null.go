package audio

import (
	"sync"
	"time"

	"github.com/datatone/tonewire/internal/errors"
)

// NullDevice is a functional stand-in for hosts without audio hardware:
// output is discarded and input captures silence. Both directions are
// paced at the requested sample rate so timing-dependent callers behave
// the same as against real hardware.
type NullDevice struct{}

// NewNullDevice returns a silent, always-available device.
func NewNullDevice() *NullDevice { return &NullDevice{} }

func (d *NullDevice) Available() bool { return true }

func (d *NullDevice) OpenOutput(sampleRate, channels int) (OutputStream, error) {
	if sampleRate <= 0 {
		return nil, errors.Newf("invalid sample rate %d", sampleRate).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	return &nullOutputStream{sampleRate: sampleRate}, nil
}

func (d *NullDevice) OpenInput(sampleRate, channels int) (InputStream, error) {
	if sampleRate <= 0 {
		return nil, errors.Newf("invalid sample rate %d", sampleRate).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}
	return &nullInputStream{sampleRate: sampleRate}, nil
}

type nullOutputStream struct {
	sampleRate int

	mu     sync.Mutex
	closed bool
}

func (s *nullOutputStream) Write(samples []float32) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New(ErrStreamClosed).Component("audio").Build()
	}
	time.Sleep(time.Duration(len(samples)) * time.Second / time.Duration(s.sampleRate))
	return nil
}

func (s *nullOutputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type nullInputStream struct {
	sampleRate int

	mu     sync.Mutex
	closed bool
}

func (s *nullInputStream) Read(n int) ([]float32, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New(ErrStreamClosed).Component("audio").Build()
	}
	time.Sleep(time.Duration(n) * time.Second / time.Duration(s.sampleRate))
	return make([]float32, n), nil
}

func (s *nullInputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
