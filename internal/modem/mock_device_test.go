package modem

import (
	"sync"
	"time"

	"github.com/datatone/tonewire/internal/audio"
)

// mockDevice hands out scripted streams for hardware-free tests. The same
// stream instance is returned for every open so tests can inspect it
// after the operation completes.
type mockDevice struct {
	mu      sync.Mutex
	output  *mockOutputStream
	input   *mockInputStream
	openErr error
}

func (d *mockDevice) Available() bool { return true }

func (d *mockDevice) OpenOutput(sampleRate, channels int) (audio.OutputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	if d.output == nil {
		d.output = &mockOutputStream{}
	}
	return d.output, nil
}

func (d *mockDevice) OpenInput(sampleRate, channels int) (audio.InputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	if d.input == nil {
		d.input = &mockInputStream{}
	}
	return d.input, nil
}

// mockOutputStream records writes. An optional per-write delay paces the
// stream so cancellation tests get a chance to fire between chunks, and
// firstWrite (when set) is closed as soon as streaming has begun.
type mockOutputStream struct {
	mu         sync.Mutex
	writes     int
	samples    int
	closed     bool
	writeDelay time.Duration
	writeErr   error
	firstWrite chan struct{}
}

func (s *mockOutputStream) Write(p []float32) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return audio.ErrStreamClosed
	}
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return err
	}
	s.writes++
	s.samples += len(p)
	first := s.writes == 1
	delay := s.writeDelay
	ch := s.firstWrite
	s.mu.Unlock()

	if first && ch != nil {
		close(ch)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return nil
}

func (s *mockOutputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockOutputStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *mockOutputStream) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *mockOutputStream) sampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// mockInputStream replays a scripted sample sequence and then endless
// silence, as an open microphone would on a quiet channel.
type mockInputStream struct {
	mu      sync.Mutex
	script  []float32
	pos     int
	closed  bool
	readErr error
}

func (s *mockInputStream) Read(n int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, audio.ErrStreamClosed
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([]float32, n)
	s.pos += copy(out, s.script[s.pos:])
	return out, nil
}

func (s *mockInputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockInputStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
