// internal/link/simulator.go
package link

import (
	"errors"
	"sync"
	"time"

	"github.com/tamzrod/register-programmer/internal/protocol"
)

// SimulatorPort is the port name that selects the in-process target model.
const SimulatorPort = "sim"

// Simulator is a Port backed by protocol.Receiver. It lets the whole
// transfer path run without hardware.
type Simulator struct {
	mu      sync.Mutex
	rx      *protocol.Receiver
	out     []byte
	timeout time.Duration
	dirty   bool // bytes written since the last idle notification
	closed  bool
}

// NewSimulator wraps rx; a nil rx gets a fresh receiver.
func NewSimulator(rx *protocol.Receiver) *Simulator {
	if rx == nil {
		rx = &protocol.Receiver{}
	}
	return &Simulator{rx: rx, timeout: 10 * time.Millisecond}
}

// Opener returns an Opener that always hands out s.
func (s *Simulator) Opener() Opener {
	return func(Config) (Port, error) {
		s.mu.Lock()
		s.closed = false
		s.mu.Unlock()
		return s, nil
	}
}

// Receiver exposes the target model.
func (s *Simulator) Receiver() *protocol.Receiver { return s.rx }

func (s *Simulator) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("simulator: port closed")
	}
	for _, line := range s.rx.Feed(b) {
		s.out = append(s.out, line...)
	}
	s.dirty = true
	return len(b), nil
}

func (s *Simulator) Read(b []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.New("simulator: port closed")
	}
	if len(s.out) == 0 && s.dirty {
		// the line went quiet
		s.dirty = false
		for _, line := range s.rx.Idle() {
			s.out = append(s.out, line...)
		}
	}
	if len(s.out) > 0 {
		n := copy(b, s.out)
		s.out = s.out[n:]
		s.mu.Unlock()
		return n, nil
	}
	d := s.timeout
	s.mu.Unlock()

	time.Sleep(d)
	return 0, nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Simulator) SetReadTimeout(t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = t
	return nil
}

func (s *Simulator) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = nil
	return nil
}

func (s *Simulator) ResetOutputBuffer() error { return nil }
