// internal/session/controller.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tamzrod/register-programmer/internal/catalog"
	"github.com/tamzrod/register-programmer/internal/firmware"
	"github.com/tamzrod/register-programmer/internal/link"
	"github.com/tamzrod/register-programmer/internal/protocol"
	"github.com/tamzrod/register-programmer/internal/register"
)

// Config is the runtime config a controller needs.
type Config struct {
	Catalog *catalog.Catalog

	// fast transfer and reset
	Link         link.Config
	Opener       link.Opener
	AckTimeout   time.Duration
	ResetTimeout time.Duration

	// full upload
	Toolchain        firmware.Toolchain
	Template         string // empty means the embedded template
	SketchDir        string
	Pins             firmware.Pins
	ToolchainTimeout time.Duration

	// DumpPath, when set, receives the bit dump of every encoded image.
	DumpPath string
}

// Request is one transfer request.
type Request struct {
	Mode    Mode
	Values  register.Values // ignored by Reset
	ClockHz int             // zero means protocol.DefaultClockHz
	Port    string          // empty means the configured port
}

// Controller owns the single-flight lock. At most one session runs at a time
// per controller; the process creates one controller.
type Controller struct {
	cfg   Config
	lock  *semaphore.Weighted
	seq   atomic.Uint64
	queue *queue

	mu      sync.Mutex
	current *Session
}

// NewController validates cfg and starts event delivery to sink.
func NewController(cfg Config, sink Sink) (*Controller, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("session: catalog required")
	}
	if cfg.AckTimeout <= 0 {
		return nil, errors.New("session: ack timeout must be > 0")
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = cfg.AckTimeout
	}
	if cfg.ToolchainTimeout <= 0 {
		return nil, errors.New("session: toolchain timeout must be > 0")
	}
	if cfg.Pins == (firmware.Pins{}) {
		cfg.Pins = firmware.DefaultPins()
	}

	return &Controller{
		cfg:   cfg,
		lock:  semaphore.NewWeighted(1),
		queue: newQueue(sink),
	}, nil
}

// Close waits for queued events to reach the sink. Sessions still running
// keep going but their events are dropped.
func (c *Controller) Close() {
	c.queue.close()
}

// Current returns the running session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start validates req, takes the lock and runs the session in the
// background. When another session holds the lock it fails at once with
// ErrBusy and no session is created.
func (c *Controller) Start(req Request) (*Session, error) {
	req, err := c.check(req)
	if err != nil {
		return nil, err
	}

	if !c.lock.TryAcquire(1) {
		busy := &Error{Kind: KindBusy, State: Idle, Err: ErrBusy}
		c.queue.push(Event{Mode: req.Mode, State: Failed, At: time.Now(), Message: "rejected", Err: busy})
		return nil, busy
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      c.seq.Add(1),
		req:     req,
		ctl:     c,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   Idle,
		started: time.Now(),
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	go s.run()
	return s, nil
}

// Run is Start followed by Wait.
func (c *Controller) Run(ctx context.Context, req Request) (*Session, error) {
	s, err := c.Start(req)
	if err != nil {
		return nil, err
	}
	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Cancel()
		<-s.Done()
	}
	return s, s.Err()
}

func (c *Controller) check(req Request) (Request, error) {
	invalid := func(err error) error {
		return &Error{Kind: KindInvalidRequest, State: Idle, Err: err}
	}

	switch req.Mode {
	case FastTransfer, FullUpload, Reset:
	default:
		return req, invalid(fmt.Errorf("session: unknown mode %d", int(req.Mode)))
	}

	if req.ClockHz == 0 {
		req.ClockHz = protocol.DefaultClockHz
	}
	if _, err := protocol.CheckClock(req.ClockHz); err != nil {
		return req, invalid(err)
	}

	if req.Port == "" {
		req.Port = c.cfg.Link.Port
	}
	if req.Port == "" {
		return req, invalid(errors.New("session: serial port required"))
	}

	if req.Mode == FullUpload {
		if c.cfg.Toolchain == nil {
			return req, &Error{Kind: KindToolchainUnavailable, State: Idle, Err: errors.New("session: no toolchain configured")}
		}
		if req.ClockHz%1000 != 0 {
			return req, invalid(fmt.Errorf("%w: %d Hz", firmware.ErrClockNotKHz, req.ClockHz))
		}
	}

	return req, nil
}

// finish releases the lock and only then makes the outcome visible, so a
// caller reacting to the terminal state or event can start the next session.
// c.mu is held throughout so a session started in between queues its events
// after this one's terminal event.
func (c *Controller) finish(s *Session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == s {
		c.current = nil
	}
	c.lock.Release(1)

	if err != nil {
		s.fail(err)
		return
	}
	s.transition(Completed, "done")
}
