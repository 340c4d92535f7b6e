// internal/session/session.go
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tamzrod/register-programmer/internal/firmware"
	"github.com/tamzrod/register-programmer/internal/link"
	"github.com/tamzrod/register-programmer/internal/protocol"
	"github.com/tamzrod/register-programmer/internal/register"
)

// Session is one in-flight transfer. It is created by Controller.Start and
// finishes in Completed or Failed.
type Session struct {
	id      uint64
	req     Request
	ctl     *Controller
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	mu    sync.Mutex
	state State
	err   *Error
	image *register.Image
}

func (s *Session) ID() uint64 { return s.id }

func (s *Session) Mode() Mode { return s.req.Mode }

func (s *Session) Port() string { return s.req.Port }

func (s *Session) ClockHz() int { return s.req.ClockHz }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel asks the session to stop at the next step boundary. A frame already
// on the wire or a running toolchain invocation is allowed to finish.
func (s *Session) Cancel() { s.cancel() }

// Done is closed once the session is terminal and the lock is released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is terminal and returns its failure.
func (s *Session) Wait() error {
	<-s.done
	return s.Err()
}

// Err returns the failure, or nil while running or after Completed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// Image returns the encoded image once encoding succeeded.
func (s *Session) Image() (register.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return register.Image{}, false
	}
	return *s.image, true
}

// ---- lifecycle ----

func (s *Session) run() {
	defer close(s.done)

	s.emit(Idle, "started on "+s.req.Port)

	var err error
	switch s.req.Mode {
	case FastTransfer:
		err = s.fastTransfer()
	case FullUpload:
		err = s.fullUpload()
	case Reset:
		err = s.reset()
	}

	s.cancel()
	s.ctl.finish(s, err)
}

func (s *Session) transition(to State, msg string) {
	s.mu.Lock()
	if s.state.Terminal() || to < s.state {
		s.mu.Unlock()
		panic(fmt.Sprintf("session: illegal transition %s -> %s", s.state, to))
	}
	s.state = to
	s.mu.Unlock()

	s.emit(to, msg)
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	se := classify(s.state, err, KindTransport)
	s.state = Failed
	s.err = se
	s.mu.Unlock()

	s.ctl.queue.push(Event{
		Session: s.id,
		Mode:    s.req.Mode,
		State:   Failed,
		At:      time.Now(),
		Elapsed: time.Since(s.started),
		Message: "failed",
		Err:     se,
		Image:   s.imageCopy(),
	})
}

func (s *Session) emit(state State, msg string) {
	e := Event{
		Session: s.id,
		Mode:    s.req.Mode,
		State:   state,
		At:      time.Now(),
		Message: msg,
		Image:   s.imageCopy(),
	}
	if state.Terminal() {
		e.Elapsed = time.Since(s.started)
	}
	s.ctl.queue.push(e)
}

func (s *Session) imageCopy() *register.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return nil
	}
	img := *s.image
	return &img
}

// checkpoint is a safe boundary between steps.
func (s *Session) checkpoint() error {
	if s.ctx.Err() != nil {
		return &Error{Kind: KindCancelled, State: s.State(), Err: ErrCancelled}
	}
	return nil
}

// ---- encoding ----

func (s *Session) encode() (register.Image, error) {
	s.transition(Encoding, fmt.Sprintf("encoding %d values", len(s.req.Values)))

	img, err := register.Encode(s.ctl.cfg.Catalog, s.req.Values)
	if err != nil {
		return register.Image{}, &Error{Kind: KindEncoding, State: Encoding, Err: err}
	}

	s.mu.Lock()
	s.image = &img
	s.mu.Unlock()

	if path := s.ctl.cfg.DumpPath; path != "" {
		if err := register.SaveBitDump(path, img); err != nil {
			s.emit(Encoding, "bit dump not written: "+err.Error())
		}
	}
	return img, nil
}

// ---- fast transfer ----

func (s *Session) fastTransfer() error {
	img, err := s.encode()
	if err != nil {
		return err
	}
	if err := s.checkpoint(); err != nil {
		return err
	}

	s.transition(Transferring, "sending frame "+img.String())

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Write(protocol.DataFrame(img)); err != nil {
		return err
	}
	if err := s.expect(c, protocol.AckDataAccepted, s.ctl.cfg.AckTimeout); err != nil {
		return err
	}
	s.emit(Transferring, protocol.TokenDataUpdated)

	// the target shifts before it answers again
	return s.expect(c, protocol.AckTransferComplete, s.ctl.cfg.AckTimeout)
}

// ---- reset ----

func (s *Session) reset() error {
	s.transition(Transferring, "sending reset")

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Write(protocol.ResetFrame()); err != nil {
		return err
	}
	if err := s.expect(c, protocol.AckResetStarted, s.ctl.cfg.ResetTimeout); err != nil {
		return err
	}
	s.emit(Transferring, protocol.TokenResetStarted)

	return s.expect(c, protocol.AckResetComplete, s.ctl.cfg.ResetTimeout)
}

func (s *Session) dial() (*link.Client, error) {
	cfg := s.ctl.cfg.Link
	cfg.Port = s.req.Port
	if cfg.BaudRate == 0 {
		cfg.BaudRate = protocol.DefaultBaudRate
	}
	return link.Dial(s.ctx, cfg, s.ctl.cfg.Opener)
}

// expect waits for the next non-blank line and requires it to be want.
// The wait ends early on cancel.
func (s *Session) expect(c *link.Client, want protocol.Ack, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	for {
		line, err := c.ReadLine(ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return ErrCancelled
			}
			return fmt.Errorf("waiting for %s: %w", want, err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return protocol.Expect(line, want)
	}
}

// ---- full upload ----

func (s *Session) fullUpload() error {
	cfg := s.ctl.cfg

	img, err := s.encode()
	if err != nil {
		return err
	}
	if err := s.checkpoint(); err != nil {
		return err
	}

	s.transition(Generating, "rendering sketch")

	src, err := firmware.Render(cfg.Template, firmware.Params{
		Image:   img,
		ClockHz: s.req.ClockHz,
		Pins:    cfg.Pins,
	})
	if err != nil {
		return &Error{Kind: KindCompile, State: Generating, Detail: "template", Err: err}
	}
	sketch, err := firmware.WriteSketch(cfg.SketchDir, src)
	if err != nil {
		return &Error{Kind: KindCompile, State: Generating, Detail: "sketch", Err: err}
	}
	if err := s.checkpoint(); err != nil {
		return err
	}

	// a cancel lands between toolchain invocations, never inside one
	s.transition(Compiling, "compiling "+sketch)
	if err := s.tool(func(ctx context.Context) error {
		return cfg.Toolchain.Compile(ctx, sketch)
	}); err != nil {
		return err
	}
	if err := s.checkpoint(); err != nil {
		return err
	}

	s.transition(Flashing, "flashing "+s.req.Port)
	if err := s.tool(func(ctx context.Context) error {
		return cfg.Toolchain.Upload(ctx, sketch, s.req.Port)
	}); err != nil {
		return err
	}
	return nil
}

func (s *Session) tool(step func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctl.cfg.ToolchainTimeout)
	defer cancel()
	return step(ctx)
}
