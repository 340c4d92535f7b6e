// internal/link/link_test.go
package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/tamzrod/register-programmer/internal/protocol"
	"github.com/tamzrod/register-programmer/internal/register"
)

// ---- fake port ----

type scriptPort struct {
	reads      [][]byte
	written    []byte
	flushedIn  bool
	flushedOut bool
	closed     bool
	readErr    error
}

func (p *scriptPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.reads) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.reads[0])
	p.reads[0] = p.reads[0][n:]
	if len(p.reads[0]) == 0 {
		p.reads = p.reads[1:]
	}
	return n, nil
}

func (p *scriptPort) Write(b []byte) (int, error) {
	// accept at most 5 bytes per call to exercise the write loop
	n := len(b)
	if n > 5 {
		n = 5
	}
	p.written = append(p.written, b[:n]...)
	return n, nil
}

func (p *scriptPort) Close() error                       { p.closed = true; return nil }
func (p *scriptPort) SetReadTimeout(time.Duration) error { return nil }
func (p *scriptPort) ResetInputBuffer() error            { p.flushedIn = true; return nil }
func (p *scriptPort) ResetOutputBuffer() error           { p.flushedOut = true; return nil }

func dialScript(t *testing.T, p *scriptPort) *Client {
	t.Helper()
	c, err := Dial(context.Background(), Config{Port: "fake"}, func(Config) (Port, error) { return p, nil })
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c
}

// ---- client ----

func TestDial_FlushesBuffers(t *testing.T) {
	p := &scriptPort{}
	c := dialScript(t, p)
	defer c.Close()

	if !p.flushedIn || !p.flushedOut {
		t.Fatalf("flushedIn=%v flushedOut=%v", p.flushedIn, p.flushedOut)
	}
}

func TestDial_CancelledDuringSettle(t *testing.T) {
	p := &scriptPort{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, Config{Port: "fake", Settle: time.Hour}, func(Config) (Port, error) { return p, nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got=%v want=context.Canceled", err)
	}
	if !p.closed {
		t.Fatalf("port not closed after cancelled dial")
	}
}

func TestWrite_LoopsUntilComplete(t *testing.T) {
	p := &scriptPort{}
	c := dialScript(t, p)

	frame := protocol.DataFrame(register.Image{1, 2, 3})
	if err := c.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	if string(p.written) != string(frame) {
		t.Fatalf("written=%x want=%x", p.written, frame)
	}
}

func TestReadLine_SplitsAcrossReads(t *testing.T) {
	p := &scriptPort{reads: [][]byte{
		[]byte("DATA_UP"),
		[]byte("DATED\nTRANSFER_"),
		[]byte("COMPLETE\n"),
	}}
	c := dialScript(t, p)

	for _, want := range []string{"DATA_UPDATED", "TRANSFER_COMPLETE"} {
		got, err := c.ReadLine(context.Background())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != want {
			t.Fatalf("got=%q want=%q", got, want)
		}
	}
}

func TestReadLine_Timeout(t *testing.T) {
	c := dialScript(t, &scriptPort{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ReadLine(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got=%v want=DeadlineExceeded", err)
	}
}

func TestReadLine_TooLong(t *testing.T) {
	junk := make([]byte, MaxLineLength+10)
	for i := range junk {
		junk[i] = 'x'
	}
	c := dialScript(t, &scriptPort{reads: [][]byte{junk}})

	_, err := c.ReadLine(context.Background())
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("got=%v want=ErrLineTooLong", err)
	}
}

func TestReadLine_TransportError(t *testing.T) {
	boom := errors.New("unplugged")
	c := dialScript(t, &scriptPort{readErr: boom})

	_, err := c.ReadLine(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("got=%v want=%v", err, boom)
	}
}

// ---- simulator ----

func TestSimulator_DataFrame(t *testing.T) {
	sim := NewSimulator(nil)
	c, err := Dial(context.Background(), Config{Port: SimulatorPort}, sim.Opener())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	img := register.Image{0xDE, 0xAD, 0xBE, 0xEF}
	if err := c.Write(protocol.DataFrame(img)); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, want := range []protocol.Ack{protocol.AckDataAccepted, protocol.AckTransferComplete} {
		line, err := c.ReadLine(context.Background())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if err := protocol.Expect(line, want); err != nil {
			t.Fatalf("expect %s: %v", want, err)
		}
	}

	if got := sim.Receiver().Register(); got != img {
		t.Fatalf("register=%v want=%v", got, img)
	}
}

func TestSimulator_ShortFrameReportedOnIdle(t *testing.T) {
	sim := NewSimulator(nil)
	c, err := Dial(context.Background(), Config{Port: SimulatorPort}, sim.Opener())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	if err := c.Write([]byte("<abc>")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	line, err := c.ReadLine(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != protocol.TokenInvalidSize {
		t.Fatalf("got=%q want=%q", line, protocol.TokenInvalidSize)
	}
}

// ---- discovery ----

func TestDiscover_PrefersCP210x(t *testing.T) {
	list := func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "7523"},
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "10c4", PID: "ea60"},
			{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
		}, nil
	}

	ports, preferred, err := Discover(list)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(ports) != 4 {
		t.Fatalf("ports=%d want=4", len(ports))
	}
	if preferred != "/dev/ttyUSB1" {
		t.Fatalf("preferred=%q want=/dev/ttyUSB1", preferred)
	}
	if ports[1].Bridge != "WCH CH34x" {
		t.Fatalf("bridge=%q", ports[1].Bridge)
	}
}

func TestDiscover_NoKnownBridge(t *testing.T) {
	list := func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "COM1"},
			{Name: "COM7", IsUSB: true, VID: "2341", PID: "0043"},
		}, nil
	}

	_, preferred, err := Discover(list)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if preferred != "" {
		t.Fatalf("preferred=%q want empty", preferred)
	}
}

func TestDiscover_ListError(t *testing.T) {
	_, _, err := Discover(func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no sysfs")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}
