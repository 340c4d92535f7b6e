// internal/link/client.go
package link

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the part of a serial port the link needs.
// go.bug.st/serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Config is minimal transport config.
type Config struct {
	Port     string
	BaudRate int
	Settle   time.Duration // quiet time after open before the first write
	Poll     time.Duration // read granularity while waiting for a line
}

// Opener opens the port named in cfg.
type Opener func(cfg Config) (Port, error)

// MaxLineLength bounds an acknowledgement line; longer input is garbage.
const MaxLineLength = 256

// ErrLineTooLong is returned when the target sends MaxLineLength bytes
// without a newline.
var ErrLineTooLong = errors.New("link: line too long")

// OpenSerial opens a real serial port, 8N1.
func OpenSerial(cfg Config) (Port, error) {
	if cfg.Port == "" {
		return nil, errors.New("link: port required")
	}
	p, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("link: open %s: %w", cfg.Port, err)
	}
	return p, nil
}

// Client is one open connection to the target.
// It is owned by a single session and is not safe for concurrent use.
type Client struct {
	port    Port
	cfg     Config
	pending []byte
}

// Dial opens the port, waits cfg.Settle and clears both buffers.
func Dial(ctx context.Context, cfg Config, open Opener) (*Client, error) {
	if open == nil {
		open = OpenSerial
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 10 * time.Millisecond
	}

	p, err := open(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{port: p, cfg: cfg}

	if cfg.Settle > 0 {
		t := time.NewTimer(cfg.Settle)
		select {
		case <-ctx.Done():
			t.Stop()
			p.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("link: flush input: %w", err)
	}
	if err := p.ResetOutputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("link: flush output: %w", err)
	}

	return c, nil
}

// Close closes the port.
func (c *Client) Close() error {
	if c == nil || c.port == nil {
		return nil
	}
	return c.port.Close()
}

// Write sends b completely. A frame is never split across calls by the
// caller, so a cancelled session never leaves half a frame on the wire.
func (c *Client) Write(b []byte) error {
	for len(b) > 0 {
		n, err := c.port.Write(b)
		if err != nil {
			return fmt.Errorf("link: write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("link: write: %w", io.ErrShortWrite)
		}
		b = b[n:]
	}
	return nil
}

// ReadLine returns the next newline-terminated line without the newline.
// It gives up with ctx's error once ctx is done.
func (c *Client) ReadLine(ctx context.Context) (string, error) {
	if err := c.port.SetReadTimeout(c.cfg.Poll); err != nil {
		return "", fmt.Errorf("link: set read timeout: %w", err)
	}

	buf := make([]byte, 64)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return line, nil
		}
		if len(c.pending) >= MaxLineLength {
			bad := string(c.pending)
			c.pending = nil
			return bad, ErrLineTooLong
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		// a read timeout returns n == 0 with a nil error
		n, err := c.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("link: read: %w", err)
		}
		c.pending = append(c.pending, buf[:n]...)
	}
}
