// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tamzrod/register-programmer/internal/status"
)

// Client abstracts the Modbus read the poller needs (FC 3).
type Client interface {
	ReadRegisters(unitID uint8, addr, qty uint16) ([]uint16, error)
}

// Factory makes a new client. ONE attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   uint8
	BaseSlot uint16
	Interval time.Duration
}

// Poller is a dumb, clock-driven reader of one programmer's status block.
type Poller struct {
	cfg     Config
	client  Client
	factory Factory
}

// New creates a poller with immutable config.
// client may be nil when factory is set; the first poll then connects.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}
	if uint32(cfg.BaseSlot)*status.SlotsPerDevice+status.SlotsPerDevice-1 > 0xFFFF {
		return nil, fmt.Errorf("poller: slot %d outside register space", cfg.BaseSlot)
	}
	return &Poller{cfg: cfg, client: client, factory: factory}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: a failed read or a block that does not decode aborts the cycle.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{At: time.Now()}

	if p.client == nil {
		c, err := p.factory()
		if err != nil {
			res.Err = err
			return res
		}
		p.client = c
	}

	regs, err := p.client.ReadRegisters(p.cfg.UnitID, p.cfg.BaseSlot*status.SlotsPerDevice, status.SlotsPerDevice)
	if err != nil {
		res.Err = err
		p.drop()
		return res
	}

	snap, name, err := status.Decode(regs)
	if err != nil {
		res.Err = err
		return res
	}

	// Commit only if the read and decode succeeded
	res.Registers = regs
	res.Snapshot = snap
	res.DeviceName = name
	return res
}

// drop discards a client after a transport failure so a future tick
// reconnects through the factory. Without a factory the client is kept.
func (p *Poller) drop() {
	if p.factory == nil {
		return
	}
	if c, ok := p.client.(io.Closer); ok {
		c.Close()
	}
	p.client = nil
}

// Close releases the current client.
func (p *Poller) Close() error {
	if c, ok := p.client.(io.Closer); ok {
		p.client = nil
		return c.Close()
	}
	return nil
}
