// internal/poller/builder.go
package poller

import (
	"time"

	wmodbus "github.com/tamzrod/register-programmer/internal/writer/modbus"
)

// BuildConfig places the status block to watch.
type BuildConfig struct {
	Endpoint string
	UnitID   uint8
	BaseSlot uint16
	Interval time.Duration
	Timeout  time.Duration
}

// Build constructs a Poller and wires Modbus client lifecycle.
// Connection is reused while healthy.
// On transport death, Poller discards the client and uses factory on a future tick.
func Build(bc BuildConfig) (*Poller, error) {
	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		return wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: bc.Endpoint,
			Timeout:  bc.Timeout,
		})
	}

	// initial client (fail fast at startup)
	client, err := factory()
	if err != nil {
		return nil, err
	}

	return New(
		Config{
			UnitID:   bc.UnitID,
			BaseSlot: bc.BaseSlot,
			Interval: bc.Interval,
		},
		client,
		factory,
	)
}
