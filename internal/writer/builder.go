// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	"github.com/tamzrod/register-programmer/internal/status"
	wmodbus "github.com/tamzrod/register-programmer/internal/writer/modbus"
)

// BuildStatusWriter connects to the plan's endpoint and returns the writer
// and a closer for its connection.
func BuildStatusWriter(plan StatusPlan, timeout time.Duration) (StatusWriter, func() error, error) {
	if plan.Endpoint == "" {
		return nil, nil, errors.New("writer: status endpoint required")
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	return NewDeviceStatusWriter(plan, c), c.Close, nil
}

// ReadStatus reads a status block back from the endpoint.
func ReadStatus(plan StatusPlan, timeout time.Duration) ([]uint16, error) {
	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if plan.UnitID > 255 {
		return nil, errors.New("writer: unit id out of range")
	}
	return c.ReadRegisters(uint8(plan.UnitID), plan.BaseSlot*status.SlotsPerDevice, status.SlotsPerDevice)
}
