// internal/link/discover.go
package link

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one serial port on the host.
type PortInfo struct {
	Name         string
	USB          bool
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
	Bridge       string // known USB-UART bridge family, empty if unknown
}

// Label returns a one-line description for listings.
func (p PortInfo) Label() string {
	if !p.USB {
		return p.Name
	}
	desc := p.Bridge
	if desc == "" {
		desc = p.Product
	}
	return fmt.Sprintf("%s %s (VID:PID %s:%s)", p.Name, desc, p.VendorID, p.ProductID)
}

type knownBridge struct {
	VendorID  string
	Family    string
	Preferred bool
}

// Bridges found on the target boards. CP210x ships on the reference board
// and wins when several ports are present.
var knownBridges = []knownBridge{
	{VendorID: "10C4", Family: "Silicon Labs CP210x", Preferred: true},
	{VendorID: "1A86", Family: "WCH CH34x"},
	{VendorID: "0403", Family: "FTDI"},
	{VendorID: "303A", Family: "Espressif USB-JTAG/serial"},
}

// Lister enumerates ports; tests replace it.
type Lister func() ([]*enumerator.PortDetails, error)

// Discover lists serial ports and picks the preferred one.
// preferred is empty when no port looks like a target board.
func Discover(list Lister) (ports []PortInfo, preferred string, err error) {
	if list == nil {
		list = enumerator.GetDetailedPortsList
	}
	details, err := list()
	if err != nil {
		return nil, "", fmt.Errorf("link: list ports: %w", err)
	}

	rank := -1
	for _, d := range details {
		info := PortInfo{
			Name:         d.Name,
			USB:          d.IsUSB,
			VendorID:     strings.ToUpper(d.VID),
			ProductID:    strings.ToUpper(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}

		r := 0
		if info.USB {
			r = 1
			for _, kb := range knownBridges {
				if info.VendorID == kb.VendorID {
					info.Bridge = kb.Family
					r = 2
					if kb.Preferred {
						r = 3
					}
				}
			}
			if strings.Contains(strings.ToLower(info.Product), "cp210") {
				info.Bridge = "Silicon Labs CP210x"
				r = 3
			}
		}
		if r > 1 && r > rank {
			rank = r
			preferred = info.Name
		}
		ports = append(ports, info)
	}

	return ports, preferred, nil
}
