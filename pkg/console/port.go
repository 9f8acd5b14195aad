//go:build !tinygo

package console

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate matches the Vernier sketch.
const DefaultBaudRate = 115200

// pollTimeout keeps Read from stalling the server loop.
const pollTimeout = time.Millisecond

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name        string
	Description string
}

// Ports returns the serial ports available on the host.
func Ports() ([]PortInfo, error) {
	detailed, err := enumerator.GetDetailedPortsList()
	if err == nil && len(detailed) > 0 {
		result := make([]PortInfo, 0, len(detailed))
		for _, p := range detailed {
			desc := p.Name
			switch {
			case p.IsUSB && p.Product != "":
				desc = fmt.Sprintf("%s (%s:%s)", p.Product, p.VID, p.PID)
			case p.IsUSB:
				desc = fmt.Sprintf("USB %s:%s", p.VID, p.PID)
			}
			result = append(result, PortInfo{Name: p.Name, Description: desc})
		}
		return result, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	result := make([]PortInfo, 0, len(names))
	for _, name := range names {
		result = append(result, PortInfo{Name: name, Description: name})
	}
	return result, nil
}

// Open opens a serial port for the console. Reads return after at most a
// millisecond so Poll can run on the server loop.
func Open(name string, baudRate int) (serial.Port, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	return port, nil
}
