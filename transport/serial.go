package transport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// NumatoVID is the USB vendor ID of Numato Lab boards.
const NumatoVID = "2A19"

// SerialOpener opens operating system serial ports through go.bug.st/serial.
//
// When VID or PID is set, List only returns USB ports whose vendor/product ID
// match (case-insensitive); otherwise every serial port is a candidate.
type SerialOpener struct {
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits

	VID string
	PID string
}

var _ Opener = (*SerialOpener)(nil)

// NewSerialOpener creates a SerialOpener using 8N1 framing.
func NewSerialOpener() *SerialOpener {
	return &SerialOpener{
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the named port at baudRate.
func (o *SerialOpener) Open(name string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: o.DataBits,
		Parity:   o.Parity,
		StopBits: o.StopBits,
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// List returns the serial port names present on the system.
func (o *SerialOpener) List() ([]string, error) {
	if o.VID == "" && o.PID == "" {
		return serial.GetPortsList()
	}

	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("numato: enumerate usb ports: %w", err)
	}

	return filterPorts(details, o.VID, o.PID), nil
}

func filterPorts(details []*enumerator.PortDetails, vid string, pid string) []string {
	names := make([]string, 0, len(details))
	for _, d := range details {
		if !d.IsUSB {
			continue
		}
		if vid != "" && !strings.EqualFold(d.VID, vid) {
			continue
		}
		if pid != "" && !strings.EqualFold(d.PID, pid) {
			continue
		}
		names = append(names, d.Name)
	}

	return names
}
