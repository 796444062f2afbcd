// Package simport provides in-memory serial ports backed by simulated
// Numato-style GPIO/ADC boards, for tests and examples that run without
// hardware.
//
// A [Bus] plays the role of the operating system: it implements
// transport.Opener over a set of named simulated [Device] values. Each
// opened [Port] answers commands the way the board does: it echoes the
// command line, writes the reply (if any) and a ">" prompt:
//
//	<command>\r\n<reply>\r\n>
package simport

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultVersion is the version banner of a simulated board.
const DefaultVersion = "Numato Lab 8 Channel USB GPIO v1.0"

// DefaultID is the identifier of a simulated board.
const DefaultID = "00000000"

// numChannels is the number of GPIOs and ADC inputs of a simulated board.
const numChannels = 8

// Responder computes the reply text for a command line. Returning ok=false
// makes the board stay silent, without echo or prompt.
type Responder func(line string) (reply string, ok bool)

// Device is a simulated board.
type Device struct {
	mu sync.Mutex

	version string
	id      string

	outputs byte
	inputs  byte
	iomask  byte
	iodir   byte
	adc     [numChannels]uint16

	responder  Responder
	openErr    error
	replyDelay time.Duration

	port      *Port
	openCount int
	lastBaud  int
	received  bytes.Buffer
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithVersion sets the version banner.
func WithVersion(version string) DeviceOption {
	return func(d *Device) { d.version = version }
}

// WithID sets the board identifier.
func WithID(id string) DeviceOption {
	return func(d *Device) { d.id = id }
}

// WithADC sets the reading of ADC channel ch.
func WithADC(ch int, value uint16) DeviceOption {
	return func(d *Device) {
		if ch >= 0 && ch < numChannels {
			d.adc[ch] = value
		}
	}
}

// WithInputs sets the levels seen on GPIOs configured as inputs.
func WithInputs(levels byte) DeviceOption {
	return func(d *Device) { d.inputs = levels }
}

// WithResponder replaces the board command handling.
func WithResponder(r Responder) DeviceOption {
	return func(d *Device) { d.responder = r }
}

// WithSilent makes the device accept bytes without ever answering, like a
// serial port with something else attached.
func WithSilent() DeviceOption {
	return WithResponder(func(string) (string, bool) { return "", false })
}

// WithOpenError makes every open of the device fail with err.
func WithOpenError(err error) DeviceOption {
	return func(d *Device) { d.openErr = err }
}

// WithReplyDelay delays every answer by d.
func WithReplyDelay(delay time.Duration) DeviceOption {
	return func(d *Device) { d.replyDelay = delay }
}

// NewDevice creates a simulated board. All GPIOs start as inputs with the
// write mask fully open.
func NewDevice(opts ...DeviceOption) *Device {
	d := &Device{
		version: DefaultVersion,
		id:      DefaultID,
		iomask:  0xFF,
		iodir:   0xFF,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// IsOpen reports whether a port is currently open on the device.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.port != nil
}

// OpenCount returns how many times the device was opened successfully.
func (d *Device) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.openCount
}

// BaudRate returns the baud rate of the last successful open.
func (d *Device) BaudRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastBaud
}

// Received returns every byte written to the device so far.
func (d *Device) Received() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.received.String()
}

// ID returns the current board identifier.
func (d *Device) ID() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.id
}

// Outputs returns the GPIO output latch.
func (d *Device) Outputs() byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.outputs
}

// IOMask returns the write mask.
func (d *Device) IOMask() byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.iomask
}

// IODir returns the direction register, 1 = input.
func (d *Device) IODir() byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.iodir
}

// Inject queues data on the open port as if the board had sent it.
func (d *Device) Inject(data []byte) error {
	d.mu.Lock()
	p := d.port
	d.mu.Unlock()

	if p == nil {
		return ErrNotOpen
	}
	p.deliver(data)

	return nil
}

func (d *Device) attach(p *Port, baudRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openErr != nil {
		return d.openErr
	}
	if d.port != nil {
		return ErrBusy
	}
	d.port = p
	d.openCount++
	d.lastBaud = baudRate

	return nil
}

func (d *Device) detach(p *Port) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == p {
		d.port = nil
	}
}

// handleLine runs one command line and returns the bytes to send back.
func (d *Device) handleLine(line string) ([]byte, time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		reply string
		ok    bool
	)
	if d.responder != nil {
		reply, ok = d.responder(line)
	} else {
		reply, ok = d.execute(line), true
	}
	if !ok {
		return nil, 0, false
	}

	var out bytes.Buffer
	out.WriteString(line)
	out.WriteString("\r\n")
	if reply != "" {
		out.WriteString(reply)
		out.WriteString("\r\n")
	}
	out.WriteString(">")

	return out.Bytes(), d.replyDelay, true
}

// execute applies a board command. Callers hold d.mu.
func (d *Device) execute(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	switch fields[0] {
	case "ver":
		return d.version
	case "id":
		return d.executeID(fields[1:])
	case "gpio":
		return d.executeGPIO(fields[1:])
	case "adc":
		if len(fields) == 3 && fields[1] == "read" {
			if ch, ok := channel(fields[2]); ok {
				return strconv.Itoa(int(d.adc[ch]))
			}
		}
	}

	return ""
}

func (d *Device) executeID(args []string) string {
	switch {
	case len(args) == 1 && args[0] == "get":
		return d.id
	case len(args) == 2 && args[0] == "set":
		d.id = args[1]
	}

	return ""
}

func (d *Device) executeGPIO(args []string) string {
	if len(args) == 0 {
		return ""
	}

	switch args[0] {
	case "set", "clear", "read":
		if len(args) != 2 {
			return ""
		}
		ch, ok := channel(args[1])
		if !ok {
			return ""
		}
		bit := byte(1) << ch

		switch args[0] {
		case "set":
			d.outputs |= bit
			d.iodir &^= bit
		case "clear":
			d.outputs &^= bit
			d.iodir &^= bit
		case "read":
			d.iodir |= bit
			if d.inputs&bit != 0 {
				return "on"
			}

			return "off"
		}
	case "readall":
		return fmt.Sprintf("%02x", d.levels())
	case "iomask", "iodir", "writeall":
		if len(args) != 2 {
			return ""
		}
		v, err := strconv.ParseUint(args[1], 16, 8)
		if err != nil {
			return ""
		}
		b := byte(v)

		switch args[0] {
		case "iomask":
			d.iomask = b
		case "iodir":
			d.iodir = (d.iodir &^ d.iomask) | (b & d.iomask)
		case "writeall":
			d.outputs = (d.outputs &^ d.iomask) | (b & d.iomask)
		}
	}

	return ""
}

// levels returns input levels for inputs and the latch for outputs.
func (d *Device) levels() byte {
	return (d.inputs & d.iodir) | (d.outputs &^ d.iodir)
}

func channel(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= numChannels {
		return 0, false
	}

	return n, true
}

func (d *Device) record(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.received.Write(b)
}
