package numato

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-numato/internal/queue"
	"github.com/arloliu/go-numato/logger"
	"github.com/arloliu/go-numato/protocol"
	"github.com/arloliu/go-numato/transport"
)

// Device is a connection to one Numato-style GPIO/ADC board.
//
// It owns at most one open port. Command methods write a command and return
// without waiting for the board; replies are collected with ReadFrame,
// ReadAvailable or the Query helpers.
//
// The port handle is guarded by a mutex, but sequences of calls are not
// atomic: a read interleaved with a concurrent Open from another goroutine
// may observe either port.
type Device struct {
	cfg    *DeviceConfig
	logger logger.Logger

	portMu   sync.Mutex
	port     transport.Port
	reader   *transport.FrameReader
	portName string
	baudRate int

	opState AtomicOpState

	infoMu      sync.RWMutex
	version     string
	versionLine string
	id          string

	messages queue.Queue[string]

	metrics DeviceMetrics
}

// NewDevice creates a closed Device with the given configuration.
func NewDevice(cfg *DeviceConfig) (*Device, error) {
	if cfg == nil {
		return nil, errors.New("numato: device config is nil")
	}

	d := &Device{
		cfg:      cfg,
		logger:   cfg.logger,
		messages: queue.NewRingQueue[string](cfg.messageQueueSize),
	}
	d.opState.Set(ClosedState)

	return d, nil
}

// Config returns the device configuration.
func (d *Device) Config() *DeviceConfig { return d.cfg }

// GetLogger returns the device logger.
func (d *Device) GetLogger() logger.Logger { return d.logger }

// GetMetrics returns the device metrics.
func (d *Device) GetMetrics() *DeviceMetrics { return &d.metrics }

// State returns the connection state.
func (d *Device) State() OpState { return d.opState.Get() }

// IsOpen reports whether a port is open.
func (d *Device) IsOpen() bool {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	return d.port != nil
}

// PortName returns the name of the open port, or "" when closed.
func (d *Device) PortName() string {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	return d.portName
}

// BaudRate returns the baud rate of the open port, or 0 when closed.
func (d *Device) BaudRate() int {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	return d.baudRate
}

// --- connection ---

// Open opens the named port, closing the currently open one first.
//
// A baudRate <= 0 selects DefaultBaudRate. On failure the device is left
// closed with an empty port name, and the error is of kind
// protocol.KindPortUnavailable.
func (d *Device) Open(name string, baudRate int) error {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	return d.openLocked(name, baudRate)
}

func (d *Device) openLocked(name string, baudRate int) error {
	if d.port != nil {
		if err := d.closeLocked(); err != nil {
			d.logger.Warn("numato: close before reopen failed", "error", err)
		}
	}

	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	if !d.opState.ToOpening() {
		d.logger.Warn("numato: failed to set device to opening state",
			"port", name, "opState", d.opState.String())
	}
	d.portName = name
	d.baudRate = baudRate

	p, err := d.cfg.opener.Open(name, baudRate)
	if err != nil {
		d.resetLocked()
		return protocol.NewError(protocol.KindPortUnavailable, "open", name, err)
	}

	if err := p.SetReadTimeout(d.cfg.readTimeout); err != nil {
		_ = p.Close()
		d.resetLocked()

		return protocol.NewError(protocol.KindPortUnavailable, "set read timeout", name, err)
	}

	d.port = p
	d.reader = transport.NewFrameReader(p, d.cfg.readerConfig())
	if !d.opState.ToOpened() {
		d.logger.Warn("numato: failed to set device to opened state",
			"port", name, "opState", d.opState.String())
		d.opState.Set(OpenedState)
	}

	d.logger.Debug("numato: port opened", "port", name, "baud", baudRate)

	return nil
}

// Close closes the open port. It always leaves the device closed and is a
// no-op when nothing is open.
func (d *Device) Close() error {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	return d.closeLocked()
}

func (d *Device) closeLocked() error {
	var err error
	if d.port != nil {
		if cerr := d.port.Close(); cerr != nil {
			err = protocol.NewError(protocol.KindPortUnavailable, "close", d.portName, cerr)
		}
		d.logger.Debug("numato: port closed", "port", d.portName)
	}
	d.resetLocked()

	return err
}

func (d *Device) resetLocked() {
	d.port = nil
	d.reader = nil
	d.portName = ""
	d.baudRate = 0
	d.opState.ToClosed()
}

// Discover tries every port reported by the opener, in order, and keeps the
// first one that answers the version query with a recognizable reply.
//
// Ports that do not answer within the probe timeout are closed again. The
// error is of kind protocol.KindProtocolMismatch when some port could be
// opened but none answered, and protocol.KindPortUnavailable when no port
// could be opened at all. Both wrap protocol.ErrNoDevice. ctx is checked
// between candidates; a canceled ctx yields a protocol.KindPortUnavailable
// error wrapping ctx.Err().
func (d *Device) Discover(ctx context.Context, baudRate int) (string, error) {
	names, err := d.cfg.opener.List()
	if err != nil {
		return "", protocol.NewError(protocol.KindPortUnavailable, "discover", "", err)
	}

	opened := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return "", protocol.NewError(protocol.KindPortUnavailable, "discover", "", err)
		}

		d.metrics.incProbeCount()
		d.logger.Debug("numato: probing port", "port", name)

		version, line, err := d.probe(name, baudRate)
		if !d.IsOpen() {
			d.logger.Debug("numato: port unavailable", "port", name, "error", err)
			continue
		}
		opened++

		if version != "" {
			d.setVersion(version, line)
			d.logger.Info("numato: device discovered", "port", name, "version", version)

			return name, nil
		}

		d.logger.Debug("numato: no version reply", "port", name, "error", err)
		_ = d.Close()
	}

	kind := protocol.KindProtocolMismatch
	if opened == 0 {
		kind = protocol.KindPortUnavailable
	}
	d.logger.Warn("numato: no device discovered", "candidates", len(names))

	return "", protocol.NewError(kind, "discover", "", protocol.ErrNoDevice)
}

// probe opens name and asks for the firmware version. It returns the parsed
// version token and the reply line; the port stays open.
func (d *Device) probe(name string, baudRate int) (string, string, error) {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	if err := d.openLocked(name, baudRate); err != nil {
		return "", "", err
	}
	if err := d.writeLocked(protocol.Version()); err != nil {
		return "", "", err
	}

	text, err := d.readTextLocked(d.cfg.probeTimeout)
	version := protocol.Parse(text)
	if version == "" {
		return "", "", err
	}

	return version, firstLine(protocol.ReplyLines(text)), nil
}

// --- commands ---

// send writes cmd when a port is open. With no open port it does nothing and
// returns nil; a nil error therefore does not confirm delivery.
func (d *Device) send(cmd protocol.Command) error {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	if d.port == nil {
		return nil
	}

	return d.writeLocked(cmd)
}

func (d *Device) writeLocked(cmd protocol.Command) error {
	d.logger.Debug("numato: sending command", "port", d.portName, "cmd", cmd.String())

	if _, err := d.port.Write(cmd.Encode(d.cfg.lineEnding)); err != nil {
		d.metrics.incCommandErrCount()
		return protocol.NewError(protocol.KindPortUnavailable, "write", d.portName, err)
	}
	d.metrics.incCommandSendCount()

	return nil
}

// RequestVersion sends the firmware version query.
func (d *Device) RequestVersion() error { return d.send(protocol.Version()) }

// SetID sends "id set".
func (d *Device) SetID(id string) error { return d.send(protocol.SetID(id)) }

// GetID sends "id get".
func (d *Device) GetID() error { return d.send(protocol.GetID()) }

// GPIOIOMask sends "gpio iomask" with mask written in the configured mask encoding.
func (d *Device) GPIOIOMask(mask byte) error {
	return d.send(protocol.IOMask(mask, d.cfg.maskEncoding))
}

// GPIOIODir sends "gpio iodir" with dir written in the configured mask encoding.
func (d *Device) GPIOIODir(dir byte) error {
	return d.send(protocol.IODir(dir, d.cfg.maskEncoding))
}

// GPIOSet sends "gpio set".
func (d *Device) GPIOSet(n byte) error { return d.send(protocol.GPIOSet(n)) }

// GPIOClear sends "gpio clear".
func (d *Device) GPIOClear(n byte) error { return d.send(protocol.GPIOClear(n)) }

// GPIORead sends "gpio read".
func (d *Device) GPIORead(n byte) error { return d.send(protocol.GPIORead(n)) }

// GPIOWriteAll sends "gpio writeall" with value written in the configured mask encoding.
func (d *Device) GPIOWriteAll(value byte) error {
	return d.send(protocol.GPIOWriteAll(value, d.cfg.maskEncoding))
}

// GPIOReadAll sends "gpio readall".
func (d *Device) GPIOReadAll() error { return d.send(protocol.GPIOReadAll()) }

// ADCRead sends "adc read".
func (d *Device) ADCRead(n byte) error { return d.send(protocol.ADCRead(n)) }

// --- reads ---

// ReadFrame waits up to wait for data, then drains the port into a frame.
//
// The payload of every non-empty frame is also queued as a message, see
// NextMessage. Soft errors (protocol.ErrTimeout, protocol.ErrBufferOverrun)
// come with a valid frame. The caller should Release the frame.
func (d *Device) ReadFrame(wait time.Duration) (*protocol.Frame, error) {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	if d.reader == nil {
		return protocol.NewFrame(d.cfg.frameCapacity), closedError("read frame")
	}

	frame, err := d.reader.ReadFrame(wait)
	d.recordFrame(frame, true)

	return frame, d.tag(err)
}

// ReadAvailable drains what the port holds right now without waiting. It
// returns the frame and the number of bytes available at read start, including
// bytes dropped by an overrun. The payload is queued like in ReadFrame.
func (d *Device) ReadAvailable() (*protocol.Frame, int, error) {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	if d.reader == nil {
		return protocol.NewFrame(d.cfg.frameCapacity), 0, closedError("read available")
	}

	frame, n, err := d.reader.ReadAvailable()
	d.recordFrame(frame, true)

	return frame, n, d.tag(err)
}

// Parse extracts the payload token of a version, readall or adc reply.
// See protocol.Parse.
func (d *Device) Parse(text string) string {
	return protocol.Parse(text)
}

// readTextLocked reads one frame and returns its full decoded text.
// Overruns are logged and otherwise ignored; the truncated text is returned.
func (d *Device) readTextLocked(wait time.Duration) (string, error) {
	frame, err := d.reader.ReadFrame(wait)
	defer frame.Release()

	d.recordFrame(frame, false)
	if errors.Is(err, protocol.ErrBufferOverrun) {
		d.logger.Warn("numato: frame overrun", "port", d.portName, "dropped", frame.Dropped())
		err = nil
	}

	return frame.Text(), d.tag(err)
}

func (d *Device) recordFrame(frame *protocol.Frame, enqueue bool) {
	d.metrics.addFrame(frame.Received(), frame.Dropped())

	if !enqueue || frame.Len() == 0 {
		return
	}
	if old, evicted := d.messages.Enqueue(frame.PayloadText()); evicted {
		d.metrics.incMessageDropCount()
		d.logger.Debug("numato: message queue full, oldest message dropped", "dropped", len(old))
	}
}

// tag fills in the port name of err.
func (d *Device) tag(err error) error {
	var pe *protocol.Error
	if errors.As(err, &pe) && pe.Port == "" {
		pe.Port = d.portName
	}

	return err
}

func closedError(op string) error {
	return protocol.NewError(protocol.KindPortUnavailable, op, "", protocol.ErrPortClosed)
}

// --- queries ---

// Query sends cmd, waits up to the response timeout for the reply and parses
// it with protocol.ParseValue. The reply is consumed and not queued.
//
// Only replies that protocol.Parse recognizes (version, readall, adc) yield a
// value; other commands return protocol.ErrNotRecognized.
func (d *Device) Query(cmd protocol.Command) (string, error) {
	text, err := d.exchange(cmd)
	if err != nil {
		return "", err
	}

	v, err := protocol.ParseValue(text)
	if err != nil {
		return "", d.tag(protocol.NewError(protocol.KindProtocolMismatch, cmd.Keyword, "", err))
	}

	return v, nil
}

// exchange discards pending input, writes cmd and reads the reply text.
func (d *Device) exchange(cmd protocol.Command) (string, error) {
	d.portMu.Lock()
	defer d.portMu.Unlock()

	if d.port == nil {
		return "", closedError(cmd.Keyword)
	}
	// stale replies of earlier commands would shift the reply lines
	if err := d.port.ResetInputBuffer(); err != nil {
		return "", protocol.NewError(protocol.KindPortUnavailable, "discard input", d.portName, err)
	}
	if err := d.writeLocked(cmd); err != nil {
		return "", err
	}

	return d.readTextLocked(d.cfg.responseTimeout)
}

// Version queries the firmware version token and caches it, see FirmwareVersion.
func (d *Device) Version() (string, error) {
	text, err := d.exchange(protocol.Version())
	if err != nil {
		return "", err
	}

	v, err := protocol.ParseValue(text)
	if err != nil {
		return "", d.tag(protocol.NewError(protocol.KindProtocolMismatch, protocol.KeywordVersion, "", err))
	}
	d.setVersion(v, firstLine(protocol.ReplyLines(text)))

	return v, nil
}

// ReadADC queries ADC channel n and returns the reading.
func (d *Device) ReadADC(n byte) (int, error) {
	v, err := d.Query(protocol.ADCRead(n))
	if err != nil {
		return 0, err
	}

	reading, err := strconv.Atoi(v)
	if err != nil {
		return 0, d.tag(protocol.NewError(protocol.KindProtocolMismatch, protocol.KeywordADCRead, "", err))
	}

	return reading, nil
}

// ReadAllGPIO queries the level of all GPIOs, bit n for GPIO n.
func (d *Device) ReadAllGPIO() (byte, error) {
	v, err := d.Query(protocol.GPIOReadAll())
	if err != nil {
		return 0, err
	}

	levels, err := strconv.ParseUint(v, 16, 8)
	if err != nil {
		return 0, d.tag(protocol.NewError(protocol.KindProtocolMismatch, protocol.KeywordGPIOReadAll, "", err))
	}

	return byte(levels), nil
}

// ReadGPIO queries the level of GPIO n. The board answers "on"/"off" or "1"/"0".
func (d *Device) ReadGPIO(n byte) (bool, error) {
	reply, err := d.replyLine(protocol.GPIORead(n))
	if err != nil {
		return false, err
	}

	switch strings.ToLower(reply) {
	case "on", "1":
		return true, nil
	case "off", "0":
		return false, nil
	default:
		return false, d.tag(protocol.NewError(protocol.KindProtocolMismatch, protocol.KeywordGPIORead, "",
			protocol.ErrNotRecognized))
	}
}

// ReadID queries the board identifier and caches it, see ID.
func (d *Device) ReadID() (string, error) {
	reply, err := d.replyLine(protocol.GetID())
	if err != nil {
		return "", err
	}

	d.infoMu.Lock()
	d.id = reply
	d.infoMu.Unlock()

	return reply, nil
}

// replyLine sends cmd and returns the first reply line.
func (d *Device) replyLine(cmd protocol.Command) (string, error) {
	text, err := d.exchange(cmd)
	if err != nil {
		return "", err
	}

	line := firstLine(protocol.ReplyLines(text))
	if line == "" {
		return "", d.tag(protocol.NewError(protocol.KindProtocolMismatch, cmd.Keyword, "", protocol.ErrNotRecognized))
	}

	return line, nil
}

// FirmwareVersion returns the version token of the last successful discovery
// or Version call.
func (d *Device) FirmwareVersion() string {
	d.infoMu.RLock()
	defer d.infoMu.RUnlock()

	return d.version
}

// VersionLine returns the full version reply line that FirmwareVersion was
// taken from.
func (d *Device) VersionLine() string {
	d.infoMu.RLock()
	defer d.infoMu.RUnlock()

	return d.versionLine
}

// ID returns the identifier of the last successful ReadID call.
func (d *Device) ID() string {
	d.infoMu.RLock()
	defer d.infoMu.RUnlock()

	return d.id
}

func (d *Device) setVersion(version, line string) {
	d.infoMu.Lock()
	defer d.infoMu.Unlock()

	d.version = version
	d.versionLine = line
}

// --- message queue ---

// PendingMessages returns the number of queued messages.
func (d *Device) PendingMessages() int {
	return d.messages.Length()
}

// NextMessage removes and returns the oldest queued message.
func (d *Device) NextMessage() (string, bool) {
	return d.messages.Dequeue()
}

// ClearMessages drops every queued message.
func (d *Device) ClearMessages() {
	d.messages.Reset()
}

func firstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	return lines[0]
}
