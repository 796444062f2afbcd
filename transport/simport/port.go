package simport

import (
	"errors"
	"sync"
	"time"

	"github.com/arloliu/go-numato/transport"
)

var (
	// ErrNotOpen is returned when writing to a device without an open port.
	ErrNotOpen = errors.New("simport: device not open")
	// ErrBusy is returned when opening a device that is already open.
	ErrBusy = errors.New("simport: device busy")
	// ErrPortClosed is returned by operations on a closed port.
	ErrPortClosed = errors.New("simport: port closed")
	// ErrNoSuchPort is returned when opening an unknown port name.
	ErrNoSuchPort = errors.New("simport: no such port")
)

// Port is an open connection to a simulated device. It implements
// transport.Port.
type Port struct {
	dev  *Device
	name string

	mu      sync.Mutex
	rx      []byte
	line    []byte
	timeout time.Duration
	closed  bool
	notify  chan struct{}
}

var _ transport.Port = (*Port)(nil)

func newPort(dev *Device, name string) *Port {
	return &Port{
		dev:     dev,
		name:    name,
		timeout: -1,
		notify:  make(chan struct{}, 1),
	}
}

// Name returns the port name.
func (p *Port) Name() string { return p.name }

// Read implements io.Reader. It blocks until data is available or the read
// timeout expires, in which case it returns 0 and a nil error.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, ErrPortClosed
		}
		if len(p.rx) > 0 {
			n := copy(b, p.rx)
			p.rx = p.rx[n:]
			p.mu.Unlock()

			return n, nil
		}
		p.mu.Unlock()

		if timeout == 0 {
			return 0, nil
		}

		select {
		case <-p.notify:
		case <-deadline:
			return 0, nil
		}
	}
}

// Write implements io.Writer. Every complete line, terminated by CR or LF,
// is executed by the device.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}

	var lines []string
	for _, c := range b {
		if c == '\r' || c == '\n' {
			if len(p.line) > 0 {
				lines = append(lines, string(p.line))
				p.line = p.line[:0]
			}

			continue
		}
		p.line = append(p.line, c)
	}
	p.mu.Unlock()

	p.dev.record(b)

	for _, line := range lines {
		out, delay, ok := p.dev.handleLine(line)
		if !ok {
			continue
		}
		if delay > 0 {
			time.AfterFunc(delay, func() { p.deliver(out) })
		} else {
			p.deliver(out)
		}
	}

	return len(b), nil
}

// SetReadTimeout sets the timeout of subsequent reads. A negative timeout
// blocks until data arrives.
func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.timeout = t

	return nil
}

// ResetInputBuffer discards received bytes not yet read.
func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.rx = p.rx[:0]

	return nil
}

// Buffered returns the number of received bytes not yet read.
func (p *Port) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.rx)
}

// Close closes the port and releases the device.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPortClosed
	}
	p.closed = true
	p.rx = nil
	p.mu.Unlock()

	p.wake()
	p.dev.detach(p)

	return nil
}

func (p *Port) deliver(data []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.rx = append(p.rx, data...)
	p.mu.Unlock()

	p.wake()
}

func (p *Port) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
