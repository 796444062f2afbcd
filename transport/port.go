// Package transport provides the serial byte stream used by the driver and
// the frame reader that drains it.
//
// A [Port] is the minimal capability set the driver needs from a serial
// device: blocking reads bounded by a read timeout, writes, input purge and
// close. [go.bug.st/serial.Port] satisfies it as is; [SerialOpener] opens such
// ports and enumerates candidates. Tests use the in-memory ports of the
// simport sub-package.
package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Port is an open serial byte stream.
//
// Read blocks until at least one byte is available or the read timeout set
// by SetReadTimeout expires. On timeout it returns 0 and a nil error, or an
// error for which IsTimeout reports true. A timeout of 0 makes Read return
// immediately with whatever is buffered.
type Port interface {
	io.ReadWriteCloser
	// SetReadTimeout sets the timeout of subsequent Read calls.
	SetReadTimeout(t time.Duration) error
	// ResetInputBuffer discards received bytes not yet read.
	ResetInputBuffer() error
}

// Opener opens ports by name and lists the candidate port names.
type Opener interface {
	// Open opens the named port at baudRate.
	Open(name string, baudRate int) (Port, error)
	// List returns the names of the ports present, in enumeration order.
	List() ([]string, error)
}

// IsTimeout reports whether err is a read timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
