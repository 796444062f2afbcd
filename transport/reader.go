package transport

import (
	"fmt"
	"time"

	"github.com/arloliu/go-numato/protocol"
)

// Default frame reader timing.
const (
	DefaultReadTimeout      = 50 * time.Millisecond
	DefaultInterByteTimeout = 10 * time.Millisecond
)

// drainLimitFactor bounds one drain cycle to this many frame capacities, so a
// board that never stops talking cannot hold the reader forever. The rest is
// discarded with the input buffer.
const drainLimitFactor = 8

// readChunkSize is the size of a single Read call.
const readChunkSize = 64

// ReaderConfig configures a FrameReader.
type ReaderConfig struct {
	// Capacity is the frame capacity in bytes.
	Capacity int
	// InterByteTimeout is how long the drain waits for the next byte once
	// data started arriving. Zero drains only what is already buffered.
	InterByteTimeout time.Duration
	// ReadTimeout is the port read timeout restored after each read cycle.
	ReadTimeout time.Duration
}

// FrameReader drains a Port into frames.
//
// One read cycle optionally waits for the first byte, reads while bytes keep
// arriving, then discards whatever is left in the port input buffer. Bytes
// beyond the frame capacity are counted as dropped.
//
// This type is NOT goroutine-safe.
type FrameReader struct {
	port  Port
	cfg   ReaderConfig
	chunk []byte
}

// NewFrameReader creates a FrameReader over port.
func NewFrameReader(port Port, cfg ReaderConfig) *FrameReader {
	if cfg.Capacity <= 0 {
		cfg.Capacity = protocol.DefaultFrameCapacity
	}
	if cfg.InterByteTimeout < 0 {
		cfg.InterByteTimeout = 0
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	return &FrameReader{
		port:  port,
		cfg:   cfg,
		chunk: make([]byte, readChunkSize),
	}
}

// Config returns the reader configuration.
func (r *FrameReader) Config() ReaderConfig { return r.cfg }

// ReadFrame waits up to wait for the first byte, then drains the port.
//
// It returns a protocol.ErrTimeout kind error and an empty frame when nothing
// arrives in time, and a protocol.ErrBufferOverrun kind error together with
// the truncated frame when bytes were dropped. The caller owns the returned
// frame and should Release it.
func (r *FrameReader) ReadFrame(wait time.Duration) (*protocol.Frame, error) {
	if wait < 0 {
		wait = 0
	}

	frame, err := r.cycle(wait, r.cfg.InterByteTimeout)
	if err != nil {
		return frame, err
	}

	if frame.IsEmpty() {
		return frame, protocol.NewError(protocol.KindTimeout, "read frame", "",
			fmt.Errorf("no data within %v", wait))
	}

	return frame, overrunError(frame)
}

// ReadAvailable drains what the port has buffered right now. It never waits:
// every read uses a zero timeout and the drain stops at the first empty read,
// so bytes arriving during the call are discarded with the input buffer.
//
// It returns the frame and the number of bytes that were available at read
// start, including dropped ones; zero means nothing was available and is not
// an error.
func (r *FrameReader) ReadAvailable() (*protocol.Frame, int, error) {
	frame, err := r.cycle(0, 0)
	if err != nil {
		return frame, frame.Received(), err
	}

	return frame, frame.Received(), overrunError(frame)
}

func (r *FrameReader) cycle(wait, gap time.Duration) (*protocol.Frame, error) {
	frame := protocol.NewFrame(r.cfg.Capacity)

	err := r.drain(frame, wait, gap)

	// unread input is never carried over to the next frame
	if rerr := r.port.ResetInputBuffer(); rerr != nil && err == nil {
		err = protocol.NewError(protocol.KindPortUnavailable, "discard input", "", rerr)
	}
	if terr := r.port.SetReadTimeout(r.cfg.ReadTimeout); terr != nil && err == nil {
		err = protocol.NewError(protocol.KindPortUnavailable, "set read timeout", "", terr)
	}

	return frame, err
}

// drain waits up to wait for the first chunk, then keeps reading while the
// next chunk arrives within gap. A zero gap takes only what is buffered.
func (r *FrameReader) drain(frame *protocol.Frame, wait, gap time.Duration) error {
	n, err := r.readOnce(wait)
	if err != nil || n == 0 {
		return err
	}
	frame.Append(r.chunk[:n])

	limit := r.cfg.Capacity * drainLimitFactor
	for frame.Received() < limit {
		n, err = r.readOnce(gap)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		frame.Append(r.chunk[:n])
	}

	return nil
}

// readOnce performs one Read bounded by timeout. A timeout is reported as
// zero bytes read.
func (r *FrameReader) readOnce(timeout time.Duration) (int, error) {
	if err := r.port.SetReadTimeout(timeout); err != nil {
		return 0, protocol.NewError(protocol.KindPortUnavailable, "set read timeout", "", err)
	}

	n, err := r.port.Read(r.chunk)
	if err != nil {
		if IsTimeout(err) {
			return n, nil
		}

		return n, protocol.NewError(protocol.KindPortUnavailable, "read", "", err)
	}

	return n, nil
}

func overrunError(frame *protocol.Frame) error {
	if !frame.Overrun() {
		return nil
	}

	return protocol.NewError(protocol.KindBufferOverrun, "read frame", "",
		fmt.Errorf("%d of %d bytes dropped", frame.Dropped(), frame.Received()))
}
