package protocol

import (
	"github.com/arloliu/go-numato/internal/pool"
)

// DefaultFrameCapacity is the number of bytes one read cycle can hold.
const DefaultFrameCapacity = 257

// Frame is the result of one read cycle: the bytes that were available on the
// stream, up to a fixed capacity. It is not necessarily one logical message.
//
// Bytes received beyond the capacity are not stored; they are only counted,
// see Dropped.
type Frame struct {
	buf     []byte
	n       int
	dropped int
}

// NewFrame creates an empty frame holding up to capacity bytes.
// A capacity <= 0 selects DefaultFrameCapacity.
func NewFrame(capacity int) *Frame {
	if capacity <= 0 {
		capacity = DefaultFrameCapacity
	}

	return &Frame{buf: pool.GetBuffer(capacity)}
}

// Append stores data in the frame and returns the number of bytes stored.
// Bytes that do not fit are counted as dropped.
func (f *Frame) Append(data []byte) int {
	n := copy(f.buf[f.n:], data)
	f.n += n
	f.dropped += len(data) - n

	return n
}

// Len returns the number of stored bytes.
func (f *Frame) Len() int { return f.n }

// Cap returns the frame capacity.
func (f *Frame) Cap() int { return len(f.buf) }

// Dropped returns the number of bytes received but not stored.
func (f *Frame) Dropped() int { return f.dropped }

// Received returns the number of bytes received in this cycle, stored or not.
func (f *Frame) Received() int { return f.n + f.dropped }

// Overrun reports whether bytes were dropped.
func (f *Frame) Overrun() bool { return f.dropped > 0 }

// IsEmpty reports whether nothing was received.
func (f *Frame) IsEmpty() bool { return f.Received() == 0 }

// Payload returns the stored bytes. The slice is only valid until Release.
func (f *Frame) Payload() []byte { return f.buf[:f.n] }

// Text decodes the whole buffer, including the zero fill after the stored
// bytes. Parse tolerates the padding; use PayloadText for the stored bytes only.
func (f *Frame) Text() string { return string(f.buf) }

// PayloadText decodes the stored bytes.
func (f *Frame) PayloadText() string { return string(f.buf[:f.n]) }

// Release returns the frame buffer to the pool. The frame is empty afterwards.
func (f *Frame) Release() {
	if f == nil || f.buf == nil {
		return
	}

	pool.PutBuffer(f.buf)
	f.buf = nil
	f.n = 0
	f.dropped = 0
}
