package pool

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// bufferPools holds one pool per buffer size. Frame capacity is configurable
// per device, so a single pool would hand out buffers of the wrong size.
var bufferPools = xsync.NewMapOf[int, *sync.Pool]()

// GetBuffer returns a zero-filled byte slice of length size from the pool.
//
// Return the buffer to the pool with PutBuffer.
func GetBuffer(size int) []byte {
	if size <= 0 {
		return nil
	}

	p := poolFor(size)
	if v := p.Get(); v != nil {
		bp, _ := v.(*[]byte) // only *[]byte values are put into the pool
		buf := *bp
		clear(buf)

		return buf
	}

	return make([]byte, size)
}

// PutBuffer returns buf to the pool.
//
// buf cannot be accessed after returning to the pool.
func PutBuffer(buf []byte) {
	if cap(buf) == 0 {
		return
	}

	buf = buf[:cap(buf)]
	poolFor(len(buf)).Put(&buf)
}

func poolFor(size int) *sync.Pool {
	p, _ := bufferPools.LoadOrCompute(size, func() *sync.Pool {
		return &sync.Pool{}
	})

	return p
}
