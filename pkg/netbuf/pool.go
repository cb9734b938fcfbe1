// Package netbuf provides reusable byte buffers for the netlink queue worker,
// adapted from a general-purpose buffer pool keyed by packet-class size into
// the two fixed sizes NFQUEUE actually needs: a receive buffer large enough
// for a full COPY_PACKET payload, and a small send buffer for verdict and
// config messages.
package netbuf

import "sync"

// Standard buffer sizes used by the queue worker (spec: receive buffer
// >=64KiB, send buffer >=4KiB).
const (
	RecvBufferSize = 65536
	SendBufferSize = 4096
)

// Pool is a pool of reusable, fixed-size byte buffers.
type Pool struct {
	size int
	pool sync.Pool
}

// NewPool creates a pool that hands out buffers of the given size.
func NewPool(size int) *Pool {
	return &Pool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get retrieves a full-capacity buffer from the pool.
func (p *Pool) Get() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Put returns a buffer to the pool. The caller must not retain the slice
// after calling Put.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

// Recv and Send are the process-wide pools backing a single queue worker's
// two scratch buffers (spec.md §3, "QueueWorker state").
var (
	Recv = NewPool(RecvBufferSize)
	Send = NewPool(SendBufferSize)
)
