package optimize

import (
	"sync"
)

// BytePool recycles fixed-size byte buffers across short-lived readers.
// Media read loops get one buffer per track and return it when the
// track ends, so consecutive watch sessions reuse the same memory.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a pool handing out buffers of exactly size bytes.
func NewBytePool(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

// Get returns a buffer of the pool's size.
func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a buffer to the pool. Undersized buffers are dropped so
// Get never hands out less than the pool's size.
func (p *BytePool) Put(b []byte) {
	if cap(b) >= p.size {
		p.pool.Put(b[:p.size])
	}
}
