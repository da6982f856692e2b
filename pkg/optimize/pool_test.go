package optimize

import (
	"testing"
)

func TestBytePool(t *testing.T) {
	pool := NewBytePool(1500)

	buf := pool.Get()
	if len(buf) != 1500 {
		t.Errorf("expected buffer size 1500, got %d", len(buf))
	}

	pool.Put(buf)

	buf2 := pool.Get()
	if len(buf2) != 1500 {
		t.Errorf("expected buffer size 1500, got %d", len(buf2))
	}
}

func TestBytePool_PutShrunkBuffer(t *testing.T) {
	pool := NewBytePool(64)

	buf := pool.Get()
	pool.Put(buf[:10])

	// A sliced buffer keeps its capacity, so Get restores full size
	buf2 := pool.Get()
	if len(buf2) != 64 {
		t.Errorf("expected buffer size 64, got %d", len(buf2))
	}
}

func TestBytePool_RejectsUndersized(t *testing.T) {
	pool := NewBytePool(128)

	// Foreign small buffer must not poison the pool
	pool.Put(make([]byte, 8))

	buf := pool.Get()
	if len(buf) != 128 {
		t.Errorf("expected buffer size 128, got %d", len(buf))
	}
}

func BenchmarkBytePool(b *testing.B) {
	pool := NewBytePool(1500)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := pool.Get()
		buf[0] = byte(i)
		pool.Put(buf)
	}
}
