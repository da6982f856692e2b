package batch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Add after the batcher has been stopped.
var ErrStopped = errors.New("batcher stopped")

// Operation is a single queued write. Execute is the fallback path
// when a whole batch cannot be processed at once.
type Operation interface {
	Execute(ctx context.Context) error
}

// Processor applies a batch of operations in one round trip.
type Processor interface {
	ProcessBatch(ctx context.Context, operations []Operation) error
}

// Batcher queues operations and hands them to the processor when the
// queue reaches size or the interval elapses, whichever comes first.
type Batcher struct {
	size      int
	interval  time.Duration
	processor Processor

	mu      sync.Mutex
	queue   []Operation
	stopped bool

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewBatcher(size int, interval time.Duration, processor Processor) *Batcher {
	b := &Batcher{
		size:      size,
		interval:  interval,
		processor: processor,
		queue:     make([]Operation, 0, size),
		kick:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.loop()
	return b
}

// Add queues an operation. Flushing happens on the background
// goroutine, so Add never blocks on the processor.
func (b *Batcher) Add(op Operation) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	b.queue = append(b.queue, op)
	full := len(b.queue) >= b.size
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush drains the queue now. When the processor rejects the batch,
// each operation is retried on its own so one bad entry cannot hold
// the rest back.
func (b *Batcher) Flush(ctx context.Context) error {
	ops := b.take()
	if len(ops) == 0 {
		return nil
	}

	if err := b.processor.ProcessBatch(ctx, ops); err == nil {
		return nil
	}

	var firstErr error
	for _, op := range ops {
		if err := op.Execute(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Pending reports how many operations wait for the next flush.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stop flushes whatever is queued and shuts the background goroutine
// down. It blocks until the final flush has run and is safe to call
// more than once.
func (b *Batcher) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.quit)
	<-b.done
}

func (b *Batcher) take() []Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	ops := b.queue
	b.queue = make([]Operation, 0, b.size)
	return ops
}

func (b *Batcher) loop() {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = b.Flush(context.Background())
		case <-b.kick:
			_ = b.Flush(context.Background())
		case <-b.quit:
			_ = b.Flush(context.Background())
			return
		}
	}
}
