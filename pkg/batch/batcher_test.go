package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingProcessor struct {
	mu      sync.Mutex
	batches [][]Operation
	fail    bool
}

func (p *recordingProcessor) ProcessBatch(ctx context.Context, operations []Operation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("batch rejected")
	}
	p.batches = append(p.batches, operations)
	return nil
}

func (p *recordingProcessor) batchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

type countingOp struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (o *countingOp) Execute(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	return o.err
}

func (o *countingOp) runCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBatcherFlushesOnSize(t *testing.T) {
	processor := &recordingProcessor{}
	b := NewBatcher(2, time.Hour, processor)
	defer b.Stop()

	if err := b.Add(&countingOp{}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := b.Add(&countingOp{}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	waitFor(t, func() bool { return processor.batchCount() == 1 })

	if got := b.Pending(); got != 0 {
		t.Errorf("expected empty queue after flush, got %d pending", got)
	}
}

func TestBatcherManualFlush(t *testing.T) {
	processor := &recordingProcessor{}
	b := NewBatcher(100, time.Hour, processor)
	defer b.Stop()

	for i := 0; i < 3; i++ {
		if err := b.Add(&countingOp{}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if processor.batchCount() != 1 {
		t.Fatalf("expected 1 batch, got %d", processor.batchCount())
	}
	if len(processor.batches[0]) != 3 {
		t.Errorf("expected 3 operations in batch, got %d", len(processor.batches[0]))
	}
}

func TestBatcherFlushEmptyQueue(t *testing.T) {
	processor := &recordingProcessor{}
	b := NewBatcher(10, time.Hour, processor)
	defer b.Stop()

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush of empty queue failed: %v", err)
	}
	if processor.batchCount() != 0 {
		t.Error("empty flush should not reach the processor")
	}
}

func TestBatcherFallsBackToSingleOperations(t *testing.T) {
	processor := &recordingProcessor{fail: true}
	b := NewBatcher(100, time.Hour, processor)
	defer b.Stop()

	ops := []*countingOp{{}, {}, {}}
	for _, op := range ops {
		if err := b.Add(op); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("expected fallback to succeed, got: %v", err)
	}
	for i, op := range ops {
		if op.runCount() != 1 {
			t.Errorf("operation %d executed %d times, expected 1", i, op.runCount())
		}
	}
}

func TestBatcherFallbackReportsFirstError(t *testing.T) {
	processor := &recordingProcessor{fail: true}
	b := NewBatcher(100, time.Hour, processor)
	defer b.Stop()

	opErr := errors.New("write refused")
	if err := b.Add(&countingOp{err: opErr}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := b.Add(&countingOp{}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := b.Flush(context.Background()); !errors.Is(err, opErr) {
		t.Errorf("expected the operation error, got: %v", err)
	}
}

func TestBatcherStop(t *testing.T) {
	processor := &recordingProcessor{}
	b := NewBatcher(100, time.Hour, processor)

	if err := b.Add(&countingOp{}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	b.Stop()

	// Stop blocks until the final flush has run.
	if processor.batchCount() != 1 {
		t.Errorf("expected final flush on stop, got %d batches", processor.batchCount())
	}
	if err := b.Add(&countingOp{}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped after Stop, got: %v", err)
	}

	// A second Stop returns without hanging.
	b.Stop()
}

func TestBatcherIntervalFlush(t *testing.T) {
	processor := &recordingProcessor{}
	b := NewBatcher(100, 20*time.Millisecond, processor)
	defer b.Stop()

	if err := b.Add(&countingOp{}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	waitFor(t, func() bool { return processor.batchCount() >= 1 })
}
