package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/pkg/batch"

	"github.com/redis/go-redis/v9"
)

// attemptOperation is one queued pairing-attempt write.
type attemptOperation struct {
	client *redis.Client
	data   []byte
}

// Execute writes a single attempt when the operation runs outside a
// batch.
func (op *attemptOperation) Execute(ctx context.Context) error {
	pipe := op.client.TxPipeline()
	pipe.LPush(ctx, attemptsKey, op.data)
	pipe.LTrim(ctx, attemptsKey, 0, maxAttemptEntries-1)
	pipe.Expire(ctx, attemptsKey, attemptsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// attemptBatchProcessor flushes queued attempts in one pipeline with a
// single trim at the end.
type attemptBatchProcessor struct {
	client *redis.Client
}

func (p *attemptBatchProcessor) ProcessBatch(ctx context.Context, operations []batch.Operation) error {
	if len(operations) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, op := range operations {
		if attemptOp, ok := op.(*attemptOperation); ok {
			pipe.LPush(ctx, attemptsKey, attemptOp.data)
		}
	}
	pipe.LTrim(ctx, attemptsKey, 0, maxAttemptEntries-1)
	pipe.Expire(ctx, attemptsKey, attemptsTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// BatchedPairingRepository batches attempt writes through a shared
// pipeline; favorites stay immediate because pairing resumption reads
// them right back.
type BatchedPairingRepository struct {
	base    ports.PairingRepository
	client  *redis.Client
	batcher *batch.Batcher
}

func NewBatchedPairingRepository(client *redis.Client, batchSize int, batchInterval time.Duration) *BatchedPairingRepository {
	processor := &attemptBatchProcessor{client: client}

	return &BatchedPairingRepository{
		base:    NewRedisPairingRepository(client),
		client:  client,
		batcher: batch.NewBatcher(batchSize, batchInterval, processor),
	}
}

func (r *BatchedPairingRepository) SaveFavorite(ctx context.Context, favorite *domain.FavoritePairing) error {
	return r.base.SaveFavorite(ctx, favorite)
}

func (r *BatchedPairingRepository) GetFavorite(ctx context.Context, cameraID domain.CameraID) (*domain.FavoritePairing, error) {
	return r.base.GetFavorite(ctx, cameraID)
}

func (r *BatchedPairingRepository) ListFavorites(ctx context.Context) ([]*domain.FavoritePairing, error) {
	return r.base.ListFavorites(ctx)
}

func (r *BatchedPairingRepository) DeleteFavorite(ctx context.Context, cameraID domain.CameraID) error {
	return r.base.DeleteFavorite(ctx, cameraID)
}

// RecordAttempt queues the write; the batcher flushes on size or
// interval.
func (r *BatchedPairingRepository) RecordAttempt(ctx context.Context, attempt *domain.PairingAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal pairing attempt: %w", err)
	}

	return r.batcher.Add(&attemptOperation{client: r.client, data: data})
}

// RecentAttempts flushes pending writes first so callers see their own
// attempts.
func (r *BatchedPairingRepository) RecentAttempts(ctx context.Context, limit int) ([]*domain.PairingAttempt, error) {
	if err := r.batcher.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to flush pending attempts: %w", err)
	}
	return r.base.RecentAttempts(ctx, limit)
}

// Stop flushes the queue and stops the background flusher.
func (r *BatchedPairingRepository) Stop() {
	r.batcher.Stop()
}
