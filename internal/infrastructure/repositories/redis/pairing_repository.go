package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	favoriteKeyPrefix = "perch:pairing:favorite:"
	favoritesIndexKey = "perch:pairing:favorites"
	attemptsKey       = "perch:pairing:attempts"

	maxAttemptEntries = 200
	attemptsTTL       = 24 * time.Hour
)

type RedisPairingRepository struct {
	client *redis.Client
}

func NewRedisPairingRepository(client *redis.Client) ports.PairingRepository {
	return &RedisPairingRepository{client: client}
}

func favoriteKey(cameraID domain.CameraID) string {
	return favoriteKeyPrefix + string(cameraID)
}

func (r *RedisPairingRepository) SaveFavorite(ctx context.Context, favorite *domain.FavoritePairing) error {
	data, err := json.Marshal(favorite)
	if err != nil {
		return fmt.Errorf("failed to marshal favorite pairing: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, favoriteKey(favorite.CameraID), data, 0)
	pipe.SAdd(ctx, favoritesIndexKey, string(favorite.CameraID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save favorite pairing: %w", err)
	}

	return nil
}

func (r *RedisPairingRepository) GetFavorite(ctx context.Context, cameraID domain.CameraID) (*domain.FavoritePairing, error) {
	data, err := r.client.Get(ctx, favoriteKey(cameraID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrPairingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite pairing: %w", err)
	}

	var favorite domain.FavoritePairing
	if err := json.Unmarshal([]byte(data), &favorite); err != nil {
		return nil, fmt.Errorf("failed to unmarshal favorite pairing: %w", err)
	}

	return &favorite, nil
}

func (r *RedisPairingRepository) ListFavorites(ctx context.Context) ([]*domain.FavoritePairing, error) {
	cameraIDs, err := r.client.SMembers(ctx, favoritesIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list favorite pairings: %w", err)
	}

	favorites := make([]*domain.FavoritePairing, 0, len(cameraIDs))
	for _, id := range cameraIDs {
		favorite, err := r.GetFavorite(ctx, domain.CameraID(id))
		if err != nil {
			// Skip index entries whose value expired or was removed.
			continue
		}
		favorites = append(favorites, favorite)
	}

	return favorites, nil
}

func (r *RedisPairingRepository) DeleteFavorite(ctx context.Context, cameraID domain.CameraID) error {
	removed, err := r.client.Del(ctx, favoriteKey(cameraID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete favorite pairing: %w", err)
	}
	if err := r.client.SRem(ctx, favoritesIndexKey, string(cameraID)).Err(); err != nil {
		return fmt.Errorf("failed to remove favorite from index: %w", err)
	}
	if removed == 0 {
		return domain.ErrPairingNotFound
	}

	return nil
}

func (r *RedisPairingRepository) RecordAttempt(ctx context.Context, attempt *domain.PairingAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal pairing attempt: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, attemptsKey, data)
	pipe.LTrim(ctx, attemptsKey, 0, maxAttemptEntries-1)
	pipe.Expire(ctx, attemptsKey, attemptsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record pairing attempt: %w", err)
	}

	return nil
}

func (r *RedisPairingRepository) RecentAttempts(ctx context.Context, limit int) ([]*domain.PairingAttempt, error) {
	if limit <= 0 || limit > maxAttemptEntries {
		limit = maxAttemptEntries
	}

	entries, err := r.client.LRange(ctx, attemptsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pairing attempts: %w", err)
	}

	attempts := make([]*domain.PairingAttempt, 0, len(entries))
	for _, entry := range entries {
		var attempt domain.PairingAttempt
		if err := json.Unmarshal([]byte(entry), &attempt); err != nil {
			continue
		}
		attempts = append(attempts, &attempt)
	}

	return attempts, nil
}
