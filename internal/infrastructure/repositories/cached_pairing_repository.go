package repositories

import (
	"context"
	"fmt"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/pkg/cache"
)

const favoritesListKey = "favorites:list"

// CachedPairingRepository wraps a pairing repository with read caching
// for favorites. Writes invalidate before returning, so a viewer always
// sees its own saves. Attempts pass through uncached; their freshness
// matters more than their cost.
type CachedPairingRepository struct {
	base  ports.PairingRepository
	cache *cache.CacheWithFallback
	ttl   time.Duration
}

// NewCachedPairingRepository wraps base with a favorites read cache.
// Call Stop to end the cache sweeper.
func NewCachedPairingRepository(base ports.PairingRepository, ttl time.Duration) *CachedPairingRepository {
	return &CachedPairingRepository{
		base:  base,
		cache: cache.NewCacheWithFallback(ttl),
		ttl:   ttl,
	}
}

func favoriteKey(cameraID domain.CameraID) string {
	return fmt.Sprintf("favorite:%s", cameraID)
}

func (r *CachedPairingRepository) SaveFavorite(ctx context.Context, favorite *domain.FavoritePairing) error {
	if err := r.base.SaveFavorite(ctx, favorite); err != nil {
		return err
	}

	r.cache.Invalidate(favoriteKey(favorite.CameraID))
	r.cache.Invalidate(favoritesListKey)
	return nil
}

func (r *CachedPairingRepository) GetFavorite(ctx context.Context, cameraID domain.CameraID) (*domain.FavoritePairing, error) {
	value, err := r.cache.GetOrSet(ctx, favoriteKey(cameraID), func(ctx context.Context) (interface{}, error) {
		return r.base.GetFavorite(ctx, cameraID)
	}, r.ttl)
	if err != nil {
		return nil, err
	}

	// Hand out a copy so callers cannot mutate the cached entry
	out := *value.(*domain.FavoritePairing)
	return &out, nil
}

func (r *CachedPairingRepository) ListFavorites(ctx context.Context) ([]*domain.FavoritePairing, error) {
	value, err := r.cache.GetOrSet(ctx, favoritesListKey, func(ctx context.Context) (interface{}, error) {
		return r.base.ListFavorites(ctx)
	}, r.ttl)
	if err != nil {
		return nil, err
	}

	cached := value.([]*domain.FavoritePairing)
	favorites := make([]*domain.FavoritePairing, 0, len(cached))
	for _, favorite := range cached {
		out := *favorite
		favorites = append(favorites, &out)
	}
	return favorites, nil
}

func (r *CachedPairingRepository) DeleteFavorite(ctx context.Context, cameraID domain.CameraID) error {
	if err := r.base.DeleteFavorite(ctx, cameraID); err != nil {
		return err
	}

	r.cache.Invalidate(favoriteKey(cameraID))
	r.cache.Invalidate(favoritesListKey)
	return nil
}

func (r *CachedPairingRepository) RecordAttempt(ctx context.Context, attempt *domain.PairingAttempt) error {
	return r.base.RecordAttempt(ctx, attempt)
}

func (r *CachedPairingRepository) RecentAttempts(ctx context.Context, limit int) ([]*domain.PairingAttempt, error) {
	return r.base.RecentAttempts(ctx, limit)
}

// Stop ends the cache sweeper goroutine.
func (r *CachedPairingRepository) Stop() {
	r.cache.Stop()
}
