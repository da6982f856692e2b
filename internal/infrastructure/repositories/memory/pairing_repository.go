package memory

import (
	"context"
	"sync"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
)

// maxStoredAttempts bounds the in-memory attempt history.
const maxStoredAttempts = 100

type MemoryPairingRepository struct {
	favorites map[domain.CameraID]*domain.FavoritePairing
	attempts  []*domain.PairingAttempt
	mu        sync.RWMutex
}

func NewMemoryPairingRepository() ports.PairingRepository {
	return &MemoryPairingRepository{
		favorites: make(map[domain.CameraID]*domain.FavoritePairing),
	}
}

func (r *MemoryPairingRepository) SaveFavorite(ctx context.Context, favorite *domain.FavoritePairing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := *favorite
	r.favorites[favorite.CameraID] = &saved
	return nil
}

func (r *MemoryPairingRepository) GetFavorite(ctx context.Context, cameraID domain.CameraID) (*domain.FavoritePairing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	favorite, exists := r.favorites[cameraID]
	if !exists {
		return nil, domain.ErrPairingNotFound
	}

	out := *favorite
	return &out, nil
}

func (r *MemoryPairingRepository) ListFavorites(ctx context.Context) ([]*domain.FavoritePairing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	favorites := make([]*domain.FavoritePairing, 0, len(r.favorites))
	for _, favorite := range r.favorites {
		out := *favorite
		favorites = append(favorites, &out)
	}

	return favorites, nil
}

func (r *MemoryPairingRepository) DeleteFavorite(ctx context.Context, cameraID domain.CameraID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.favorites[cameraID]; !exists {
		return domain.ErrPairingNotFound
	}

	delete(r.favorites, cameraID)
	return nil
}

func (r *MemoryPairingRepository) RecordAttempt(ctx context.Context, attempt *domain.PairingAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := *attempt
	r.attempts = append(r.attempts, &saved)
	if len(r.attempts) > maxStoredAttempts {
		r.attempts = r.attempts[len(r.attempts)-maxStoredAttempts:]
	}
	return nil
}

func (r *MemoryPairingRepository) RecentAttempts(ctx context.Context, limit int) ([]*domain.PairingAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.attempts) {
		limit = len(r.attempts)
	}

	// Newest first.
	attempts := make([]*domain.PairingAttempt, 0, limit)
	for i := len(r.attempts) - 1; i >= len(r.attempts)-limit; i-- {
		out := *r.attempts[i]
		attempts = append(attempts, &out)
	}

	return attempts, nil
}
