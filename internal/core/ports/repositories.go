package ports

import (
	"context"

	"perch/internal/core/domain"
)

type PairingRepository interface {
	SaveFavorite(ctx context.Context, favorite *domain.FavoritePairing) error
	GetFavorite(ctx context.Context, cameraID domain.CameraID) (*domain.FavoritePairing, error)
	ListFavorites(ctx context.Context) ([]*domain.FavoritePairing, error)
	DeleteFavorite(ctx context.Context, cameraID domain.CameraID) error
	RecordAttempt(ctx context.Context, attempt *domain.PairingAttempt) error
	RecentAttempts(ctx context.Context, limit int) ([]*domain.PairingAttempt, error)
}
