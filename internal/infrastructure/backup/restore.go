package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/pkg/backup"

	"go.uber.org/zap"
)

// Restorer loads archived pairings back into the store
type Restorer struct {
	service *backup.Service
	store   ports.PairingRepository
	logger  *zap.SugaredLogger
}

// NewRestorer creates a new restorer
func NewRestorer(service *backup.Service, store ports.PairingRepository, logger *zap.SugaredLogger) *Restorer {
	return &Restorer{
		service: service,
		store:   store,
		logger:  logger,
	}
}

// RestoreOptions contains restore options
type RestoreOptions struct {
	// OverwriteExisting replaces favorites already in the store.
	// Off by default: live state wins over archived state.
	OverwriteExisting bool
}

// RestoreLatest restores from the newest archive. Having no archives
// at all is not an error, a fresh deployment starts empty.
func (r *Restorer) RestoreLatest(ctx context.Context) error {
	name, err := r.service.Latest(ctx)
	if errors.Is(err, backup.ErrNoArchives) {
		r.logger.Info("no archives to restore from")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find latest archive: %w", err)
	}

	return r.RestoreFrom(ctx, name, RestoreOptions{})
}

// RestoreFrom restores pairings from a specific archive
func (r *Restorer) RestoreFrom(ctx context.Context, name string, options RestoreOptions) error {
	r.logger.Infow("starting restore", "archive", name, "overwrite", options.OverwriteExisting)

	snapshot, err := r.service.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load archive: %w", err)
	}

	if snapshot.Version == "" {
		return fmt.Errorf("invalid archive: missing version")
	}

	var payload pairingArchive
	if err := json.Unmarshal(snapshot.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal archive payload: %w", err)
	}

	restored, skipped := 0, 0
	for _, favorite := range payload.Favorites {
		if !options.OverwriteExisting {
			_, err := r.store.GetFavorite(ctx, favorite.CameraID)
			if err == nil {
				skipped++
				r.logger.Debugw("skipping existing pairing", "camera_id", favorite.CameraID)
				continue
			}
			if !errors.Is(err, domain.ErrPairingNotFound) {
				return fmt.Errorf("failed to check existing pairing: %w", err)
			}
		}

		if err := r.store.SaveFavorite(ctx, favorite); err != nil {
			return fmt.Errorf("failed to restore pairing %s: %w", favorite.CameraID, err)
		}
		restored++
	}

	r.logger.Infow("restore completed",
		"archive", name,
		"restored", restored,
		"skipped", skipped)
	return nil
}
