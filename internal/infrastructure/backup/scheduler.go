package backup

import (
	"context"
	"fmt"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/pkg/backup"

	"go.uber.org/zap"
)

// pairingArchive is the payload stored in each archive. Attempt history
// is left out: entries expire on their own and carry no value across a
// restart.
type pairingArchive struct {
	Favorites []*domain.FavoritePairing `json:"favorites"`
}

// Scheduler archives saved pairings on an interval and prunes archives
// past the retention window.
type Scheduler struct {
	service       *backup.Service
	store         ports.PairingRepository
	interval      time.Duration
	retentionDays int
	logger        *zap.SugaredLogger
	stopChan      chan struct{}
}

// Config contains scheduler configuration
type Config struct {
	Interval      time.Duration
	RetentionDays int
}

// NewScheduler creates a new archive scheduler
func NewScheduler(
	service *backup.Service,
	store ports.PairingRepository,
	cfg Config,
	logger *zap.SugaredLogger,
) *Scheduler {
	return &Scheduler{
		service:       service,
		store:         store,
		interval:      cfg.Interval,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start runs the scheduler until Stop is called or ctx is cancelled.
// An archive is written immediately so a fresh deployment has one
// before the first interval elapses.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runArchive(ctx)

	for {
		select {
		case <-ticker.C:
			s.runArchive(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// runArchive captures the current favorites into a new archive
func (s *Scheduler) runArchive(ctx context.Context) {
	payload, err := s.collectPairings(ctx)
	if err != nil {
		s.logger.Errorw("failed to collect pairings for archive", "error", err)
		return
	}

	name, err := s.service.Create(ctx, payload)
	if err != nil {
		s.logger.Errorw("failed to create archive", "error", err)
		return
	}

	s.logger.Infow("archive created",
		"archive", name,
		"favorites", len(payload.Favorites))

	if err := s.cleanupOldArchives(ctx); err != nil {
		s.logger.Warnw("failed to cleanup old archives", "error", err)
	}
}

// collectPairings gathers the favorites to archive
func (s *Scheduler) collectPairings(ctx context.Context) (*pairingArchive, error) {
	favorites, err := s.store.ListFavorites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	return &pairingArchive{Favorites: favorites}, nil
}

// cleanupOldArchives removes archives older than the retention period
func (s *Scheduler) cleanupOldArchives(ctx context.Context) error {
	names, err := s.service.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	for _, name := range names {
		at, err := backup.TimestampOf(name)
		if err != nil {
			s.logger.Warnw("failed to parse archive timestamp", "archive", name, "error", err)
			continue
		}

		if at.Before(cutoff) {
			if err := s.service.Delete(ctx, name); err != nil {
				s.logger.Warnw("failed to delete old archive", "archive", name, "error", err)
				continue
			}
			s.logger.Infow("deleted old archive", "archive", name, "age", time.Since(at))
		}
	}

	return nil
}
