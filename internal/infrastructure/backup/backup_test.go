package backup

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/internal/infrastructure/repositories/memory"
	"perch/pkg/backup"
)

func newArchiveFixture(t *testing.T) (*backup.Service, backup.Storage) {
	t.Helper()

	storage, err := backup.NewFileStorage(t.TempDir())
	require.NoError(t, err)

	return backup.NewService(storage, "1"), storage
}

func archiveTestFavorite(id string) *domain.FavoritePairing {
	return &domain.FavoritePairing{
		CameraID:   domain.CameraID(id),
		CameraName: "Porch",
		PairingID:  domain.PairingID("pair_" + id),
		Method:     domain.MethodPin,
		SavedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func seedFavorites(t *testing.T, store ports.PairingRepository, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.SaveFavorite(context.Background(), archiveTestFavorite(id)))
	}
}

func TestSchedulerAndRestorer(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	t.Run("archive round-trips into an empty store", func(t *testing.T) {
		service, _ := newArchiveFixture(t)
		source := memory.NewMemoryPairingRepository()
		seedFavorites(t, source, "cam_1", "cam_2")

		scheduler := NewScheduler(service, source, Config{Interval: time.Hour, RetentionDays: 14}, logger)
		scheduler.runArchive(ctx)

		target := memory.NewMemoryPairingRepository()
		restorer := NewRestorer(service, target, logger)
		require.NoError(t, restorer.RestoreLatest(ctx))

		favorites, err := target.ListFavorites(ctx)
		require.NoError(t, err)
		assert.Len(t, favorites, 2)
	})

	t.Run("restore keeps existing pairings", func(t *testing.T) {
		service, _ := newArchiveFixture(t)
		source := memory.NewMemoryPairingRepository()
		seedFavorites(t, source, "cam_1", "cam_2")

		scheduler := NewScheduler(service, source, Config{Interval: time.Hour, RetentionDays: 14}, logger)
		scheduler.runArchive(ctx)

		target := memory.NewMemoryPairingRepository()
		live := archiveTestFavorite("cam_1")
		live.CameraName = "Garage"
		require.NoError(t, target.SaveFavorite(ctx, live))

		restorer := NewRestorer(service, target, logger)
		require.NoError(t, restorer.RestoreLatest(ctx))

		kept, err := target.GetFavorite(ctx, domain.CameraID("cam_1"))
		require.NoError(t, err)
		assert.Equal(t, "Garage", kept.CameraName)

		favorites, err := target.ListFavorites(ctx)
		require.NoError(t, err)
		assert.Len(t, favorites, 2)
	})

	t.Run("overwrite replaces existing pairings", func(t *testing.T) {
		service, _ := newArchiveFixture(t)
		source := memory.NewMemoryPairingRepository()
		seedFavorites(t, source, "cam_1")

		scheduler := NewScheduler(service, source, Config{Interval: time.Hour, RetentionDays: 14}, logger)
		scheduler.runArchive(ctx)

		name, err := service.Latest(ctx)
		require.NoError(t, err)

		target := memory.NewMemoryPairingRepository()
		live := archiveTestFavorite("cam_1")
		live.CameraName = "Garage"
		require.NoError(t, target.SaveFavorite(ctx, live))

		restorer := NewRestorer(service, target, logger)
		require.NoError(t, restorer.RestoreFrom(ctx, name, RestoreOptions{OverwriteExisting: true}))

		replaced, err := target.GetFavorite(ctx, domain.CameraID("cam_1"))
		require.NoError(t, err)
		assert.Equal(t, "Porch", replaced.CameraName)
	})

	t.Run("restore with no archives is a no-op", func(t *testing.T) {
		service, _ := newArchiveFixture(t)
		target := memory.NewMemoryPairingRepository()

		restorer := NewRestorer(service, target, logger)
		require.NoError(t, restorer.RestoreLatest(ctx))

		favorites, err := target.ListFavorites(ctx)
		require.NoError(t, err)
		assert.Empty(t, favorites)
	})
}

func TestSchedulerCleanup(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	service, storage := newArchiveFixture(t)
	store := memory.NewMemoryPairingRepository()

	old := "backup-" + time.Now().AddDate(0, 0, -30).UTC().Format("20060102-150405") + ".json"
	recent := "backup-" + time.Now().UTC().Format("20060102-150405") + ".json"
	require.NoError(t, storage.Save(ctx, old, strings.NewReader("{}")))
	require.NoError(t, storage.Save(ctx, recent, strings.NewReader("{}")))

	scheduler := NewScheduler(service, store, Config{Interval: time.Hour, RetentionDays: 14}, logger)
	require.NoError(t, scheduler.cleanupOldArchives(ctx))

	names, err := service.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{recent}, names)
}
