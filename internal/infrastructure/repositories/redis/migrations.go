package redis

import (
	"context"
	"fmt"
	"time"

	"perch/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = "perch:schema:version"
	schemaLockKey        = "perch:schema:lock"
	currentSchemaVersion = 1

	migrationLockTTL  = 15 * time.Second
	migrationLockWait = 30 * time.Second
)

// Migration is one versioned schema step.
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
	Down    func(ctx context.Context, client *redis.Client) error
}

// Migrate brings the keyspace up to the current schema version. Daemons
// sharing a redis serialize through a lock; the version is re-read
// under it so a second daemon sees the first one's work.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	version, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date", "version", version)
		}
		return nil
	}

	lock := distributed.NewLock(client, schemaLockKey, migrationLockTTL)
	if err := lock.Acquire(ctx, migrationLockWait); err != nil {
		return fmt.Errorf("failed to lock schema for migration: %w", err)
	}
	defer func() {
		// Release even when the caller's context is already gone
		if err := lock.Release(context.Background()); err != nil && logger != nil {
			logger.Warnw("failed to release migration lock", "error", err)
		}
	}()

	version, err = getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations() {
		if migration.Version <= version {
			continue
		}

		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("migrations completed", "version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	version, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				// Ensure the favorites index exists as a set so SMembers
				// on a fresh install returns empty instead of a type
				// error against leftovers from older layouts.
				exists, err := client.Exists(ctx, favoritesIndexKey).Result()
				if err != nil {
					return err
				}
				if exists == 0 {
					if err := client.SAdd(ctx, favoritesIndexKey, "").Err(); err != nil {
						return err
					}
					client.SRem(ctx, favoritesIndexKey, "")
				}
				return nil
			},
			Down: func(ctx context.Context, client *redis.Client) error {
				return client.Del(ctx, favoritesIndexKey).Err()
			},
		},
	}
}
