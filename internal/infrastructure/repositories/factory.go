package repositories

import (
	"context"

	"perch/internal/core/ports"
	"perch/internal/infrastructure/repositories/memory"
	redisrepo "perch/internal/infrastructure/repositories/redis"
	"perch/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	batched     *redisrepo.BatchedPairingRepository
	cached      *CachedPairingRepository
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreatePairingRepository creates a pairing repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreatePairingRepository() ports.PairingRepository {
	if f.useRedis && f.redisClient != nil {
		var repo ports.PairingRepository
		if f.cfg.Redis.Batch.Enabled {
			f.batched = redisrepo.NewBatchedPairingRepository(
				f.redisClient,
				f.cfg.Redis.Batch.Size,
				f.cfg.Redis.Batch.FlushInterval,
			)
			repo = f.batched
		} else {
			repo = redisrepo.NewRedisPairingRepository(f.redisClient)
		}

		// Favorites read cache only makes sense in front of a
		// network-backed store
		if f.cfg.Redis.CacheTTL > 0 {
			f.cached = NewCachedPairingRepository(repo, f.cfg.Redis.CacheTTL)
			repo = f.cached
		}
		return repo
	}
	return memory.NewMemoryPairingRepository()
}

// RedisClient returns the shared client, or nil when running on memory.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.useRedis {
		return nil
	}
	return f.redisClient
}

// Close flushes pending batches and closes the Redis connection if
// used. Safe to call more than once.
func (f *RepositoryFactory) Close() error {
	if f.cached != nil {
		f.cached.Stop()
		f.cached = nil
	}
	if f.batched != nil {
		f.batched.Stop()
		f.batched = nil
	}
	if f.redisClient != nil {
		err := redisrepo.CloseRedisClient(f.redisClient)
		f.redisClient = nil
		return err
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
