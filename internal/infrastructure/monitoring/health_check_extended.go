package monitoring

import (
	"context"
	"time"

	"perch/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck registers a redis liveness probe. The store check
// carries the readiness decision; this one separates network health
// from store health in the report.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.Register(Check{
		Name:    "redis",
		Timeout: timeout,
		Probe: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	})
}

// AddStoreCheck registers a probe over the pairing store read path.
func (h *HealthChecker) AddStoreCheck(store ports.PairingRepository, timeout time.Duration) {
	h.Register(Check{
		Name:     "pairing_store",
		Critical: true,
		Timeout:  timeout,
		Probe: func(ctx context.Context) error {
			_, err := store.ListFavorites(ctx)
			return err
		},
	})
}
