package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// retryInterval is the poll delay while waiting for a held lock.
const retryInterval = 100 * time.Millisecond

// Lock is a redis-backed mutual exclusion for daemons sharing one
// keyspace. The holder is identified by a random value so a stale
// holder can never release someone else's acquisition.
type Lock struct {
	client    *redis.Client
	key       string
	value     string
	ttl       time.Duration
	stopRenew chan struct{}
}

// NewLock creates a lock on key. The TTL bounds how long a crashed
// holder can block others.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client:    client,
		key:       key,
		value:     newHolderID(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
}

func newHolderID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Acquire takes the lock, polling until it is free or wait elapses.
// A wait of zero means a 30 second budget.
func (l *Lock) Acquire(ctx context.Context, wait time.Duration) error {
	if wait == 0 {
		wait = 30 * time.Second
	}
	deadline := time.Now().Add(wait)

	for {
		acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if acquired {
			go l.renew(ctx)
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock %s acquisition timed out", l.key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// TryAcquire takes the lock without waiting.
func (l *Lock) TryAcquire(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to try lock: %w", err)
	}
	if acquired {
		go l.renew(ctx)
	}
	return acquired, nil
}

// Release gives the lock back. Only the holder's own key is deleted;
// releasing a lock taken over by another holder is an error.
func (l *Lock) Release(ctx context.Context) error {
	close(l.stopRenew)

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`

	result, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result.(int64) == 0 {
		return fmt.Errorf("lock %s was not held by this instance", l.key)
	}

	return nil
}

// renew extends the TTL at half-life for as long as we hold the lock.
func (l *Lock) renew(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			current, err := l.client.Get(ctx, l.key).Result()
			if err != nil {
				return
			}
			if current != l.value {
				return
			}
			l.client.Expire(ctx, l.key, l.ttl)

		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		}
	}
}
