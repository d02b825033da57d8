package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGate stores leases as Redis keys with a PX expiry, so every
// instance pointed at the same Redis shares the lock.
type RedisGate struct {
	rdb    *redis.Client
	prefix string
	opts   Options
}

// NewRedisGate creates a distributed gate. Keys are stored as prefix+key.
func NewRedisGate(rdb *redis.Client, prefix string, opts Options) *RedisGate {
	return &RedisGate{rdb: rdb, prefix: prefix, opts: opts.withDefaults()}
}

func (g *RedisGate) Acquire(ctx context.Context, key string) (Release, error) {
	k := g.prefix + key
	token := uuid.NewString()

	err := acquireLoop(ctx, g.opts, func(ctx context.Context) (bool, error) {
		ok, err := g.rdb.SetNX(ctx, k, token, g.opts.LeaseTTL).Result()
		if err != nil {
			return false, fmt.Errorf("gate: acquire %s: %w", k, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Detached from the request: the lock must be released even
			// when the request context is already cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, g.rdb, []string{k}, token).Err(); err != nil {
				slog.Warn("gate release failed; lease will expire", "key", k, "err", err)
			}
		})
	}, nil
}
