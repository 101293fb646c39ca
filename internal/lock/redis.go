package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
)

const defaultTTL = 30 * time.Second

// only the holder's token may release the key
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a submission guard shared by every instance using the same Redis
type RedisGuard struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisGuard connects to addr and verifies the connection
func NewRedisGuard(ctx context.Context, addr string, log *logger.Logger) (*RedisGuard, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisGuard{
		log:    log.With("component", "RedisGuard"),
		rdb:    rdb,
		prefix: "recruitment-scoring:submit:",
		ttl:    defaultTTL,
	}, nil
}

// WithTTL sets how long a held key survives a crashed holder
func (g *RedisGuard) WithTTL(ttl time.Duration) *RedisGuard {
	if ttl > 0 {
		g.ttl = ttl
	}
	return g
}

// Acquire sets the key if absent. The returned release deletes it only while
// this holder still owns it.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	k := g.prefix + key
	token := uuid.NewString()

	ok, err := g.rdb.SetNX(ctx, k, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s: %w", k, err)
	}
	if !ok {
		return nil, apperr.ErrSubmitInFlight
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.rdb, []string{k}, token).Err(); err != nil {
			g.log.Warn("Failed to release submission guard", "key", k, "error", err)
		}
	}, nil
}

// Close closes the client
func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}
