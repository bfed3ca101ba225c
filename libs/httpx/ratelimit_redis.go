package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed windows across replicas through Redis.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
}

// incrWindow returns the post-increment count and the window's remaining TTL in ms.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

func NewRedisLimiter(rdb redis.Scripter, limit int, per time.Duration) *RedisLimiter {
	limit, per = normalizeQuota(limit, per)
	return &RedisLimiter{rdb: rdb, limit: limit, window: per}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Quota, error) {
	vals, err := incrWindow.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Quota{}, err
	}
	if len(vals) != 2 {
		return Quota{}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}
	ttl := time.Duration(vals[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = l.window
	}
	return quotaFor(l.limit, int(vals[0]), time.Now().Add(ttl)), nil
}
