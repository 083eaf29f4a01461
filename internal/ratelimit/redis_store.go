package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis using INCR plus a window-length TTL.
// The INCR is atomic server-side, so concurrent requests on one key are
// counted exactly. Windows here are anchored to the first request of the
// window (the TTL start) rather than the last; the allow/deny contract is
// otherwise identical to GormStore.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "tracker:"}
}

func (s *RedisStore) Take(ctx context.Context, key string, limit Limit) (Result, error) {
	redisKey := s.prefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, redisKey, limit.Window).Err(); err != nil {
			return Result{}, err
		}
	}

	ttl, err := s.client.PTTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = limit.Window
	}

	remaining := limit.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   int(count) <= limit.Max,
		Limit:     limit.Max,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}
