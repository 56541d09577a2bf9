package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// redisCache is the remote KV Cache Substrate backend. Construction probes
// the server with Ping; callers fall back to the in-process backend if this
// fails.
type redisCache struct {
	client *redis.Client
	prefix string
}

// newRedisCache dials addr and pings it; a non-nil error means the caller
// should fall back to the in-process backend instead.
func newRedisCache(addr, prefix string) (*redisCache, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// Accept bare host:port too, the way the teacher's dedupe store does.
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisCache{client: client, prefix: prefix}, nil
}

func (r *redisCache) key(k string) string { return r.prefix + k }

func (r *redisCache) Backend() string { return "redis" }

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("cache: redis get failed, treating as absent")
		}
		return nil, false
	}
	return val, true
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("cache: redis set failed, dropped")
	}
}

func (r *redisCache) Delete(ctx context.Context, key string) {
	_ = r.client.Del(ctx, r.key(key)).Err()
}

func (r *redisCache) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = r.client.Del(ctx, keys...).Err()
	}
}

func (r *redisCache) Size(ctx context.Context) int {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	n := 0
	for iter.Next(ctx) {
		n++
	}
	return n
}
