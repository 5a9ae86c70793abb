package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares the cache between hosts. Keys expire natively at the
// entry's expires_at.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects to url (redis://...) and pings it.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, prefix: "pdftagger:", ttl: ttl, logger: logger}, nil
}

func (s *RedisStore) redisKey(bucket, key string) string {
	return s.prefix + bucket + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, bucket, key string) (Entry, bool) {
	b, err := s.client.Get(ctx, s.redisKey(bucket, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("cache.redis.get_error", "bucket", bucket, "error", err)
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		s.logger.Warn("cache.decode_error", "bucket", bucket, "key", key, "error", err)
		return Entry{}, false
	}
	if e.ExpiresAt > 0 && e.Expired(time.Now()) {
		_ = s.client.Del(ctx, s.redisKey(bucket, key)).Err()
		return Entry{}, false
	}
	return e, true
}

func (s *RedisStore) Set(ctx context.Context, bucket, key string, data []byte) error {
	e := newEntry(time.Now(), s.ttl, data)
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(bucket, key), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
