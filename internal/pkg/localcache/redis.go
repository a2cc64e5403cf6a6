package localcache

import (
	"context"
	"fmt"
	"time"

	pkgredis "github.com/mx-space/blockdraft/internal/pkg/redis"
)

const defaultPrefix = "blockdraft:cache:"

// RedisStore keeps cache entries in Redis under a common prefix.
type RedisStore struct {
	rc     *pkgredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A zero ttl keeps entries forever.
func NewRedisStore(rc *pkgredis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{rc: rc, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, ok, err := s.rc.Get(ctx, s.key(key))
	if err != nil {
		return "", false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return val, ok, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.rc.Set(ctx, s.key(key), value, s.ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rc.Del(ctx, s.key(key)); err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}
