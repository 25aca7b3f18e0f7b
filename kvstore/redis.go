package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/realmorph/datakit/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisStore is a Store backed by a Redis server.
// TTL handling is delegated to Redis itself, so expired keys disappear
// without the lazy-delete step the other backends need.
type redisStore struct {
	logger logger.Logger
	client *redis.Client
}

// NewRedis creates a Redis-backed Store and verifies connectivity with a ping.
func NewRedis(log logger.Logger, cfg *RedisConfig) (Store, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(cfg.Options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrConnection(err)
	}

	log.Debug("redis store connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return &redisStore{logger: log, client: client}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrRead(key, err)
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return ErrWrite(key, err)
	}
	return nil
}

func (s *redisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return ErrWrite(key, err)
	}
	return nil
}

func (s *redisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, ErrRead(prefix, err)
	}
	return keys, nil
}

func (s *redisStore) Clear(ctx context.Context, prefix string) error {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return ErrWrite(prefix, err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
