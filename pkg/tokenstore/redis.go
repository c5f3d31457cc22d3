package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisStore shares one token pair between processes of the same service
// client. Keys are namespaced by prefix.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "invoice:session"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) Get() string {
	return s.get(KeyToken)
}

func (s *RedisStore) GetRefresh() string {
	return s.get(KeyRefreshToken)
}

func (s *RedisStore) Set(token string) error {
	return s.set(KeyToken, token)
}

func (s *RedisStore) SetRefresh(token string) error {
	return s.set(KeyRefreshToken, token)
}

func (s *RedisStore) SetPair(token string, refresh string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyToken), token, 0)
		if refresh != "" {
			pipe.Set(ctx, s.key(KeyRefreshToken), refresh, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store token pair: %w", err)
	}
	return nil
}

func (s *RedisStore) Replace(token string, refresh string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyToken), token, 0)
		if refresh != "" {
			pipe.Set(ctx, s.key(KeyRefreshToken), refresh, 0)
		} else {
			pipe.Del(ctx, s.key(KeyRefreshToken))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace token pair: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.rdb.Del(ctx, s.key(KeyToken), s.key(KeyRefreshToken)).Err(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) get(name string) string {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := s.rdb.Get(ctx, s.key(name)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("token store read failed", "key", s.key(name), "error", err)
		}
		return ""
	}
	return val
}

func (s *RedisStore) set(name string, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.rdb.Set(ctx, s.key(name), value, 0).Err(); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}
