package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "kochchi:session:"

// RedisStore keeps one hash per session and lets Redis expire it.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(sid string) string { return redisKeyPrefix + sid }

func (s *RedisStore) Get(ctx context.Context, sid, key string) (string, error) {
	v, err := s.rdb.HGet(ctx, redisKey(sid), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading session from redis: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Put(ctx context.Context, sid string, values map[string]string, expiresAt time.Time) error {
	if len(values) == 0 {
		return nil
	}
	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, v)
	}
	key := redisKey(sid)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, pairs...)
		p.ExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving session into redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, redisKey(sid)).Err(); err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	return nil
}

// Ping checks the connection at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
