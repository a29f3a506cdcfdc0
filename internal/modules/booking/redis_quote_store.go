// README: Quote store backed by Redis string keys with TTL.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fareway/internal/types"
)

const quoteKeyPrefix = "fareway:quote:%s"

type RedisQuoteStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisQuoteStore(redis *redis.Client, ttl time.Duration) *RedisQuoteStore {
	return &RedisQuoteStore{redis: redis, ttl: ttl}
}

func (s *RedisQuoteStore) Save(ctx context.Context, q RideQuote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	return s.redis.Set(ctx, quoteKey(q.ID), data, s.ttl).Err()
}

func (s *RedisQuoteStore) Get(ctx context.Context, id types.ID) (RideQuote, error) {
	data, err := s.redis.Get(ctx, quoteKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RideQuote{}, ErrQuoteNotFound
	}
	if err != nil {
		return RideQuote{}, fmt.Errorf("load quote: %w", err)
	}
	var q RideQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return RideQuote{}, fmt.Errorf("decode quote: %w", err)
	}
	return q, nil
}

func quoteKey(id types.ID) string {
	return fmt.Sprintf(quoteKeyPrefix, string(id))
}
