package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisRetries bounds optimistic transaction retries per Update.
const DefaultRedisRetries = 64

// RedisStore keeps counters in Redis so every replica shares one budget.
// Update is an optimistic WATCH/MULTI/EXEC transaction on the key, retried
// when another client wins the race.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	retries int
}

// NewRedisStore returns a store writing keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  prefix,
		retries: DefaultRedisRetries,
	}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// stringGetter is satisfied by both the client and a watched transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, getter stringGetter, key string) (Counter, bool, error) {
	raw, err := getter.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Counter{}, false, nil
	}
	if err != nil {
		return Counter{}, false, err
	}

	var c Counter
	if err := json.Unmarshal(raw, &c); err != nil {
		return Counter{}, false, fmt.Errorf("ratelimit: decode counter %q: %w", key, err)
	}
	return c, true, nil
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (Counter, error) {
	rk := s.redisKey(key)

	var out Counter
	txn := func(tx *redis.Tx) error {
		c, _, err := s.load(ctx, tx, rk)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, data, ttl)
			return nil
		})
		if err == nil {
			out = c
		}
		return err
	}

	// Lost races back off a little so the winner can finish
	b := backoff.WithContext(backoff.WithMaxRetries(contentionBackoff(), uint64(s.retries)), ctx)
	err := backoff.Retry(func() error {
		err := s.client.Watch(ctx, txn, rk)
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return backoff.Permanent(err)
		}
		return err
	}, b)

	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, redis.TxFailedErr):
		return Counter{}, ErrContention
	default:
		return Counter{}, err
	}
}

func contentionBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 25 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (Counter, bool, error) {
	return s.load(ctx, s.client, s.redisKey(key))
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
