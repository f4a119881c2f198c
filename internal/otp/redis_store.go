package otp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrementIfPresent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// RedisStore keeps pending codes in Redis hashes that expire with the code.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("otp: redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

func (s *RedisStore) Put(ctx context.Context, phone, code string, ttl time.Duration) error {
	key := otpKey(phone)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code", code, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("otp: failed to persist code: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, phone string) (Entry, bool, error) {
	fields, err := s.redis.HGetAll(ctx, otpKey(phone)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("otp: failed to load code: %w", err)
	}
	code, ok := fields["code"]
	if !ok || code == "" {
		return Entry{}, false, nil
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return Entry{Code: code, Attempts: attempts}, true, nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, phone string) (int, error) {
	n, err := incrementIfPresent.Run(ctx, s.redis, []string{otpKey(phone)}).Int()
	if err != nil {
		return 0, fmt.Errorf("otp: failed to record attempt: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	if err := s.redis.Del(ctx, otpKey(phone)).Err(); err != nil {
		return fmt.Errorf("otp: failed to delete code: %w", err)
	}
	return nil
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:%s", phone)
}
