// README: Push token registry keyed by recipient phone, backed by Redis.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TokenStore maps a recipient phone number to its most recent push token.
// Registering overwrites: one device per phone, last writer wins.
type TokenStore interface {
	Register(ctx context.Context, phone, token string) error
	Lookup(ctx context.Context, phone string) (string, bool, error)
	Remove(ctx context.Context, phone string) error
}

const tokenKeyPrefix = "notify:token:%s"

type RedisTokenStore struct {
	redis *redis.Client
}

func NewRedisTokenStore(redis *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{redis: redis}
}

func (s *RedisTokenStore) Register(ctx context.Context, phone, token string) error {
	return s.redis.Set(ctx, fmt.Sprintf(tokenKeyPrefix, phone), token, 0).Err()
}

func (s *RedisTokenStore) Lookup(ctx context.Context, phone string) (string, bool, error) {
	token, err := s.redis.Get(ctx, fmt.Sprintf(tokenKeyPrefix, phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (s *RedisTokenStore) Remove(ctx context.Context, phone string) error {
	return s.redis.Del(ctx, fmt.Sprintf(tokenKeyPrefix, phone)).Err()
}
