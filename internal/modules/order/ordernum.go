// README: Day-scoped order number sequence backed by Redis INCR.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sequencer hands out the next number in a day-scoped monotonic sequence.
type Sequencer interface {
	Next(ctx context.Context, day string) (int64, error)
}

const (
	seqKeyPrefix = "orders:seq:%s"
	// Keys outlive their day comfortably; the sequence resets by key name.
	seqKeyTTL = 48 * time.Hour
)

// RedisSequencer implements Sequencer with an atomic INCR per day key, so
// concurrent creations can never mint the same number.
type RedisSequencer struct {
	redis *redis.Client
}

func NewRedisSequencer(redis *redis.Client) *RedisSequencer {
	return &RedisSequencer{redis: redis}
}

func (s *RedisSequencer) Next(ctx context.Context, day string) (int64, error) {
	key := fmt.Sprintf(seqKeyPrefix, day)
	pipe := s.redis.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, seqKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// FormatOrderNumber renders the human-readable order number, e.g.
// ORD-20250131-0042. Numbers are unique per day and monotonic.
func FormatOrderNumber(t time.Time, n int64) string {
	return fmt.Sprintf("ORD-%s-%04d", t.Format("20060102"), n)
}
