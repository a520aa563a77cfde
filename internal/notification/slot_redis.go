package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "docexchange:notify:"

// RedisSlot stores slots as plain keys so every API instance sees the same
// mailbox. Take uses GETDEL, so a read clears the slot in one round trip.
type RedisSlot struct {
	client redis.Cmdable
}

func NewRedisSlot(client redis.Cmdable) *RedisSlot {
	return &RedisSlot{client: client}
}

func slotRedisKey(channel string, kind Kind) string {
	return keyPrefix + channel + ":" + string(kind)
}

func (r *RedisSlot) Put(ctx context.Context, channel string, kind Kind, payload []byte) error {
	if err := r.client.Set(ctx, slotRedisKey(channel, kind), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s slot: %w", kind, err)
	}
	return nil
}

func (r *RedisSlot) Take(ctx context.Context, channel string, kind Kind) ([]byte, bool, error) {
	payload, err := r.client.GetDel(ctx, slotRedisKey(channel, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis getdel %s slot: %w", kind, err)
	}
	return payload, true, nil
}
