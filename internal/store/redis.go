// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jason-s-yu/shadow-signal/internal/models"
)

// DefaultKeyPrefix namespaces room documents in Redis.
const DefaultKeyPrefix = "shadow_signal:room:"

// RedisStore keeps each room as a JSON document whose key expires TTL after creation.
// Put keeps the remaining TTL, so a room's lifetime is fixed at Create.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (s *RedisStore) key(code string) string {
	return s.prefix + code
}

func (s *RedisStore) Get(ctx context.Context, code string) (*models.Room, error) {
	data, err := s.rdb.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get room %s: %w", code, err)
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	return &room, nil
}

func (s *RedisStore) Put(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	// XX: never resurrect a room whose key already expired.
	err = s.rdb.SetArgs(ctx, s.key(room.Code), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis put room %s: %w", room.Code, err)
	}
	return nil
}

func (s *RedisStore) Create(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(room.Code), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis create room %s: %w", room.Code, err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}
