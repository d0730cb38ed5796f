package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
)

// RedisStateStore persists adaptive state as a JSON value under a single key.
// A Redis SET is atomic, so readers never observe a half-written state.
type RedisStateStore struct {
	client *redis.Client
	key    string
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client, key string) *RedisStateStore {
	if key == "" {
		key = "stockpulse:adaptive_state"
	}
	return &RedisStateStore{client: client, key: key}
}

func (s *RedisStateStore) Load(ctx context.Context) (*models.AdaptiveState, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get state: %w", err)
	}
	var st models.AdaptiveState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

func (s *RedisStateStore) Save(ctx context.Context, state *models.AdaptiveState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set state: %w", err)
	}
	return nil
}

var _ domrepo.StateStore = (*RedisStateStore)(nil)
