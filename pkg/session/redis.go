package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore persists session state in Redis under the fixed session keys.
// Writes go through a transaction pipeline and deletes use a single multi-key
// DEL, so the three values change as a unit.
type RedisStore struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(redisClient *redis.Client, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		logger: logger,
	}
}

// Save stores the full session state.
func (s *RedisStore) Save(ctx context.Context, state State) error {
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, KeyToken, state.Token, 0)
	pipe.Set(ctx, KeyUser, state.UserJSON, 0)
	pipe.Set(ctx, KeyAcquiredAt, state.AcquiredAt.Format(time.RFC3339Nano), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}

	s.logger.Debug().
		Time("acquired_at", state.AcquiredAt).
		Msg("Session state saved")

	return nil
}

// Load retrieves the persisted session state.
// Returns ErrNoSession when no token is stored.
func (s *RedisStore) Load(ctx context.Context) (State, error) {
	token, err := s.redis.Get(ctx, KeyToken).Result()
	if err == redis.Nil {
		return State{}, ErrNoSession
	}
	if err != nil {
		return State{}, fmt.Errorf("load session token: %w", err)
	}

	state := State{Token: token}

	userJSON, err := s.redis.Get(ctx, KeyUser).Bytes()
	if err != nil && err != redis.Nil {
		return State{}, fmt.Errorf("load session user: %w", err)
	}
	if err == nil {
		state.UserJSON = userJSON
	}

	acquiredStr, err := s.redis.Get(ctx, KeyAcquiredAt).Result()
	if err != nil && err != redis.Nil {
		return State{}, fmt.Errorf("load session acquired_at: %w", err)
	}
	if err == nil && acquiredStr != "" {
		acquired, parseErr := time.Parse(time.RFC3339Nano, acquiredStr)
		if parseErr != nil {
			return State{}, fmt.Errorf("parse session acquired_at: %w", parseErr)
		}
		state.AcquiredAt = acquired
	}

	return state, nil
}

// Clear removes all three session keys as a set.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, KeyToken, KeyUser, KeyAcquiredAt).Err(); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}

	s.logger.Debug().Msg("Session state cleared")
	return nil
}
