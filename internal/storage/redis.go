package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shopbridge/internal/models"
)

const (
	redisSessionPrefix = "shopbridge:session:"
	redisShopPrefix    = "shopbridge:shop:"
)

// RedisStore implements the SessionStore interface using Redis. Sessions
// are stored as JSON values with a per-shop set index, and online sessions
// expire automatically with their token.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis session store.
func NewRedisStore(ctx context.Context, cfg models.RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required for Redis storage")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Store saves or replaces a session by its ID.
func (rs *RedisStore) Store(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var ttl time.Duration
	if session.Expires != nil {
		ttl = time.Until(*session.Expires)
		if ttl <= 0 {
			return fmt.Errorf("session %s is already expired", session.ID)
		}
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, redisSessionPrefix+session.ID, data, ttl)
	pipe.SAdd(ctx, redisShopPrefix+session.Shop, session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Load retrieves a session by its ID.
func (rs *RedisStore) Load(ctx context.Context, id string) (*models.Session, error) {
	data, err := rs.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// LoadByShop returns all sessions for a shop domain. Session IDs whose
// values have expired are pruned from the index as they are encountered.
func (rs *RedisStore) LoadByShop(ctx context.Context, shop string) ([]*models.Session, error) {
	ids, err := rs.client.SMembers(ctx, redisShopPrefix+shop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for shop %s: %w", shop, err)
	}

	sessions := []*models.Session{}
	for _, id := range ids {
		session, err := rs.Load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				rs.client.SRem(ctx, redisShopPrefix+shop, id)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// Delete removes a session by its ID.
func (rs *RedisStore) Delete(ctx context.Context, id string) error {
	session, err := rs.Load(ctx, id)
	if err != nil {
		return err
	}

	pipe := rs.client.TxPipeline()
	pipe.Del(ctx, redisSessionPrefix+id)
	pipe.SRem(ctx, redisShopPrefix+session.Shop, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByShop removes all sessions for a shop domain.
func (rs *RedisStore) DeleteByShop(ctx context.Context, shop string) error {
	ids, err := rs.client.SMembers(ctx, redisShopPrefix+shop).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions for shop %s: %w", shop, err)
	}

	pipe := rs.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, redisSessionPrefix+id)
	}
	pipe.Del(ctx, redisShopPrefix+shop)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete sessions for shop %s: %w", shop, err)
	}
	return nil
}

// Ping verifies the Redis server is reachable.
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
