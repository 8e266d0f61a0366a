package versequiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for the remote score store
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisScoreStore keeps overall scores in Redis under score:<user>
type RedisScoreStore struct {
	client *redis.Client
	prefix string
}

// NewRedisScoreStore connects to Redis. A failed ping is logged, not fatal; calls will
// fail until the server is reachable and Sync copes with that.
func NewRedisScoreStore(ctx context.Context, config RedisConfig) *RedisScoreStore {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logf("Error connecting to Redis at %s: %v", config.Address, err)
	}
	return NewRedisScoreStoreFromClient(client)
}

// NewRedisScoreStoreFromClient wraps an existing client
func NewRedisScoreStoreFromClient(client *redis.Client) *RedisScoreStore {
	return &RedisScoreStore{client: client, prefix: "score:"}
}

func (r *RedisScoreStore) key(userID string) string {
	return r.prefix + userID
}

// GetOverallScore returns 0 for users with no remote score yet
func (r *RedisScoreStore) GetOverallScore(ctx context.Context, userID string) (int, error) {
	value, err := r.client.Get(ctx, r.key(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get remote score: %w", err)
	}
	return value, nil
}

func (r *RedisScoreStore) SetOverallScore(ctx context.Context, userID string, score int) error {
	if err := r.client.Set(ctx, r.key(userID), score, 0).Err(); err != nil {
		return fmt.Errorf("failed to set remote score: %w", err)
	}
	return nil
}

func (r *RedisScoreStore) IncrementOverallScore(ctx context.Context, userID string, delta int) (int, error) {
	value, err := r.client.IncrBy(ctx, r.key(userID), int64(delta)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment remote score: %w", err)
	}
	return int(value), nil
}

// Close releases the Redis connection pool
func (r *RedisScoreStore) Close() error {
	return r.client.Close()
}
