package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/pkg/logger"
)

const recommendationPrefix = "recommendation:"

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetRecommendation stores an LLM recommendation under its prompt hash.
func (c *Client) SetRecommendation(ctx context.Context, promptHash, recommendation string, ttl time.Duration) error {
	data, err := json.Marshal(recommendation)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}

	if err := c.client.Set(ctx, recommendationPrefix+promptHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set recommendation cache: %w", err)
	}

	logger.Debug("Recommendation cached", zap.String("prompt_hash", promptHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetRecommendation(ctx context.Context, promptHash string) (string, bool, error) {
	data, err := c.client.Get(ctx, recommendationPrefix+promptHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get recommendation cache: %w", err)
	}

	var recommendation string
	if err := json.Unmarshal(data, &recommendation); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal recommendation: %w", err)
	}

	logger.Debug("Recommendation cache hit", zap.String("prompt_hash", promptHash))
	return recommendation, true, nil
}

// InvalidateRecommendations drops every cached recommendation, e.g. after
// the prompt template or the model changed.
func (c *Client) InvalidateRecommendations(ctx context.Context) (int, error) {
	deleted := 0
	iter := c.client.Scan(ctx, 0, recommendationPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Recommendation cache invalidated", zap.Int("deleted", deleted))
	return deleted, nil
}
