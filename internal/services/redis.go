package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloudvps-backend/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisService backs three concerns: the document store (one key), the
// edge function's KV cache and request rate limits.
type RedisService struct {
	client      *redis.Client
	documentKey string
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client:      client,
		documentKey: cfg.StorageKey,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.documentKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %v", err)
	}
	return data, nil
}

func (s *RedisService) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.documentKey, data, 0).Err()
}

func (s *RedisService) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.documentKey).Err()
}

func (s *RedisService) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %v", key, err)
	}
	return val, true, nil
}

func (s *RedisService) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// PutIfAbsent returns false when the key already exists.
func (s *RedisService) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisService) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID string, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, userID, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, userID, action)).Err()
}
