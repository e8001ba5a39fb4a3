package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "photo-relay:job:"

// RedisStore keeps job records in Redis so they survive a process restart.
// Redis applies the TTL itself, and GETDEL gives the same exactly-one-winner
// guarantee as the in-memory store.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and returns a Store backed by it.
func NewRedisStore(cfg *RedisConfig, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis correlation store initialized",
		slog.String("addr", cfg.Addr),
		slog.Duration("ttl", ttl),
	)

	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (s *RedisStore) Register(ctx context.Context, jobID, destination string) error {
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+jobID, destination, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to register job id: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) ResolveAndRemove(ctx context.Context, jobID string) (string, error) {
	dest, err := s.client.GetDel(ctx, redisKeyPrefix+jobID).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve job id: %w", err)
	}
	return dest, nil
}

func (s *RedisStore) Remove(ctx context.Context, jobID string) error {
	n, err := s.client.Del(ctx, redisKeyPrefix+jobID).Result()
	if err != nil {
		return fmt.Errorf("failed to remove job id: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
