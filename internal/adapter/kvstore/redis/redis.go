package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

const dialTimeout = 5 * time.Second

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error("Failed to connect to Redis", "address", cfg.Address, "error", err)
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Address, err)
	}
	log.Info("Successfully connected to Redis", "address", cfg.Address)
	return client, nil
}

// Store implements domain.KVStore on Redis. Keys never expire, so favorites and drafts
// survive restarts as long as Redis persistence is enabled.
type Store struct {
	client redis.Cmdable
	prefix string
	logger *logger.Logger
}

func NewStore(client redis.Cmdable, prefix string, log *logger.Logger) *Store {
	return &Store{client: client, prefix: prefix, logger: log}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrKeyNotFound
		}
		s.logger.Error("Redis Get operation failed", "key", key, "error", err)
		return nil, fmt.Errorf("redis.Store.Get for key '%s': %w", key, err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		s.logger.Error("Redis Set operation failed", "key", key, "error", err)
		return fmt.Errorf("redis.Store.Set for key '%s': %w", key, err)
	}
	s.logger.Debug("Redis Set operation successful", "key", key, "size_bytes", len(value))
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.Error("Redis Del operation failed", "key", key, "error", err)
		return fmt.Errorf("redis.Store.Delete for key '%s': %w", key, err)
	}
	return nil
}
