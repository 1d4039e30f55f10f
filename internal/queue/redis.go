package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
)

// DefaultEventsKey is the list the monitoring daemon pushes events onto.
const DefaultEventsKey = "checkstore:events"

// RedisSource pops events from a Redis list.
// The producer RPUSHes; the source BLPOPs one event then LPOPs the rest of the batch.
type RedisSource struct {
	client      *redis.Client
	key         string
	batchSize   int
	pollTimeout time.Duration
	logger      logger.Logger
}

// NewRedisSource creates a source reading key. The client is owned by the caller.
func NewRedisSource(client *redis.Client, key string, batchSize int, pollTimeout time.Duration, log logger.Logger) *RedisSource {
	if key == "" {
		key = DefaultEventsKey
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &RedisSource{
		client:      client,
		key:         key,
		batchSize:   batchSize,
		pollTimeout: pollTimeout,
		logger:      log,
	}
}

// Next implements Source.
func (s *RedisSource) Next(ctx context.Context) ([]domain.Event, error) {
	first, err := s.client.BLPop(ctx, s.pollTimeout, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blpop %s: %w", s.key, err)
	}

	// BLPOP returns [key, value].
	payloads := [][]byte{[]byte(first[1])}

	if s.batchSize > 1 {
		rest, err := s.client.LPopCount(ctx, s.key, s.batchSize-1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to drain event list",
				logger.String("key", s.key),
				logger.Error(err))
		}
		for _, p := range rest {
			payloads = append(payloads, []byte(p))
		}
	}

	return decodeAll(payloads, s.logger), nil
}

// Close implements Source. The shared client is closed by its owner.
func (s *RedisSource) Close() error {
	return nil
}
