package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
)

// DefaultIdentityTTL is the default TTL for identity entries (30 days)
const DefaultIdentityTTL = 30 * 24 * time.Hour

// Store mirrors identity records in Redis so a restart does not wait for
// the next round of snapshot events.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

// SaveIdentity stores an identity and indexes its key
func (s *Store) SaveIdentity(ctx context.Context, id *domain.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, IdentityKey(id.Key), data, s.ttl)
	pipe.SAdd(ctx, AllIdentitiesKey(), id.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save identity %s: %w", id.Key, err)
	}
	return nil
}

// GetAllIdentities retrieves every mirrored identity.
// Keys whose entry expired are removed from the index.
func (s *Store) GetAllIdentities(ctx context.Context) ([]*domain.Identity, error) {
	keys, err := s.client.SMembers(ctx, AllIdentitiesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity keys: %w", err)
	}
	if len(keys) == 0 {
		return []*domain.Identity{}, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = IdentityKey(k)
	}
	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get identities: %w", err)
	}

	ids := make([]*domain.Identity, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, keys[i])
			continue
		}
		var id domain.Identity
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			// Skip entries that no longer decode
			continue
		}
		ids = append(ids, &id)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, AllIdentitiesKey(), stale...).Err(); err != nil {
			return ids, fmt.Errorf("failed to prune expired identities: %w", err)
		}
	}
	return ids, nil
}
