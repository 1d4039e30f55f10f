package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/index"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
)

// IdentityLoader reads mirrored identities.
type IdentityLoader interface {
	GetAllIdentities(ctx context.Context) ([]*domain.Identity, error)
}

// IdentitySyncer seeds the identity cache from the Redis mirror on startup
type IdentitySyncer struct {
	store  IdentityLoader
	cache  *index.IdentityCache
	logger logger.Logger
}

// NewIdentitySyncer creates a new identity syncer
func NewIdentitySyncer(store IdentityLoader, cache *index.IdentityCache, log logger.Logger) *IdentitySyncer {
	return &IdentitySyncer{
		store:  store,
		cache:  cache,
		logger: log,
	}
}

// Sync loads identities from Redis into the cache. It must run before the host loop starts.
func (s *IdentitySyncer) Sync(ctx context.Context) error {
	s.logger.Info("restoring identities from redis")

	ids, err := s.store.GetAllIdentities(ctx)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		s.logger.Info("no identities found in redis")
		return nil
	}

	restored := s.cache.Restore(ids)
	metrics.RecordIdentities(s.cache.Counts())

	s.logger.Info("restored identities from redis",
		logger.Int("found", len(ids)),
		logger.Int("restored", restored))

	return nil
}
