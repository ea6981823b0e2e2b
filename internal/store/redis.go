package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Cache is the subset of the Redis client CachedStore uses.
// *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the latest portfolio. Writes go to the primary store and then
// refresh the cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     Cache
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) SavePortfolio(ctx context.Context, rec *model.PortfolioRecord) error {
	if err := s.primary.SavePortfolio(ctx, rec); err != nil {
		return err
	}
	s.cacheLatest(ctx, rec)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) LatestPortfolio(ctx context.Context, wallet, scope string) (*model.PortfolioRecord, error) {
	data, err := s.rdb.Get(ctx, latestKey(wallet, scope)).Bytes()
	if err == nil {
		var rec model.PortfolioRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	// Cache miss: read from primary.
	rec, err := s.primary.LatestPortfolio(ctx, wallet, scope)
	if err != nil {
		return nil, err
	}

	s.cacheLatest(ctx, rec)
	return rec, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListPortfolios(ctx context.Context, wallet, scope string, limit int) ([]model.PortfolioRecord, error) {
	return s.primary.ListPortfolios(ctx, wallet, scope, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cacheLatest(ctx context.Context, rec *model.PortfolioRecord) {
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, latestKey(rec.Wallet, rec.Scope), data, s.ttl)
	}
}

func latestKey(wallet, scope string) string { return fmt.Sprintf("portfolio:latest:%s:%s", wallet, scope) }
