package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/portfolio-engine/internal/model"
)

// memCache is an in-process stand-in for Redis.
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (m *memCache) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := value.([]byte); ok {
		m.data[key] = string(b)
	}
	return redis.NewStatusResult("OK", nil)
}

// countingStore counts LatestPortfolio reads that reach the primary.
type countingStore struct {
	Store
	latest int
}

func (s *countingStore) LatestPortfolio(ctx context.Context, wallet, scope string) (*model.PortfolioRecord, error) {
	s.latest++
	return s.Store.LatestPortfolio(ctx, wallet, scope)
}

func TestCachedStore_SaveWritesThrough(t *testing.T) {
	primary := &countingStore{Store: NewMemoryStore()}
	cache := newMemCache()
	s := NewCachedStore(primary, cache, time.Minute)
	ctx := context.Background()

	if err := s.SavePortfolio(ctx, record("a", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), 7)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, ok := cache.data[latestKey("0xabc", "all")]; !ok {
		t.Fatal("expected save to populate the cache")
	}

	rec, err := s.LatestPortfolio(ctx, "0xabc", "all")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if rec.ID != "a" || rec.Portfolio.TotalValue.IntPart() != 7 {
		t.Errorf("unexpected record %+v", rec)
	}
	if primary.latest != 0 {
		t.Errorf("expected cache hit, primary read %d times", primary.latest)
	}

	recs, err := s.ListPortfolios(ctx, "0xabc", "all", 0)
	if err != nil || len(recs) != 1 {
		t.Errorf("expected history from primary, got %d %v", len(recs), err)
	}
}

func TestCachedStore_MissReadsPrimaryOnce(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	if err := mem.SavePortfolio(ctx, record("a", time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), 3)); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	primary := &countingStore{Store: mem}
	s := NewCachedStore(primary, newMemCache(), time.Minute)

	for i := 0; i < 2; i++ {
		rec, err := s.LatestPortfolio(ctx, "0xabc", "all")
		if err != nil {
			t.Fatalf("latest failed: %v", err)
		}
		if rec.ID != "a" {
			t.Errorf("expected record a, got %s", rec.ID)
		}
	}
	if primary.latest != 1 {
		t.Errorf("expected one primary read, got %d", primary.latest)
	}

	if _, err := s.LatestPortfolio(ctx, "0xabc", "sports"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
