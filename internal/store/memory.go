package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/atmx/portfolio-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	history map[string][]model.PortfolioRecord // oldest first
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		history: make(map[string][]model.PortfolioRecord),
	}
}

func (s *MemoryStore) SavePortfolio(_ context.Context, rec *model.PortfolioRecord) error {
	if rec.Wallet == "" || rec.Scope == "" {
		return fmt.Errorf("store: portfolio record needs wallet and scope")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *rec
	key := historyKey(rec.Wallet, rec.Scope)
	s.history[key] = append(s.history[key], copy)
	return nil
}

func (s *MemoryStore) LatestPortfolio(_ context.Context, wallet, scope string) (*model.PortfolioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.history[historyKey(wallet, scope)]
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, wallet, scope)
	}
	latest := recs[len(recs)-1]
	return &latest, nil
}

func (s *MemoryStore) ListPortfolios(_ context.Context, wallet, scope string, limit int) ([]model.PortfolioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	recs := s.history[historyKey(wallet, scope)]
	out := make([]model.PortfolioRecord, 0, min(limit, len(recs)))
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}

func historyKey(wallet, scope string) string { return wallet + "|" + scope }
