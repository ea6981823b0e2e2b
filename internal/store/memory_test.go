package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

func record(id string, at time.Time, value int64) *model.PortfolioRecord {
	return &model.PortfolioRecord{
		ID:         id,
		Wallet:     "0xabc",
		Scope:      "all",
		ComputedAt: at,
		Portfolio:  model.Portfolio{Wallet: "0xabc", Scope: "all", TotalValue: decimal.NewFromInt(value)},
	}
}

func TestMemoryStore_LatestAndHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.SavePortfolio(ctx, record(id, t0.Add(time.Duration(i)*time.Minute), int64(i))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	latest, err := s.LatestPortfolio(ctx, "0xabc", "all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.ID != "c" || !latest.Portfolio.TotalValue.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected latest c, got %+v", latest)
	}

	recs, err := s.ListPortfolios(ctx, "0xabc", "all", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "c" || recs[1].ID != "b" {
		t.Errorf("expected [c b], got %+v", recs)
	}

	all, _ := s.ListPortfolios(ctx, "0xabc", "all", 0)
	if len(all) != 3 {
		t.Errorf("default limit should return all 3, got %d", len(all))
	}
}

func TestMemoryStore_ScopesAreSeparate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := record("a", time.Now(), 1)
	_ = s.SavePortfolio(ctx, rec)

	if _, err := s.LatestPortfolio(ctx, "0xabc", "sports"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	recs, err := s.ListPortfolios(ctx, "0xabc", "sports", 10)
	if err != nil || len(recs) != 0 {
		t.Errorf("expected empty history, got %v %v", recs, err)
	}
}

func TestMemoryStore_CopiesOnSave(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := record("a", time.Now(), 1)
	_ = s.SavePortfolio(ctx, rec)
	rec.ID = "mutated"

	latest, _ := s.LatestPortfolio(ctx, "0xabc", "all")
	if latest.ID != "a" {
		t.Errorf("store must keep its own copy, got %q", latest.ID)
	}
}

func TestMemoryStore_RejectsIncompleteRecord(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SavePortfolio(context.Background(), &model.PortfolioRecord{ID: "x"}); err == nil {
		t.Error("expected error for record without wallet")
	}
}
