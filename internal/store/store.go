// Package store persists computed portfolios so callers can read the
// latest result and its history without recomputing. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache for the
// latest portfolio), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/portfolio-engine/internal/model"
)

var ErrNotFound = errors.New("store: portfolio not found")

// DefaultListLimit caps history reads when the caller gives no limit.
const DefaultListLimit = 50

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// SavePortfolio appends one computation result.
	SavePortfolio(ctx context.Context, rec *model.PortfolioRecord) error

	// LatestPortfolio returns the most recent result for a wallet and
	// scope, or ErrNotFound.
	LatestPortfolio(ctx context.Context, wallet, scope string) (*model.PortfolioRecord, error)

	// ListPortfolios returns results newest first, at most limit of them.
	ListPortfolios(ctx context.Context, wallet, scope string, limit int) ([]model.PortfolioRecord, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
