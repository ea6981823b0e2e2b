package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/portfolio-engine/internal/adapter"
	"github.com/atmx/portfolio-engine/internal/model"
)

var errNoSource = errors.New("reconcile: source not configured")

// SnapshotSource is a positions-shaped collection (open or closed).
type SnapshotSource interface {
	Fetch(ctx context.Context, wallet string, f adapter.Filter) (adapter.Result[model.PositionSnapshot], error)
}

// TradeSource is a trade-record-shaped collection (fills or activity).
type TradeSource interface {
	Fetch(ctx context.Context, wallet string, f adapter.Filter) (adapter.Result[model.TradeRecord], error)
}

// PriceLookup returns the current mark for an outcome, if known.
type PriceLookup interface {
	CurrentPrice(ctx context.Context, marketID, outcomeID string) (decimal.Decimal, bool)
}

// Sources are the venue collaborators. Nil members are treated as
// unavailable.
type Sources struct {
	Positions SnapshotSource
	Closed    SnapshotSource
	Fills     TradeSource
	Activity  TradeSource
	Prices    PriceLookup
}

// once memoizes one fetch for the lifetime of a computation.
type once[T any] struct {
	o   sync.Once
	res adapter.Result[T]
	err error
}

func (c *once[T]) get(fetch func() (adapter.Result[T], error)) (adapter.Result[T], error) {
	c.o.Do(func() { c.res, c.err = fetch() })
	return c.res, c.err
}

// fetchSet holds every source response for one computation. Nothing in it
// outlives the call that created it.
type fetchSet struct {
	ctx    context.Context
	wallet string
	src    Sources
	log    *slog.Logger

	positions once[model.PositionSnapshot]
	closed    once[model.PositionSnapshot]
	fills     once[model.TradeRecord]
	activity  once[model.TradeRecord]
}

func newFetchSet(ctx context.Context, wallet string, src Sources, log *slog.Logger) *fetchSet {
	return &fetchSet{ctx: ctx, wallet: wallet, src: src, log: log}
}

// prefetch issues the positions, closed-history and fills requests
// concurrently and waits for all of them. Failures are kept per source and
// never cancel siblings. Activity is left for the tier that needs it.
func (s *fetchSet) prefetch() {
	var g errgroup.Group
	g.Go(func() error { s.Positions(); return nil })
	g.Go(func() error { s.Closed(); return nil })
	g.Go(func() error { s.Fills(); return nil })
	_ = g.Wait()
}

func (s *fetchSet) Positions() (adapter.Result[model.PositionSnapshot], error) {
	return s.positions.get(func() (adapter.Result[model.PositionSnapshot], error) {
		return fetchFrom[model.PositionSnapshot](s, "positions", s.src.Positions)
	})
}

func (s *fetchSet) Closed() (adapter.Result[model.PositionSnapshot], error) {
	return s.closed.get(func() (adapter.Result[model.PositionSnapshot], error) {
		return fetchFrom[model.PositionSnapshot](s, "closed_positions", s.src.Closed)
	})
}

func (s *fetchSet) Fills() (adapter.Result[model.TradeRecord], error) {
	return s.fills.get(func() (adapter.Result[model.TradeRecord], error) {
		return fetchFrom[model.TradeRecord](s, "fills", s.src.Fills)
	})
}

func (s *fetchSet) Activity() (adapter.Result[model.TradeRecord], error) {
	return s.activity.get(func() (adapter.Result[model.TradeRecord], error) {
		return fetchFrom[model.TradeRecord](s, "activity", s.src.Activity)
	})
}

type fetcher[T any] interface {
	Fetch(ctx context.Context, wallet string, f adapter.Filter) (adapter.Result[T], error)
}

func fetchFrom[T any](s *fetchSet, name string, src fetcher[T]) (adapter.Result[T], error) {
	if src == nil {
		return adapter.Result[T]{}, errNoSource
	}
	res, err := src.Fetch(s.ctx, s.wallet, adapter.Filter{})
	if err != nil {
		s.log.Warn("source unavailable", "source", name, "err", err)
		return adapter.Result[T]{}, err
	}
	if res.Truncated {
		s.log.Warn("source truncated at hard cap", "source", name, "records", len(res.Records))
	}
	return res, nil
}

// raw returns how many upstream rows a result saw, kept or dropped.
func raw[T any](r adapter.Result[T]) int {
	return len(r.Records) + r.Dropped
}
