package adapter

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/venue"
)

var (
	fMarket    = NewField("market", "$.conditionId", "$.condition_id", "$.market", "$.marketId")
	fOutcome   = NewField("outcome", "$.asset", "$.asset_id", "$.tokenId", "$.token_id", "$.outcomeIndex")
	fSlug      = NewField("slug", "$.slug", "$.market_slug", "$.marketSlug")
	fTitle     = NewField("title", "$.title", "$.question", "$.name")
	fEventSlug = NewField("eventSlug", "$.eventSlug", "$.event_slug", "$.groupSlug")

	fNetSize  = NewField("size", "$.size", "$.netSize", "$.shares")
	fAvgPrice = NewField("avgPrice", "$.avgPrice", "$.avg_price", "$.averagePrice")
	fCurPrice = NewField("curPrice", "$.curPrice", "$.cur_price", "$.currentPrice", "$.price")
	fCashPnL  = NewField("cashPnl", "$.cashPnl", "$.cash_pnl", "$.unrealizedPnl")
	fRealized = NewField("realizedPnl", "$.realizedPnl", "$.realized_pnl")
	fResolved = NewField("resolved", "$.redeemable", "$.resolved", "$.closed")
	fEndDate  = NewField("endDate", "$.endDate", "$.end_date")
	fClosedAt = NewField("closedAt", "$.timestamp", "$.closedAt", "$.closed_at", "$.endDate")
)

var (
	errNoMarket  = errors.New("adapter: missing market id")
	errNoOutcome = errors.New("adapter: missing outcome id")
	errNegative  = errors.New("adapter: negative size")
	errNoTime    = errors.New("adapter: missing timestamp")
	errBadSide   = errors.New("adapter: unrecognized side")
	errBadSize   = errors.New("adapter: size must be positive")
	errBadPrice  = errors.New("adapter: price outside [0, 1]")
	errBadFee    = errors.New("adapter: negative fee")
)

var one = decimal.NewFromInt(1)

func marketOf(doc any) model.Market {
	return model.Market{
		Slug:      fSlug.String(doc),
		Title:     fTitle.String(doc),
		EventSlug: fEventSlug.String(doc),
	}
}

func clampPrice(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(one) {
		return one
	}
	return p
}

func decodeSnapshot(doc any) (model.PositionSnapshot, error) {
	var p model.PositionSnapshot
	if p.MarketID = fMarket.String(doc); p.MarketID == "" {
		return p, errNoMarket
	}
	if p.OutcomeID = fOutcome.String(doc); p.OutcomeID == "" {
		return p, errNoOutcome
	}
	p.NetSize = fNetSize.Decimal(doc)
	if p.NetSize.IsNegative() {
		return p, errNegative
	}
	p.AvgPrice = clampPrice(fAvgPrice.Decimal(doc))
	p.CurPrice = clampPrice(fCurPrice.Decimal(doc))
	p.CashPnL = fCashPnL.Decimal(doc)
	p.RealizedPnL = fRealized.Decimal(doc)
	p.Resolved = fResolved.Bool(doc)
	p.EndDate, _ = fEndDate.Time(doc)
	p.Market = marketOf(doc)
	return p, nil
}

func decodeClosed(doc any) (model.PositionSnapshot, error) {
	p, err := decodeSnapshot(doc)
	if err != nil {
		return p, err
	}
	// Closed rows report the size that was held, not what is held now.
	p.NetSize = decimal.Zero
	p.ClosedAt, _ = fClosedAt.Time(doc)
	return p, nil
}

// Positions is the venue's current positions snapshot.
type Positions struct {
	c *collection[model.PositionSnapshot]
}

// NewPositions creates the positions snapshot adapter.
func NewPositions(g venue.Getter, opts Options) *Positions {
	req := venue.Request{
		Path:          "/positions",
		SortBy:        "CURRENT",
		SortDirection: "DESC",
	}
	return &Positions{c: newCollection("positions", g, req, opts, decodeSnapshot)}
}

// Fetch returns the wallet's open positions as the venue reports them.
func (a *Positions) Fetch(ctx context.Context, wallet string, f Filter) (Result[model.PositionSnapshot], error) {
	return a.c.fetch(ctx, wallet, f)
}

// ClosedPositions is the venue's history of fully closed positions.
type ClosedPositions struct {
	c *collection[model.PositionSnapshot]
}

// NewClosedPositions creates the closed-positions history adapter.
func NewClosedPositions(g venue.Getter, opts Options) *ClosedPositions {
	req := venue.Request{
		Path:          "/closed-positions",
		SortBy:        "TIMESTAMP",
		SortDirection: "DESC",
	}
	return &ClosedPositions{c: newCollection("closed_positions", g, req, opts, decodeClosed)}
}

// Fetch returns closed positions with their realized PnL.
func (a *ClosedPositions) Fetch(ctx context.Context, wallet string, f Filter) (Result[model.PositionSnapshot], error) {
	return a.c.fetch(ctx, wallet, f)
}
