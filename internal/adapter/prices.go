package adapter

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/venue"
)

var fMid = NewField("mid", "$.mid", "$.midpoint", "$.price")

// PriceLookup reads present-time mark prices from the venue's order book
// midpoint endpoint.
type PriceLookup struct {
	getter venue.Getter
	path   string
	log    *slog.Logger
}

// NewPriceLookup creates a mark-price lookup.
func NewPriceLookup(g venue.Getter, log *slog.Logger) *PriceLookup {
	if log == nil {
		log = slog.Default()
	}
	return &PriceLookup{
		getter: g,
		path:   "/midpoint",
		log:    log.With("component", "prices"),
	}
}

// CurrentPrice returns the outcome token's mark in [0, 1]. ok is false
// when the venue has no price for it.
func (p *PriceLookup) CurrentPrice(ctx context.Context, marketID, outcomeID string) (decimal.Decimal, bool) {
	body, err := p.getter.Get(ctx, p.path, url.Values{"token_id": {outcomeID}})
	if err != nil {
		if !venue.IsNotFound(err) {
			p.log.Warn("mark price unavailable", "market", marketID, "outcome", outcomeID, "err", err)
		}
		return decimal.Zero, false
	}
	obj, err := venue.DecodeObject(body)
	if err != nil || !fMid.Has(obj) {
		p.log.Warn("mark price malformed", "market", marketID, "outcome", outcomeID)
		return decimal.Zero, false
	}
	return clampPrice(fMid.Decimal(obj)), true
}
