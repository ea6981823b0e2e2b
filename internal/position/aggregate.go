// Package position folds trade records into net positions per market
// outcome.
//
// One stable pass over time-ordered records yields both the final net
// size (is the position open?) and the historical maximum (was it ever
// held?). Records sharing a timestamp keep ingestion order; their final
// net size is order-independent, but a pathological interleaving of
// same-instant opens and closes can change the intermediate maximum.
package position

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// SortByTime returns a copy of records ordered by timestamp, keeping
// ingestion order on ties.
func SortByTime(records []model.TradeRecord) []model.TradeRecord {
	sorted := make([]model.TradeRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Aggregate builds net positions keyed by market outcome. Cost basis uses
// average cost: opens add size × price, closes release cost pro rata, and
// the basis resets once the position is flat or short.
func Aggregate(records []model.TradeRecord) map[model.PositionKey]*model.NetPosition {
	positions := make(map[model.PositionKey]*model.NetPosition)

	for _, r := range SortByTime(records) {
		key := r.Key()
		p, ok := positions[key]
		if !ok {
			p = &model.NetPosition{Key: key}
			positions[key] = p
		}
		if p.Market.IsZero() {
			p.Market = r.Market
		}

		switch r.Side {
		case model.SideOpen:
			p.CostBasis = p.CostBasis.Add(r.Size.Mul(r.Price))
			p.NetSize = p.NetSize.Add(r.Size)
		case model.SideClose:
			if p.NetSize.IsPositive() {
				released := decimal.Min(r.Size, p.NetSize)
				p.CostBasis = p.CostBasis.Sub(p.CostBasis.Mul(released).Div(p.NetSize))
			}
			p.NetSize = p.NetSize.Sub(r.Size)
			if !p.NetSize.IsPositive() {
				p.CostBasis = decimal.Zero
			}
		}

		if p.NetSize.GreaterThan(p.MaxNetSize) {
			p.MaxNetSize = p.NetSize
		}
	}
	return positions
}

// SortedKeys returns map keys ordered by market then outcome.
func SortedKeys(positions map[model.PositionKey]*model.NetPosition) []model.PositionKey {
	keys := make([]model.PositionKey, 0, len(positions))
	for k := range positions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Open reports whether the last observed net size is positive.
func Open(p *model.NetPosition) bool { return p.NetSize.IsPositive() }

// Lifetime reports whether the position was ever held.
func Lifetime(p *model.NetPosition) bool { return p.MaxNetSize.IsPositive() }
