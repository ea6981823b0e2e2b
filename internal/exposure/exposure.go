// Package exposure groups open positions by the event ("game") they belong
// to, so correlated outcomes of one game show up as a single concentration.
package exposure

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
)

// Holding is one open position with its marked value.
type Holding struct {
	Key     model.PositionKey
	Market  model.Market
	NetSize decimal.Decimal
	Value   decimal.Decimal
}

// GameKey returns the grouping key for a market: its event slug, then its
// own slug, then fallback (usually the market id).
func GameKey(m model.Market, fallback string) string {
	switch {
	case m.EventSlug != "":
		return m.EventSlug
	case m.Slug != "":
		return m.Slug
	default:
		return fallback
	}
}

// ByGame sums holdings per game. The result is ordered by value descending,
// then by game key, and is never nil.
func ByGame(holdings []Holding) []model.GameExposure {
	sorted := make([]Holding, len(holdings))
	copy(sorted, holdings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key.Less(sorted[j].Key) })

	index := make(map[string]int)
	out := []model.GameExposure{}
	for _, h := range sorted {
		key := GameKey(h.Market, h.Key.MarketID)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, model.GameExposure{
				GameKey: key,
				Title:   h.Market.Title,
				NetSize: decimal.Zero,
				Value:   decimal.Zero,
			})
		}
		g := &out[i]
		g.Positions++
		g.NetSize = g.NetSize.Add(h.NetSize)
		g.Value = g.Value.Add(h.Value)
		if g.Title == "" {
			g.Title = h.Market.Title
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		return out[i].GameKey < out[j].GameKey
	})
	return out
}

// Total returns the summed value across games.
func Total(games []model.GameExposure) decimal.Decimal {
	total := decimal.Zero
	for _, g := range games {
		total = total.Add(g.Value)
	}
	return total
}
