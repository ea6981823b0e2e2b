// Package pnl computes realized profit by FIFO lot matching.
//
// Opening trades push lots onto a per-outcome queue; closing trades consume
// lots from the front. A match is realized when its closing trade happens,
// so only the close timestamp decides whether a match falls in a window.
package pnl

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/position"
)

// Window bounds which closes count. A zero bound is open-ended.
type Window struct {
	Start time.Time
	End   time.Time
}

// Trailing returns the window of the given number of days ending at now.
func Trailing(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// FromRange converts a time range into a window.
func FromRange(r model.TimeRange) Window {
	return Window{Start: r.From, End: r.To}
}

// Contains reports whether t is inside the window, bounds inclusive.
func (w Window) Contains(t time.Time) bool {
	return model.TimeRange{From: w.Start, To: w.End}.Contains(t)
}

// Match pairs part of a closing trade with part of an opening lot.
type Match struct {
	Key      model.PositionKey
	OpenedAt time.Time
	ClosedAt time.Time
	Size     decimal.Decimal
	UnitCost decimal.Decimal
	Exit     decimal.Decimal
	PnL      decimal.Decimal // net of both fee shares
	InWindow bool
}

// Result is the outcome of one matching pass.
type Result struct {
	Realized      decimal.Decimal
	UnmatchedSize decimal.Decimal
	UnmatchedFee  decimal.Decimal
	Matches       []Match
}

// Matcher runs FIFO matching and reports unmatched closes.
type Matcher struct {
	log *slog.Logger
}

// NewMatcher creates a matcher. A nil logger uses slog.Default().
func NewMatcher(log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{log: log}
}

// MatchFIFO matches with the default logger.
func MatchFIFO(records []model.TradeRecord, window Window) Result {
	return NewMatcher(nil).Match(records, window)
}

// Match computes realized PnL for closes inside window. Each match
// contributes (exit - unitCost) * size less the open lot's fee share and the
// close's fee share. Shares are pro rata to size, and the match that drains
// a lot or a close takes whatever fee is left, so the shares of one trade
// sum to exactly its fee. Close size with no lot left to consume still
// charges its remaining close fee. Input is not modified.
func (m *Matcher) Match(records []model.TradeRecord, window Window) Result {
	res := Result{
		Realized:      decimal.Zero,
		UnmatchedSize: decimal.Zero,
		UnmatchedFee:  decimal.Zero,
	}
	queues := make(map[model.PositionKey][]model.Lot)

	for _, r := range position.SortByTime(records) {
		if !r.Size.IsPositive() {
			continue
		}
		key := r.Key()

		if r.Side == model.SideOpen {
			queues[key] = append(queues[key], model.Lot{
				OpenedAt:  r.Timestamp,
				Remaining: r.Size,
				UnitCost:  r.Price,
				Fee:       r.Fee,
			})
			continue
		}

		inWindow := window.Contains(r.Timestamp)
		closeFee := r.Fee
		left := r.Size
		lots := queues[key]

		for len(lots) > 0 && left.IsPositive() {
			lot := &lots[0]
			size := decimal.Min(lot.Remaining, left)

			openShare := feeShare(lot.Fee, size, lot.Remaining)
			closeShare := feeShare(closeFee, size, left)
			lot.Fee = lot.Fee.Sub(openShare)
			closeFee = closeFee.Sub(closeShare)

			gross := r.Price.Sub(lot.UnitCost).Mul(size)
			pnl := gross.Sub(openShare).Sub(closeShare)

			res.Matches = append(res.Matches, Match{
				Key:      key,
				OpenedAt: lot.OpenedAt,
				ClosedAt: r.Timestamp,
				Size:     size,
				UnitCost: lot.UnitCost,
				Exit:     r.Price,
				PnL:      pnl,
				InWindow: inWindow,
			})
			if inWindow {
				res.Realized = res.Realized.Add(pnl)
			}

			lot.Remaining = lot.Remaining.Sub(size)
			left = left.Sub(size)
			if !lot.Remaining.IsPositive() {
				lots = lots[1:]
			}
		}
		queues[key] = lots

		if left.IsPositive() {
			fee := closeFee
			m.log.Warn("closing trade without matching open lot",
				"market", key.MarketID,
				"outcome", key.OutcomeID,
				"unmatched_size", left.String(),
				"source_id", r.SourceID,
			)
			metrics.UnmatchedCloses.Inc()
			if inWindow {
				res.UnmatchedSize = res.UnmatchedSize.Add(left)
				res.UnmatchedFee = res.UnmatchedFee.Add(fee)
				res.Realized = res.Realized.Sub(fee)
			}
		}
	}
	return res
}

// feeShare returns the part of fee owed by size out of remaining. Taking
// all of remaining takes all of fee.
func feeShare(fee, size, remaining decimal.Decimal) decimal.Decimal {
	if fee.IsZero() {
		return decimal.Zero
	}
	if size.GreaterThanOrEqual(remaining) {
		return fee
	}
	return fee.Mul(size).Div(remaining)
}
