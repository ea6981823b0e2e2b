// Package model defines the core domain types shared across the portfolio engine.
// All sizes, prices and PnL values use shopspring/decimal — never float64 for money.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade record relative to the position it touches.
type Side int

const (
	SideOpen Side = iota
	SideClose
)

func (s Side) String() string {
	if s == SideClose {
		return "close"
	}
	return "open"
}

// MarshalText renders the side as "open" or "close".
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts "open" or "close".
func (s *Side) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "open":
		*s = SideOpen
	case "close":
		*s = SideClose
	default:
		return fmt.Errorf("model: unknown side %q", string(b))
	}
	return nil
}

// Signed returns size with the sign this side applies to a net position.
func (s Side) Signed(size decimal.Decimal) decimal.Decimal {
	if s == SideClose {
		return size.Neg()
	}
	return size
}

// Market carries the descriptive fields the scope classifier matches on.
type Market struct {
	Slug      string `json:"slug,omitempty"`
	Title     string `json:"title,omitempty"`
	EventSlug string `json:"event_slug,omitempty"`
}

// IsZero reports whether no descriptive field is known.
func (m Market) IsZero() bool {
	return m.Slug == "" && m.Title == "" && m.EventSlug == ""
}

// PositionKey identifies one outcome of one market.
type PositionKey struct {
	MarketID  string `json:"market_id"`
	OutcomeID string `json:"outcome_id"`
}

func (k PositionKey) String() string { return k.MarketID + "/" + k.OutcomeID }

// Less orders keys by market then outcome.
func (k PositionKey) Less(o PositionKey) bool {
	if k.MarketID != o.MarketID {
		return k.MarketID < o.MarketID
	}
	return k.OutcomeID < o.OutcomeID
}

// TradeRecord is an immutable, normalized fill or ledger row.
// Schema: {market, outcome, side, size, price, fee, timestamp, source}
type TradeRecord struct {
	MarketID  string          `json:"market_id"`
	OutcomeID string          `json:"outcome_id"`
	Side      Side            `json:"side"`
	Size      decimal.Decimal `json:"size"`  // always > 0
	Price     decimal.Decimal `json:"price"` // in [0, 1]
	Fee       decimal.Decimal `json:"fee"`   // >= 0
	Timestamp time.Time       `json:"timestamp"`
	SourceID  string          `json:"source_id"`
	Market    Market          `json:"market"`
}

// Key returns the position this record belongs to.
func (r TradeRecord) Key() PositionKey {
	return PositionKey{MarketID: r.MarketID, OutcomeID: r.OutcomeID}
}

// PositionSnapshot is the venue's own view of a position. It may be stale
// or missing entirely; closed-history rows use the same shape with NetSize 0.
type PositionSnapshot struct {
	MarketID    string          `json:"market_id"`
	OutcomeID   string          `json:"outcome_id"`
	NetSize     decimal.Decimal `json:"net_size"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	CurPrice    decimal.Decimal `json:"cur_price"`
	CashPnL     decimal.Decimal `json:"cash_pnl"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Resolved    bool            `json:"resolved"`
	EndDate     time.Time       `json:"end_date"`
	ClosedAt    time.Time       `json:"closed_at"` // closed history only
	Market      Market          `json:"market"`
}

// Key returns the position this snapshot describes.
func (p PositionSnapshot) Key() PositionKey {
	return PositionKey{MarketID: p.MarketID, OutcomeID: p.OutcomeID}
}

// NetPosition is derived from ordered trade records.
type NetPosition struct {
	Key        PositionKey     `json:"key"`
	NetSize    decimal.Decimal `json:"net_size"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	MaxNetSize decimal.Decimal `json:"max_net_size"` // never decreases
	Market     Market          `json:"market"`
}

// AvgCost returns cost basis per unit of net size, or zero when flat or short.
func (p NetPosition) AvgCost() decimal.Decimal {
	if !p.NetSize.IsPositive() {
		return decimal.Zero
	}
	return p.CostBasis.Div(p.NetSize)
}

// Lot is the unconsumed remainder of an opening trade. Fee is the part of
// the opening fee not yet charged to a match.
type Lot struct {
	OpenedAt  time.Time
	Remaining decimal.Decimal
	UnitCost  decimal.Decimal
	Fee       decimal.Decimal
}

// Tier names the data source strategy a portfolio was computed from.
type Tier string

const (
	TierSnapshot Tier = "snapshot"
	TierLedger   Tier = "ledger"
	TierActivity Tier = "activity"
	TierNone     Tier = "none"
)

// LifetimeMethod names how LifetimePositionsCount was obtained.
type LifetimeMethod string

const (
	LifetimeSnapshotUnion  LifetimeMethod = "snapshot_union"
	LifetimeOpenOnly       LifetimeMethod = "open_only"
	LifetimeLedgerMaxNet   LifetimeMethod = "ledger_max_net"
	LifetimeActivityUnique LifetimeMethod = "activity_unique"
	LifetimeNone           LifetimeMethod = "none"
)

// WindowSource names how RealizedPnLWindow was obtained.
type WindowSource string

const (
	WindowFillsFIFO     WindowSource = "fills_fifo"
	WindowClosedHistory WindowSource = "closed_history"
	WindowNone          WindowSource = "none"
)

// GameExposure is the open value concentrated on one event.
type GameExposure struct {
	GameKey   string          `json:"game_key"`
	Title     string          `json:"title,omitempty"`
	Positions int             `json:"positions"`
	NetSize   decimal.Decimal `json:"net_size"`
	Value     decimal.Decimal `json:"value"`
}

// Portfolio aggregates a wallet's positions with PnL under one scope.
type Portfolio struct {
	Wallet                 string          `json:"wallet"`
	Scope                  string          `json:"scope"`
	TotalValue             decimal.Decimal `json:"total_value"`
	TotalUnrealizedPnL     decimal.Decimal `json:"total_unrealized_pnl"`
	TotalRealizedPnL       decimal.Decimal `json:"total_realized_pnl"`
	TotalPnL               decimal.Decimal `json:"total_pnl"` // unrealized + realized
	RealizedPnLWindow      decimal.Decimal `json:"realized_pnl_window"`
	WindowDays             int             `json:"window_days"`
	OpenPositionsCount     int             `json:"open_positions_count"`
	LifetimePositionsCount int             `json:"lifetime_positions_count"`
	PerGameExposure        []GameExposure  `json:"per_game_exposure"`

	Tier           Tier           `json:"tier"`
	LifetimeMethod LifetimeMethod `json:"lifetime_method"`
	WindowSource   WindowSource   `json:"window_source"`
	Degraded       bool           `json:"degraded"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// Finalize recomputes TotalPnL and normalizes nil slices. It must run last
// on every portfolio handed to callers.
func (p *Portfolio) Finalize() {
	p.TotalPnL = p.TotalUnrealizedPnL.Add(p.TotalRealizedPnL)
	if p.PerGameExposure == nil {
		p.PerGameExposure = []GameExposure{}
	}
	if len(p.Warnings) > 0 {
		p.Degraded = true
	}
}

// Warn records a degradation note.
func (p *Portfolio) Warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// TimeRange bounds which closes are attributed to realized PnL. A zero
// bound is open-ended.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range, bounds inclusive.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// PortfolioRecord is one persisted computation result.
type PortfolioRecord struct {
	ID         string    `json:"id" db:"id"`
	Wallet     string    `json:"wallet" db:"wallet"`
	Scope      string    `json:"scope" db:"scope"`
	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
	Portfolio  Portfolio `json:"portfolio" db:"payload"`
}
