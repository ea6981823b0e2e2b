package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/exposure"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/pnl"
	"github.com/atmx/portfolio-engine/internal/position"
	"github.com/atmx/portfolio-engine/internal/scope"
)

// Completeness grades a tier's result.
type Completeness int

const (
	Unavailable Completeness = iota
	Degraded
	Complete
)

func (c Completeness) String() string {
	switch c {
	case Complete:
		return "complete"
	case Degraded:
		return "degraded"
	default:
		return "unavailable"
	}
}

// strategy computes portfolio metrics from one data source.
type strategy interface {
	Tier() model.Tier
	ComputeMetrics(s *fetchSet, def scope.Definition, rng *model.TimeRange) (*model.Portfolio, Completeness)
}

// strategies in preference order.
func strategies() []strategy {
	return []strategy{snapshotTier{}, ledgerTier{}, activityTier{}}
}

func newPortfolio(tier model.Tier) *model.Portfolio {
	return &model.Portfolio{
		Tier:               tier,
		TotalValue:         decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
		TotalRealizedPnL:   decimal.Zero,
		TotalPnL:           decimal.Zero,
		RealizedPnLWindow:  decimal.Zero,
		LifetimeMethod:     model.LifetimeNone,
		WindowSource:       model.WindowNone,
	}
}

// --- snapshot ---

// snapshotTier trusts the venue's own position view. Once positions
// returned rows the tier always wins; missing or truncated closed history
// only adds warnings.
type snapshotTier struct{}

func (snapshotTier) Tier() model.Tier { return model.TierSnapshot }

func (snapshotTier) ComputeMetrics(s *fetchSet, def scope.Definition, rng *model.TimeRange) (*model.Portfolio, Completeness) {
	res, err := s.Positions()
	if err != nil || raw(res) == 0 {
		return nil, Unavailable
	}

	p := newPortfolio(model.TierSnapshot)
	if res.Truncated {
		p.Warn("positions truncated at hard cap")
	}

	keys := make(map[model.PositionKey]struct{})
	var holdings []exposure.Holding
	for _, snap := range inScopeSnapshots(res.Records, def) {
		if !snap.NetSize.IsPositive() {
			continue
		}
		value := snap.NetSize.Mul(snap.CurPrice)
		p.TotalUnrealizedPnL = p.TotalUnrealizedPnL.Add(snap.CashPnL)
		// Partial realizations on open rows carry no timestamp.
		if rng == nil {
			p.TotalRealizedPnL = p.TotalRealizedPnL.Add(snap.RealizedPnL)
		}
		p.OpenPositionsCount++
		keys[snap.Key()] = struct{}{}
		holdings = append(holdings, exposure.Holding{
			Key:     snap.Key(),
			Market:  snap.Market,
			NetSize: snap.NetSize,
			Value:   value,
		})
	}
	p.PerGameExposure = exposure.ByGame(holdings)
	p.TotalValue = exposure.Total(p.PerGameExposure)

	closed, err := s.Closed()
	if err != nil {
		p.Warn("closed history unavailable: realized pnl and lifetime count cover open positions only")
		p.LifetimePositionsCount = p.OpenPositionsCount
		p.LifetimeMethod = model.LifetimeOpenOnly
		return p, Complete
	}
	if closed.Truncated {
		p.Warn("closed history truncated at hard cap")
	}
	for _, snap := range inScopeSnapshots(closed.Records, def) {
		keys[snap.Key()] = struct{}{}
		if rng != nil && (snap.ClosedAt.IsZero() || !rng.Contains(snap.ClosedAt)) {
			continue
		}
		p.TotalRealizedPnL = p.TotalRealizedPnL.Add(snap.RealizedPnL)
	}
	p.LifetimePositionsCount = max(len(keys), p.OpenPositionsCount)
	p.LifetimeMethod = model.LifetimeSnapshotUnion
	return p, Complete
}

// --- ledger ---

// ledgerTier rebuilds positions from the fills ledger.
type ledgerTier struct{}

func (ledgerTier) Tier() model.Tier { return model.TierLedger }

func (ledgerTier) ComputeMetrics(s *fetchSet, def scope.Definition, rng *model.TimeRange) (*model.Portfolio, Completeness) {
	res, err := s.Fills()
	if err != nil || raw(res) == 0 {
		return nil, Unavailable
	}

	p := newPortfolio(model.TierLedger)
	state := Complete
	if res.Truncated {
		p.Warn("fills truncated at hard cap")
		state = Degraded
	}

	records := inScopeTrades(enrich(s, dedupe(res.Records)), def)
	positions := position.Aggregate(records)

	window := pnl.Window{}
	if rng != nil {
		window = pnl.FromRange(*rng)
	}
	matched := pnl.NewMatcher(s.log).Match(records, window)
	p.TotalRealizedPnL = matched.Realized

	var holdings []exposure.Holding
	approximated := 0
	for _, key := range position.SortedKeys(positions) {
		np := positions[key]
		if position.Lifetime(np) {
			p.LifetimePositionsCount++
		}
		if !position.Open(np) {
			continue
		}
		p.OpenPositionsCount++

		avg := np.AvgCost()
		var value decimal.Decimal
		if mark, ok := markPrice(s, key); ok {
			value = np.NetSize.Mul(mark)
			p.TotalUnrealizedPnL = p.TotalUnrealizedPnL.Add(mark.Sub(avg).Mul(np.NetSize))
		} else {
			value = np.NetSize.Mul(avg)
			approximated++
		}
		holdings = append(holdings, exposure.Holding{
			Key:     key,
			Market:  np.Market,
			NetSize: np.NetSize,
			Value:   value,
		})
	}
	p.PerGameExposure = exposure.ByGame(holdings)
	p.TotalValue = exposure.Total(p.PerGameExposure)
	p.LifetimeMethod = model.LifetimeLedgerMaxNet

	if approximated > 0 {
		p.Warn("mark price unavailable for %d positions: valued at average cost", approximated)
		state = Degraded
	}
	return p, state
}

func markPrice(s *fetchSet, key model.PositionKey) (decimal.Decimal, bool) {
	if s.src.Prices == nil {
		return decimal.Zero, false
	}
	return s.src.Prices.CurrentPrice(s.ctx, key.MarketID, key.OutcomeID)
}

// --- activity ---

// activityTier counts unique positions from the activity ledger. It never
// reports PnL or value.
type activityTier struct{}

func (activityTier) Tier() model.Tier { return model.TierActivity }

func (activityTier) ComputeMetrics(s *fetchSet, def scope.Definition, _ *model.TimeRange) (*model.Portfolio, Completeness) {
	res, err := s.Activity()
	if err != nil || raw(res) == 0 {
		return nil, Unavailable
	}

	p := newPortfolio(model.TierActivity)
	p.Warn("activity ledger supports position counts only: value and pnl not computed")
	if res.Truncated {
		p.Warn("activity truncated at hard cap")
	}

	records := inScopeTrades(enrich(s, dedupe(res.Records)), def)
	positions := position.Aggregate(records)
	for _, key := range position.SortedKeys(positions) {
		np := positions[key]
		if position.Lifetime(np) {
			p.LifetimePositionsCount++
		}
		if position.Open(np) {
			p.OpenPositionsCount++
		}
	}
	p.PerGameExposure = []model.GameExposure{}
	p.LifetimeMethod = model.LifetimeActivityUnique
	return p, Degraded
}

// --- shared record handling ---

func inScopeSnapshots(snaps []model.PositionSnapshot, def scope.Definition) []model.PositionSnapshot {
	out := make([]model.PositionSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if def.Contains(snap.Market) {
			out = append(out, snap)
		}
	}
	return out
}

func inScopeTrades(records []model.TradeRecord, def scope.Definition) []model.TradeRecord {
	out := make([]model.TradeRecord, 0, len(records))
	for _, r := range records {
		if def.Contains(r.Market) {
			out = append(out, r)
		}
	}
	return out
}

// dedupe keeps the first record per source id.
func dedupe(records []model.TradeRecord) []model.TradeRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.TradeRecord, 0, len(records))
	for _, r := range records {
		if r.SourceID != "" {
			if _, ok := seen[r.SourceID]; ok {
				continue
			}
			seen[r.SourceID] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// enrich fills missing market metadata from the snapshot and closed
// catalogs so curated scopes can classify ledger rows that carry ids only.
func enrich(s *fetchSet, records []model.TradeRecord) []model.TradeRecord {
	catalog := catalogOf(s)
	if len(catalog) == 0 {
		return records
	}
	out := make([]model.TradeRecord, len(records))
	for i, r := range records {
		if r.Market.IsZero() {
			r.Market = catalog[r.MarketID]
		}
		out[i] = r
	}
	return out
}

func catalogOf(s *fetchSet) map[string]model.Market {
	catalog := make(map[string]model.Market)
	add := func(snaps []model.PositionSnapshot) {
		for _, snap := range snaps {
			if _, ok := catalog[snap.MarketID]; !ok && !snap.Market.IsZero() {
				catalog[snap.MarketID] = snap.Market
			}
		}
	}
	if res, err := s.Positions(); err == nil {
		add(res.Records)
	}
	if res, err := s.Closed(); err == nil {
		add(res.Records)
	}
	return catalog
}
