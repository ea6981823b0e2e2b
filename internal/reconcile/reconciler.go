// Package reconcile builds a wallet's portfolio from the venue's
// inconsistent sources.
//
// Tiers are tried in order (positions snapshot, fills ledger, activity
// ledger) and the first complete result wins; otherwise the first degraded
// one. Open and lifetime counts always come from the winning tier. The
// trailing realized window is resolved separately with its own fallbacks.
// Partial data never fails a computation; only invalid input does.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/pnl"
	"github.com/atmx/portfolio-engine/internal/scope"
)

// DefaultWindowDays is the trailing realized-PnL window.
const DefaultWindowDays = 30

var ErrInvalidArgument = errors.New("reconcile: invalid argument")

// Config tunes a Reconciler. Zero values select defaults.
type Config struct {
	WindowDays int
	Now        func() time.Time
	Logger     *slog.Logger
}

// Reconciler computes portfolios. It holds no per-call state and is safe
// for concurrent use.
type Reconciler struct {
	src        Sources
	strategies []strategy
	windowDays int
	now        func() time.Time
	log        *slog.Logger
}

// New creates a reconciler over the given sources.
func New(src Sources, cfg Config) *Reconciler {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{
		src:        src,
		strategies: strategies(),
		windowDays: cfg.WindowDays,
		now:        cfg.Now,
		log:        cfg.Logger.With("component", "reconcile"),
	}
}

// WindowDays returns the configured trailing window length.
func (r *Reconciler) WindowDays() int { return r.windowDays }

// NormalizeWallet lowercases and trims a wallet address.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// ComputePortfolio aggregates the wallet's positions under def. A non-nil
// rng bounds which closes count toward TotalRealizedPnL.
func (r *Reconciler) ComputePortfolio(ctx context.Context, wallet string, def scope.Definition, rng *model.TimeRange) (*model.Portfolio, error) {
	wallet = NormalizeWallet(wallet)
	if wallet == "" {
		return nil, fmt.Errorf("%w: wallet address is required", ErrInvalidArgument)
	}
	if rng != nil && !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		return nil, fmt.Errorf("%w: time range starts after it ends", ErrInvalidArgument)
	}

	start := time.Now()
	now := r.now()
	log := r.log.With("wallet", wallet, "scope", def.Name)

	s := newFetchSet(ctx, wallet, r.src, log)
	s.prefetch()

	p := r.selectTier(s, def, rng)
	p.Wallet = wallet
	p.Scope = def.Name

	window, source, note := r.realizedWindow(s, def, now, r.windowDays)
	p.RealizedPnLWindow = window
	p.WindowDays = r.windowDays
	p.WindowSource = source
	if note != "" {
		p.Warn("%s", note)
	}

	p.Finalize()

	metrics.TierSelected.WithLabelValues(string(p.Tier), strconv.FormatBool(p.Degraded)).Inc()
	metrics.ComputeLatency.WithLabelValues(def.Name).Observe(time.Since(start).Seconds())
	log.Info("portfolio computed",
		"tier", p.Tier,
		"degraded", p.Degraded,
		"open", p.OpenPositionsCount,
		"lifetime", p.LifetimePositionsCount,
		"total_pnl", p.TotalPnL.String(),
	)
	return p, nil
}

// ComputeRealizedPnLWindow returns realized PnL for closes within the last
// days days.
func (r *Reconciler) ComputeRealizedPnLWindow(ctx context.Context, wallet string, def scope.Definition, days int) (decimal.Decimal, error) {
	wallet = NormalizeWallet(wallet)
	if wallet == "" {
		return decimal.Zero, fmt.Errorf("%w: wallet address is required", ErrInvalidArgument)
	}
	if days <= 0 {
		return decimal.Zero, fmt.Errorf("%w: window days must be positive, got %d", ErrInvalidArgument, days)
	}

	log := r.log.With("wallet", wallet, "scope", def.Name)
	s := newFetchSet(ctx, wallet, r.src, log)
	s.prefetch()

	window, source, note := r.realizedWindow(s, def, r.now(), days)
	if note != "" {
		log.Warn("realized window degraded", "source", source, "reason", note)
	}
	return window, nil
}

// selectTier runs strategies in order. The first complete result wins,
// else the first degraded one, else an all-zero portfolio.
func (r *Reconciler) selectTier(s *fetchSet, def scope.Definition, rng *model.TimeRange) *model.Portfolio {
	var fallback *model.Portfolio
	for _, st := range r.strategies {
		p, c := st.ComputeMetrics(s, def, rng)
		s.log.Debug("tier evaluated", "tier", st.Tier(), "completeness", c.String())
		switch c {
		case Complete:
			return p
		case Degraded:
			if fallback == nil {
				fallback = p
			}
		}
	}
	if fallback != nil {
		return fallback
	}
	p := newPortfolio(model.TierNone)
	p.PerGameExposure = []model.GameExposure{}
	return p
}

// realizedWindow sums realized PnL for closes in [now-days, now]. FIFO
// over the fills ledger is preferred; closed-history rows dated inside the
// window are the fallback.
func (r *Reconciler) realizedWindow(s *fetchSet, def scope.Definition, now time.Time, days int) (decimal.Decimal, model.WindowSource, string) {
	window := pnl.Trailing(now, days)

	if fills, err := s.Fills(); err == nil && raw(fills) > 0 {
		records := inScopeTrades(enrich(s, dedupe(fills.Records)), def)
		res := pnl.NewMatcher(s.log).Match(records, window)
		if fills.Truncated {
			return res.Realized, model.WindowFillsFIFO, "fills truncated at hard cap: realized window may miss early lots"
		}
		return res.Realized, model.WindowFillsFIFO, ""
	}

	if closed, err := s.Closed(); err == nil {
		total := decimal.Zero
		for _, snap := range inScopeSnapshots(closed.Records, def) {
			if !snap.ClosedAt.IsZero() && window.Contains(snap.ClosedAt) {
				total = total.Add(snap.RealizedPnL)
			}
		}
		return total, model.WindowClosedHistory, ""
	}

	return decimal.Zero, model.WindowNone, "fills and closed history unavailable: realized window defaults to zero"
}
