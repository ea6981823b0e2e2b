// Package api exposes portfolio computations over HTTP.
//
// All monetary values use shopspring/decimal and are rendered as JSON
// strings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/reconcile"
	"github.com/atmx/portfolio-engine/internal/scope"
	"github.com/atmx/portfolio-engine/internal/store"
)

// Engine computes portfolios. *reconcile.Reconciler implements it.
type Engine interface {
	ComputePortfolio(ctx context.Context, wallet string, def scope.Definition, rng *model.TimeRange) (*model.Portfolio, error)
	ComputeRealizedPnLWindow(ctx context.Context, wallet string, def scope.Definition, days int) (decimal.Decimal, error)
	WindowDays() int
}

// Service handles portfolio requests. Every computed portfolio is
// appended to the store's history.
type Service struct {
	engine Engine
	scopes *scope.Registry
	store  store.Store
	now    func() time.Time
}

// NewService creates a new portfolio service.
func NewService(engine Engine, scopes *scope.Registry, st store.Store) *Service {
	return &Service{
		engine: engine,
		scopes: scopes,
		store:  st,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers the service's handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/api/v1/scopes", s.ListScopes)
	r.Get("/api/v1/portfolio/{wallet}", s.GetPortfolio)
	r.Get("/api/v1/portfolio/{wallet}/realized", s.GetRealizedWindow)
	r.Get("/api/v1/portfolio/{wallet}/history", s.GetHistory)
	r.Get("/api/v1/portfolio/{wallet}/latest", s.GetLatest)
}

// --- Response types ---

// RealizedWindowResponse is the JSON body for the realized window endpoint.
type RealizedWindowResponse struct {
	Wallet      string          `json:"wallet"`
	Scope       string          `json:"scope"`
	WindowDays  int             `json:"window_days"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// ScopesResponse lists the registered scope names.
type ScopesResponse struct {
	Scopes []string `json:"scopes"`
}

// --- HTTP Handlers ---

// GetPortfolio handles GET /api/v1/portfolio/{wallet}?scope=&from=&to=
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupScope(w, r)
	if !ok {
		return
	}
	rng, err := parseRange(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	p, err := s.engine.ComputePortfolio(ctx, chi.URLParam(r, "wallet"), def, rng)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// History is only kept for unbounded computations; a bounded realized
	// figure is not comparable across records.
	if rng == nil {
		rec := &model.PortfolioRecord{
			ID:         uuid.New().String(),
			Wallet:     p.Wallet,
			Scope:      p.Scope,
			ComputedAt: s.now(),
			Portfolio:  *p,
		}
		if err := s.store.SavePortfolio(ctx, rec); err != nil {
			slog.Warn("portfolio history not saved", "wallet", p.Wallet, "scope", p.Scope, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, p)
}

// GetRealizedWindow handles GET /api/v1/portfolio/{wallet}/realized?scope=&days=
func (s *Service) GetRealizedWindow(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupScope(w, r)
	if !ok {
		return
	}
	days := s.engine.WindowDays()
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, "days must be an integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	wallet := reconcile.NormalizeWallet(chi.URLParam(r, "wallet"))
	realized, err := s.engine.ComputeRealizedPnLWindow(r.Context(), wallet, def, days)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RealizedWindowResponse{
		Wallet:      wallet,
		Scope:       def.Name,
		WindowDays:  days,
		RealizedPnL: realized,
	})
}

// GetHistory handles GET /api/v1/portfolio/{wallet}/history?scope=&limit=
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupScope(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	wallet := reconcile.NormalizeWallet(chi.URLParam(r, "wallet"))
	recs, err := s.store.ListPortfolios(r.Context(), wallet, def.Name, limit)
	if err != nil {
		writeError(w, "failed to load portfolio history", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []model.PortfolioRecord{}
	}

	writeJSON(w, http.StatusOK, recs)
}

// GetLatest handles GET /api/v1/portfolio/{wallet}/latest?scope=
// It serves the last stored computation without calling the venue.
func (s *Service) GetLatest(w http.ResponseWriter, r *http.Request) {
	def, ok := s.lookupScope(w, r)
	if !ok {
		return
	}

	wallet := reconcile.NormalizeWallet(chi.URLParam(r, "wallet"))
	rec, err := s.store.LatestPortfolio(r.Context(), wallet, def.Name)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no portfolio computed yet", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load latest portfolio", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListScopes handles GET /api/v1/scopes
func (s *Service) ListScopes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ScopesResponse{Scopes: s.scopes.Names()})
}

// --- helpers ---

func (s *Service) lookupScope(w http.ResponseWriter, r *http.Request) (scope.Definition, bool) {
	def, err := s.scopes.Lookup(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return scope.Definition{}, false
	}
	return def, true
}

// parseRange reads optional RFC 3339 from/to bounds. No bounds means nil.
func parseRange(r *http.Request) (*model.TimeRange, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return nil, nil
	}
	var rng model.TimeRange
	var err error
	if from != "" {
		if rng.From, err = time.Parse(time.RFC3339, from); err != nil {
			return nil, errors.New("from must be an RFC 3339 timestamp")
		}
	}
	if to != "" {
		if rng.To, err = time.Parse(time.RFC3339, to); err != nil {
			return nil, errors.New("to must be an RFC 3339 timestamp")
		}
	}
	return &rng, nil
}

func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, reconcile.ErrInvalidArgument) {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Error("portfolio computation failed", "err", err)
	writeError(w, "failed to compute portfolio", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
