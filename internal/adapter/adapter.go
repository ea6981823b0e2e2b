// Package adapter normalizes the venue's collections (positions snapshot,
// closed positions, fills ledger, activity ledger) into model records.
//
// Upstream rows are loosely typed: numbers arrive as strings or numbers,
// sides as "BUY"/"SELL" or 0/1, and field names differ between endpoints.
// Each logical field is resolved through an ordered alias list. Rows that
// cannot be normalized are dropped with a warning, never fatal.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/atmx/portfolio-engine/internal/metrics"
	"github.com/atmx/portfolio-engine/internal/venue"
)

// errSkip marks rows that are valid but irrelevant (e.g. a REWARD
// activity row). They are not counted as dropped.
var errSkip = errors.New("adapter: skip")

// Result is one normalized collection.
type Result[T any] struct {
	Records   []T
	Dropped   int  // rows that failed normalization
	Truncated bool // pagination hit its hard cap
}

// Filter carries extra upstream query parameters.
type Filter struct {
	Params url.Values
}

// Options tunes pagination and logging for an adapter.
type Options struct {
	PageSize int
	HardCap  int
	Logger   *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// collection drains one venue endpoint and decodes each row.
type collection[T any] struct {
	source string
	getter venue.Getter
	req    venue.Request
	opts   Options
	log    *slog.Logger
	decode func(doc any) (T, error)
}

func newCollection[T any](source string, g venue.Getter, req venue.Request, opts Options, decode func(any) (T, error)) *collection[T] {
	return &collection[T]{
		source: source,
		getter: g,
		req:    req,
		opts:   opts,
		log:    opts.logger().With("component", "adapter", "source", source),
		decode: decode,
	}
}

func (c *collection[T]) fetch(ctx context.Context, wallet string, f Filter) (Result[T], error) {
	req := c.req
	req.Params = url.Values{}
	for k, v := range c.req.Params {
		req.Params[k] = v
	}
	for k, v := range f.Params {
		req.Params[k] = v
	}
	req.Params.Set("user", wallet)

	var res Result[T]
	docs, err := venue.FetchAll(ctx, c.getter, req, c.opts.PageSize, c.opts.HardCap)
	switch {
	case errors.Is(err, venue.ErrHardCapReached):
		res.Truncated = true
		c.log.Warn("pagination hard cap reached, data is partial", "wallet", wallet, "records", len(docs))
	case err != nil:
		return res, fmt.Errorf("adapter: %s: %w", c.source, err)
	}

	res.Records = make([]T, 0, len(docs))
	for i, doc := range docs {
		rec, err := c.decode(doc)
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			res.Dropped++
			metrics.RecordsDropped.WithLabelValues(c.source).Inc()
			c.log.Warn("dropping malformed record", "wallet", wallet, "index", i, "err", err)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}
