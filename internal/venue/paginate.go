package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/atmx/portfolio-engine/internal/metrics"
)

const (
	DefaultPageSize = 500
	DefaultHardCap  = 10000
)

// Request describes one paginated collection.
type Request struct {
	Path          string
	Params        url.Values
	SortBy        string
	SortDirection string // "ASC" or "DESC"
}

// FetchAll drains a limit/offset collection. It stops after a short page
// or once hardCap documents are collected. When the collection holds more
// than hardCap documents, the first hardCap are returned together with
// ErrHardCapReached; a collection of exactly hardCap is complete. Documents
// keep arrival order and are decoded with json.Number for exact decimals.
func FetchAll(ctx context.Context, g Getter, req Request, pageSize, hardCap int) ([]any, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}

	var all []any
	for offset := 0; ; offset += pageSize {
		page, err := fetchPage(ctx, g, req, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(all) > hardCap {
			return capped(req, all[:hardCap])
		}
		if len(page) < pageSize {
			break
		}
		if len(all) == hardCap {
			// A full page landed exactly on the cap; one more row decides.
			next, err := fetchPage(ctx, g, req, 1, hardCap)
			if err != nil {
				return nil, err
			}
			if len(next) > 0 {
				return capped(req, all)
			}
			break
		}
	}
	return all, nil
}

func capped(req Request, docs []any) ([]any, error) {
	metrics.HardCapReached.WithLabelValues(req.Path).Inc()
	return docs, ErrHardCapReached
}

// fetchPage requests one page. A 404 is an empty page.
func fetchPage(ctx context.Context, g Getter, req Request, limit, offset int) ([]any, error) {
	params := url.Values{}
	for k, v := range req.Params {
		params[k] = append([]string(nil), v...)
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if req.SortBy != "" {
		params.Set("sortBy", req.SortBy)
	}
	if req.SortDirection != "" {
		params.Set("sortDirection", req.SortDirection)
	}

	body, err := g.Get(ctx, req.Path, params)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metrics.PagesFetched.WithLabelValues(req.Path).Inc()

	page, err := decodePage(body)
	if err != nil {
		return nil, &UpstreamError{Path: req.Path, Err: ErrMalformed, Cause: err}
	}
	return page, nil
}

// decodePage accepts a bare JSON array or an object wrapping it in "data".
func decodePage(body []byte) ([]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		data, ok := v["data"]
		if !ok || data == nil {
			return nil, nil
		}
		items, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("field data is %T, want array", data)
		}
		return items, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("body is %T, want array or object", doc)
	}
}

// DecodeObject decodes a single JSON object with json.Number values.
func DecodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return obj, nil
}
