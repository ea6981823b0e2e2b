package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"
)

// pagedGetter serves pages of the given sizes in order.
type pagedGetter struct {
	sizes   []int
	wrap    bool
	failAt  int // page index that fails; -1 for none
	calls   int
	offsets []string
	params  []url.Values
}

func (g *pagedGetter) Get(_ context.Context, path string, params url.Values) ([]byte, error) {
	idx := g.calls
	g.calls++
	g.offsets = append(g.offsets, params.Get("offset"))
	g.params = append(g.params, params)
	if idx == g.failAt {
		return nil, &UpstreamError{Path: path, Status: 503, Err: ErrUnavailable}
	}
	if idx >= len(g.sizes) {
		return []byte(`[]`), nil
	}
	items := make([]map[string]any, g.sizes[idx])
	for i := range items {
		items[i] = map[string]any{"n": fmt.Sprintf("%d-%d", idx, i)}
	}
	var doc any = items
	if g.wrap {
		doc = map[string]any{"data": items}
	}
	return json.Marshal(doc)
}

func TestFetchAll_StopsOnShortPage(t *testing.T) {
	g := &pagedGetter{sizes: []int{500, 500, 500, 120}, failAt: -1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/trades"}, 500, 100000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1620 {
		t.Errorf("expected 1620 records, got %d", len(docs))
	}
	if g.calls != 4 {
		t.Errorf("expected 4 page requests, got %d", g.calls)
	}
	want := []string{"0", "500", "1000", "1500"}
	for i, off := range want {
		if g.offsets[i] != off {
			t.Errorf("page %d: expected offset %s, got %s", i, off, g.offsets[i])
		}
	}
}

func TestFetchAll_PreservesArrivalOrder(t *testing.T) {
	g := &pagedGetter{sizes: []int{2, 1}, failAt: -1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/trades"}, 2, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, d := range docs {
		got = append(got, d.(map[string]any)["n"].(string))
	}
	want := []string{"0-0", "0-1", "1-0"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestFetchAll_DataWrapper(t *testing.T) {
	g := &pagedGetter{sizes: []int{3}, wrap: true, failAt: -1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/activity"}, 10, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("expected 3 records, got %d", len(docs))
	}
}

func TestFetchAll_FullLastPageNeedsEmptyPage(t *testing.T) {
	g := &pagedGetter{sizes: []int{5, 5}, failAt: -1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/trades"}, 5, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 10 || g.calls != 3 {
		t.Errorf("expected 10 records over 3 calls, got %d over %d", len(docs), g.calls)
	}
}

func TestFetchAll_HardCap(t *testing.T) {
	g := &pagedGetter{sizes: []int{100, 100, 100, 100}, failAt: -1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/trades"}, 100, 250)
	if !errors.Is(err, ErrHardCapReached) {
		t.Fatalf("expected ErrHardCapReached, got %v", err)
	}
	if len(docs) != 250 {
		t.Errorf("expected partial 250 records, got %d", len(docs))
	}
	if g.calls != 3 {
		t.Errorf("expected to stop after 3 pages, got %d", g.calls)
	}
}

func TestFetchAll_ExactlyHardCapIsComplete(t *testing.T) {
	g := &pagedGetter{sizes: []int{5, 5}, failAt: -1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/trades"}, 5, 10)
	if err != nil {
		t.Fatalf("collection of exactly the cap must not be truncated, got %v", err)
	}
	if len(docs) != 10 || g.calls != 3 {
		t.Errorf("expected 10 records over 3 calls, got %d over %d", len(docs), g.calls)
	}
	if g.offsets[2] != "10" || g.params[2].Get("limit") != "1" {
		t.Errorf("expected a single-row check at offset 10, got offset %s limit %s", g.offsets[2], g.params[2].Get("limit"))
	}
}

func TestFetchAll_HardCapOnPageBoundary(t *testing.T) {
	g := &pagedGetter{sizes: []int{5, 5, 5}, failAt: -1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/trades"}, 5, 10)
	if !errors.Is(err, ErrHardCapReached) {
		t.Fatalf("expected ErrHardCapReached, got %v", err)
	}
	if len(docs) != 10 {
		t.Errorf("expected 10 records, got %d", len(docs))
	}
}

func TestFetchAll_PageErrorFails(t *testing.T) {
	g := &pagedGetter{sizes: []int{10, 10, 10}, failAt: 1}

	docs, err := FetchAll(context.Background(), g, Request{Path: "/trades"}, 10, 100)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if docs != nil {
		t.Errorf("expected no records on failure, got %d", len(docs))
	}
}

func TestFetchAll_SortAndParams(t *testing.T) {
	g := &pagedGetter{sizes: []int{0}, failAt: -1}
	req := Request{
		Path:          "/positions",
		Params:        url.Values{"user": {"0xabc"}},
		SortBy:        "CURRENT",
		SortDirection: "DESC",
	}

	if _, err := FetchAll(context.Background(), g, req, 50, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := g.params[0]
	if p.Get("user") != "0xabc" || p.Get("sortBy") != "CURRENT" || p.Get("sortDirection") != "DESC" {
		t.Errorf("unexpected params %v", p)
	}
	if p.Get("limit") != strconv.Itoa(50) {
		t.Errorf("expected limit=50, got %s", p.Get("limit"))
	}
	if req.Params.Get("limit") != "" {
		t.Error("caller params must not be mutated")
	}
}

type notFoundGetter struct{}

func (notFoundGetter) Get(_ context.Context, path string, _ url.Values) ([]byte, error) {
	return nil, &UpstreamError{Path: path, Status: 404, Err: ErrNotFound}
}

func TestFetchAll_NotFoundIsEmpty(t *testing.T) {
	docs, err := FetchAll(context.Background(), notFoundGetter{}, Request{Path: "/closed-positions"}, 10, 100)
	if err != nil {
		t.Fatalf("404 should be an empty collection, got %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no records, got %d", len(docs))
	}
}

type rawGetter string

func (r rawGetter) Get(context.Context, string, url.Values) ([]byte, error) { return []byte(r), nil }

func TestFetchAll_Malformed(t *testing.T) {
	_, err := FetchAll(context.Background(), rawGetter(`"nope"`), Request{Path: "/trades"}, 10, 100)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFetchAll_UsesNumbers(t *testing.T) {
	docs, err := FetchAll(context.Background(), rawGetter(`[{"size": 0.1}]`), Request{Path: "/trades"}, 10, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := docs[0].(map[string]any)["size"].(json.Number)
	if !ok || n.String() != "0.1" {
		t.Errorf("expected json.Number 0.1, got %#v", docs[0])
	}
}
