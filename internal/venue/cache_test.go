package venue

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// memCache is an in-process stand-in for Redis.
type memCache struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	sets   int
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (m *memCache) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

// countingGetter returns body or err and counts calls.
type countingGetter struct {
	body  string
	err   error
	calls int
}

func (g *countingGetter) Get(context.Context, string, url.Values) ([]byte, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return []byte(g.body), nil
}

func TestCachedGetter_HitSkipsUpstream(t *testing.T) {
	inner := &countingGetter{body: `[{"id":1}]`}
	cache := newMemCache()
	c := NewCachedGetter(inner, cache, time.Minute)
	params := url.Values{"user": {"0xabc"}}

	for i := 0; i < 3; i++ {
		body, err := c.Get(context.Background(), "/positions", params)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `[{"id":1}]` {
			t.Fatalf("unexpected body %q", body)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected one upstream call, got %d", inner.calls)
	}
	if cache.sets != 1 {
		t.Errorf("expected one cache write, got %d", cache.sets)
	}

	if _, err := c.Get(context.Background(), "/positions", url.Values{"user": {"0xdef"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("different params must miss the cache, got %d upstream calls", inner.calls)
	}
}

func TestCachedGetter_ErrorsAreNotCached(t *testing.T) {
	inner := &countingGetter{err: &UpstreamError{Path: "/positions", Status: 503, Err: ErrUnavailable}}
	cache := newMemCache()
	c := NewCachedGetter(inner, cache, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "/positions", nil); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("expected every failure to go upstream, got %d calls", inner.calls)
	}
	if cache.sets != 0 || len(cache.data) != 0 {
		t.Errorf("failures must not be cached, got %d writes", cache.sets)
	}
}

func TestCachedGetter_CacheReadFailureFallsThrough(t *testing.T) {
	inner := &countingGetter{body: `[]`}
	cache := newMemCache()
	cache.getErr = errors.New("dial tcp: connection refused")
	c := NewCachedGetter(inner, cache, time.Minute)

	body, err := c.Get(context.Background(), "/positions", nil)
	if err != nil {
		t.Fatalf("cache failure must not fail the request: %v", err)
	}
	if string(body) != `[]` || inner.calls != 1 {
		t.Errorf("expected upstream body, got %q after %d calls", body, inner.calls)
	}
}
