package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:    srv.URL,
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
	})
}

func TestClientGet_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/positions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user"); got != "0xabc" {
			t.Errorf("expected user=0xabc, got %q", got)
		}
		w.Write([]byte(`[]`))
	}, 0)

	body, err := c.Get(context.Background(), "/positions", url.Values{"user": {"0xabc"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "[]" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestClientGet_SendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret"})
	if _, err := c.Get(context.Background(), "/trades", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientGet_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, 2)

	_, err := c.Get(context.Background(), "/positions", nil)
	if !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusNotFound {
		t.Errorf("expected UpstreamError with status 404, got %v", err)
	}
}

func TestClientGet_Unauthorized(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}, 3)

	_, err := c.Get(context.Background(), "/trades", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("auth failures must not be retried, got %d calls", calls.Load())
	}
}

func TestClientGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	}, 2)

	if _, err := c.Get(context.Background(), "/activity", nil); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClientGet_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 1)

	_, err := c.Get(context.Background(), "/positions", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestBackoff_Capped(t *testing.T) {
	if got := backoff(time.Second, 0); got != time.Second {
		t.Errorf("retry 0: expected 1s, got %s", got)
	}
	if got := backoff(time.Second, 2); got != 4*time.Second {
		t.Errorf("retry 2: expected 4s, got %s", got)
	}
	if got := backoff(time.Second, 10); got != maxDelay {
		t.Errorf("retry 10: expected cap %s, got %s", maxDelay, got)
	}
	if got := backoff(time.Second, 64); got != maxDelay {
		t.Errorf("retry 64: expected cap %s, got %s", maxDelay, got)
	}
}
