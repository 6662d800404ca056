package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeClient struct {
	url     string
	fail    *atomic.Bool
	closed  atomic.Bool
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	if f.fail != nil && f.fail.Load() {
		return 0, errors.New("rpc unavailable")
	}
	return 1, nil
}

func (f *fakeClient) Close() { f.closed.Store(true) }

func newFakeDialer(failPrimary *atomic.Bool) func(ctx context.Context, url string) (Client, error) {
	return func(ctx context.Context, url string) (Client, error) {
		return &fakeClient{url: url, fail: failPrimary}, nil
	}
}

func TestNewDialsPrimary(t *testing.T) {
	p, err := New(context.Background(), "ethereum", "primary", "fallback", newFakeDialer(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.UsingFallback() {
		t.Fatal("expected primary in use initially")
	}
}

func TestFailoverAfterConsecutiveFailures(t *testing.T) {
	failing := &atomic.Bool{}
	failing.Store(true)
	p, err := New(context.Background(), "ethereum", "primary", "fallback", newFakeDialer(failing))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var reconnected []string
	p.OnReconnect(func(chain string) { reconnected = append(reconnected, chain) })

	ctx := context.Background()
	for i := 0; i < maxConsecutiveFailures; i++ {
		p.checkHealth(ctx)
	}

	if !p.UsingFallback() {
		t.Fatal("expected failover to fallback after max consecutive failures")
	}
	if len(reconnected) != 1 || reconnected[0] != "ethereum" {
		t.Fatalf("reconnect callbacks = %v", reconnected)
	}
}

func TestHealthyCheckResetsFailureCount(t *testing.T) {
	p, err := New(context.Background(), "ethereum", "primary", "fallback", newFakeDialer(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	p.checkHealth(ctx)
	if p.consecutive != 0 {
		t.Fatalf("consecutive = %d, want 0 after healthy check", p.consecutive)
	}
}
