// Package provider manages one JSON-RPC connection per configured chain,
// with a health-check loop that fails over to a configured fallback
// endpoint after repeated failures and notifies the rest of the execution
// core so per-chain state tied to connection continuity (gas baselines,
// nonce reservations) gets cleared (spec.md §4.3, §4.9).
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	healthCheckInterval  = 30 * time.Second
	healthCheckTimeout   = 5 * time.Second
	maxConsecutiveFailures = 3
)

// Client is the minimal surface the execution core needs from an RPC
// endpoint, satisfied by *ethclient.Client; defined as an interface so
// tests can substitute a fake without dialing a real node.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// ReconnectFunc is invoked after a provider for chain fails over, letting
// callers reset per-chain nonce/gas state and bump a metric.
type ReconnectFunc func(chain string)

// Provider owns the live *and* fallback endpoint for one chain and runs its
// own health-check loop.
type Provider struct {
	Chain string

	mu            sync.RWMutex
	client        Client
	primaryURL    string
	fallbackURL   string
	dial          func(ctx context.Context, url string) (Client, error)
	usingFallback bool
	consecutive   int

	onReconnect []ReconnectFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Provider and dials the primary endpoint. dial defaults to
// ethclient.DialContext when nil (tests inject a fake).
func New(ctx context.Context, chain, primaryURL, fallbackURL string, dial func(ctx context.Context, url string) (Client, error)) (*Provider, error) {
	if dial == nil {
		dial = dialEthClient
	}
	client, err := dial(ctx, primaryURL)
	if err != nil {
		return nil, fmt.Errorf("provider: dial %s primary: %w", chain, err)
	}
	return &Provider{
		Chain:       chain,
		client:      client,
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		dial:        dial,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

func dialEthClient(ctx context.Context, url string) (Client, error) {
	return ethclient.DialContext(ctx, url)
}

// OnReconnect registers a callback invoked (in registration order) whenever
// this provider fails over between primary and fallback.
func (p *Provider) OnReconnect(fn ReconnectFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReconnect = append(p.onReconnect, fn)
}

// Client returns the currently active RPC client.
func (p *Provider) Client() Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Run starts the health-check loop; it blocks until ctx is canceled or Stop
// is called. Intended to run in its own goroutine per chain.
func (p *Provider) Run(ctx context.Context) {
	defer close(p.doneCh)
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkHealth(ctx)
		}
	}
}

func (p *Provider) checkHealth(ctx context.Context) {
	hctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	_, err := client.BlockNumber(hctx)
	if err == nil {
		p.mu.Lock()
		p.consecutive = 0
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.consecutive++
	shouldFailover := p.consecutive >= maxConsecutiveFailures
	p.mu.Unlock()

	if shouldFailover {
		p.failover(ctx)
	}
}

func (p *Provider) failover(ctx context.Context) {
	p.mu.Lock()
	nextURL := p.fallbackURL
	if p.usingFallback {
		nextURL = p.primaryURL
	}
	if nextURL == "" {
		p.mu.Unlock()
		return
	}
	dial := p.dial
	p.mu.Unlock()

	var newClient Client
	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err := backoff.Retry(func() error {
		c, dialErr := dial(ctx, nextURL)
		if dialErr != nil {
			return dialErr
		}
		newClient = c
		return nil
	}, retry)
	if err != nil {
		return
	}

	p.mu.Lock()
	old := p.client
	p.client = newClient
	p.usingFallback = !p.usingFallback
	p.consecutive = 0
	callbacks := append([]ReconnectFunc(nil), p.onReconnect...)
	p.mu.Unlock()

	old.Close()
	for _, fn := range callbacks {
		fn(p.Chain)
	}
}

// Stop terminates the health-check loop and closes the active client.
func (p *Provider) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
	}
}

// UsingFallback reports whether the provider is currently on its fallback
// endpoint.
func (p *Provider) UsingFallback() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.usingFallback
}
