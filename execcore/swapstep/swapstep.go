// Package swapstep builds the two-leg swap path for a single-chain
// opportunity and caches the built path, keyed by (opportunityId, chain,
// slippageBps), behind a bounded TTL/LRU cache (spec.md §4.2).
package swapstep

import (
	"container/list"
	"fmt"
	"math/big"
	"sync"
	"time"

	"nhbchain/execcore/types"
)

// Step is one leg of a built swap path, ready for calldata construction.
type Step struct {
	Router       string
	TokenIn      string
	TokenOut     string
	AmountIn     *big.Int
	AmountOutMin *big.Int
}

// Path is the full two-leg route for an opportunity.
type Path struct {
	Steps []Step
}

// Builder turns an Opportunity plus a slippage tolerance into a Path,
// applying per-step minimum-out math and memoizing results.
type Builder struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
}

type cacheEntry struct {
	key     string
	path    Path
	expires time.Time
}

// NewBuilder constructs a Builder with the given TTL and LRU capacity. A
// capacity <= 0 disables eviction by size (TTL alone bounds it).
func NewBuilder(ttl time.Duration, capacity int) *Builder {
	return &Builder{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func cacheKey(opportunityID, chain string, slippageBps int) string {
	return fmt.Sprintf("%s|%s|%d", opportunityID, chain, slippageBps)
}

// Build returns the cached Path for (opp.ID, chain, slippageBps) if still
// fresh, otherwise constructs a new two-leg path: buyVenue router swaps
// tokenIn->tokenOut, sellVenue router swaps tokenOut->tokenIn, each leg's
// AmountOutMin discounted by slippageBps off its nominal input.
func (b *Builder) Build(opp *types.Opportunity, chain, buyRouter, sellRouter string, slippageBps int) (Path, error) {
	if slippageBps < 0 || slippageBps > 10000 {
		return Path{}, fmt.Errorf("swapstep: slippageBps %d out of range", slippageBps)
	}
	key := cacheKey(opp.ID, chain, slippageBps)

	b.mu.Lock()
	if el, ok := b.entries[key]; ok {
		ce := el.Value.(*cacheEntry)
		if b.now().Before(ce.expires) {
			b.order.MoveToFront(el)
			path := ce.path
			b.mu.Unlock()
			return path, nil
		}
		b.removeLocked(el)
	}
	b.mu.Unlock()

	path, err := build(opp, buyRouter, sellRouter, slippageBps)
	if err != nil {
		return Path{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	el := b.order.PushFront(&cacheEntry{key: key, path: path, expires: b.now().Add(b.ttl)})
	b.entries[key] = el
	b.evictOverCapacityLocked()
	return path, nil
}

func build(opp *types.Opportunity, buyRouter, sellRouter string, slippageBps int) (Path, error) {
	if opp.AmountIn == nil || opp.AmountIn.Sign() <= 0 {
		return Path{}, fmt.Errorf("swapstep: amountIn must be positive")
	}
	firstOutMin := minOut(opp.AmountIn, slippageBps)
	secondOutMin := minOut(firstOutMin, slippageBps)
	return Path{Steps: []Step{
		{
			Router:       buyRouter,
			TokenIn:      opp.TokenIn,
			TokenOut:     opp.TokenOut,
			AmountIn:     new(big.Int).Set(opp.AmountIn),
			AmountOutMin: firstOutMin,
		},
		{
			Router:       sellRouter,
			TokenIn:      opp.TokenOut,
			TokenOut:     opp.TokenIn,
			AmountIn:     new(big.Int).Set(firstOutMin),
			AmountOutMin: secondOutMin,
		},
	}}, nil
}

// minOut applies a basis-points slippage discount: amount * (10000 -
// slippageBps) / 10000.
func minOut(amount *big.Int, slippageBps int) *big.Int {
	factor := big.NewInt(10000 - int64(slippageBps))
	out := new(big.Int).Mul(amount, factor)
	return out.Quo(out, big.NewInt(10000))
}

func (b *Builder) evictOverCapacityLocked() {
	if b.capacity <= 0 {
		return
	}
	for b.order.Len() > b.capacity {
		oldest := b.order.Back()
		if oldest == nil {
			return
		}
		b.removeLocked(oldest)
	}
}

func (b *Builder) removeLocked(el *list.Element) {
	ce := el.Value.(*cacheEntry)
	delete(b.entries, ce.key)
	b.order.Remove(el)
}

// Len reports the current cache size, for tests and metrics.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}
