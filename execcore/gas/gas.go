// Package gas implements the rolling-baseline gas-spike guard (spec.md
// §4.3): each chain tracks an exponential moving average of recent gas
// prices, and a new reading more than the configured multiplier above that
// baseline is flagged as a spike rather than paid.
package gas

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"
)

// alpha weights the exponential moving average toward recent samples while
// still damping single-block noise.
const alpha = 0.2

// Policy tracks one rolling baseline per chain.
type Policy struct {
	mu        sync.Mutex
	baselines map[string]float64
	spikeMult map[string]float64
	defaultMult float64
}

// NewPolicy constructs a Policy. perChainMultiplier overrides the default
// spike multiplier for specific chains (spec.md's ChainConfig.GasSpikeMultiplier).
func NewPolicy(defaultMultiplier float64, perChainMultiplier map[string]float64) *Policy {
	if defaultMultiplier <= 1 {
		defaultMultiplier = 3.0
	}
	p := &Policy{
		baselines:   make(map[string]float64),
		spikeMult:   make(map[string]float64, len(perChainMultiplier)),
		defaultMult: defaultMultiplier,
	}
	for chain, m := range perChainMultiplier {
		p.spikeMult[chain] = m
	}
	return p
}

// Observe folds a new gas price reading (wei, as *big.Int) into chain's
// rolling baseline and returns true if it exceeds the spike threshold. A
// spike observation still updates the baseline so a sustained new price
// level is adopted rather than permanently flagged.
func (p *Policy) Observe(chain string, gasPriceWei *big.Int) (isSpike bool) {
	if gasPriceWei == nil {
		return false
	}
	// Gas prices are uint256-shaped on every EVM chain; reject anything that
	// doesn't fit rather than silently truncating it into the baseline.
	var u uint256.Int
	if overflow := u.SetFromBig(gasPriceWei); overflow {
		return false
	}
	sample, _ := new(big.Float).SetInt(gasPriceWei).Float64()

	p.mu.Lock()
	defer p.mu.Unlock()

	baseline, seen := p.baselines[chain]
	if !seen || baseline == 0 {
		p.baselines[chain] = sample
		return false
	}

	mult := p.defaultMult
	if m, ok := p.spikeMult[chain]; ok && m > 1 {
		mult = m
	}
	isSpike = sample > baseline*mult

	p.baselines[chain] = alpha*sample + (1-alpha)*baseline
	return isSpike
}

// Baseline returns the current rolling baseline for chain, or 0 if no
// sample has been observed yet.
func (p *Policy) Baseline(chain string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baselines[chain]
}

// Reset clears chain's baseline, called on provider reconnection since a
// stale baseline from before a gap may no longer reflect network
// conditions (spec.md §4.3: "cleared on provider reconnect").
func (p *Policy) Reset(chain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.baselines, chain)
}
