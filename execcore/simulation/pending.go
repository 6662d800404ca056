package simulation

import (
	"math/big"
	"strings"
)

// PoolKind distinguishes the calldata shape a pending-state simulation must
// build.
type PoolKind int

const (
	PoolV2 PoolKind = iota
	PoolV3
)

// Pool describes one liquidity pool the pending-state simulator can route
// a mempool-sourced intent through.
type Pool struct {
	Address  string
	Kind     PoolKind
	TokenA   string
	TokenB   string
	FeeTier  uint32 // V3 only
}

// PendingStateSimulator answers "if this pending mempool transaction lands,
// what pool would it touch and what minimum output should we demand",
// keyed by an unordered token pair so either leg order resolves to the same
// pool in O(1) (spec.md §4.2).
type PendingStateSimulator struct {
	pools map[string]Pool
}

// NewPendingStateSimulator indexes pools by their unordered token pair.
func NewPendingStateSimulator(pools []Pool) *PendingStateSimulator {
	s := &PendingStateSimulator{pools: make(map[string]Pool, len(pools))}
	for _, p := range pools {
		s.pools[pairKey(p.TokenA, p.TokenB)] = p
	}
	return s
}

func pairKey(a, b string) string {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Lookup finds the pool trading tokenIn against tokenOut regardless of
// declared order.
func (s *PendingStateSimulator) Lookup(tokenIn, tokenOut string) (Pool, bool) {
	p, ok := s.pools[pairKey(tokenIn, tokenOut)]
	return p, ok
}

// BuiltSwap is a ready-to-simulate swap call against a specific pool.
type BuiltSwap struct {
	Pool         Pool
	AmountIn     *big.Int
	AmountOutMin *big.Int
}

// BuildSwap resolves the pool for (tokenIn, tokenOut) and computes a
// minimum output discounted by slippageBps off the mempool transaction's
// own declared minimum output, so our simulation is at least as
// conservative as what the pending transaction itself already committed to.
func (s *PendingStateSimulator) BuildSwap(tokenIn, tokenOut string, amountIn, declaredMinOut *big.Int, slippageBps int) (BuiltSwap, bool) {
	pool, ok := s.Lookup(tokenIn, tokenOut)
	if !ok {
		return BuiltSwap{}, false
	}
	minOut := declaredMinOut
	if slippageBps > 0 && declaredMinOut != nil {
		factor := big.NewInt(10000 - int64(slippageBps))
		minOut = new(big.Int).Mul(declaredMinOut, factor)
		minOut = minOut.Quo(minOut, big.NewInt(10000))
	}
	return BuiltSwap{Pool: pool, AmountIn: amountIn, AmountOutMin: minOut}, true
}
