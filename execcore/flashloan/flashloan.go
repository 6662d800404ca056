// Package flashloan computes the flash-loan fee for a candidate execution
// and recommends flash-loan-funded vs. direct-wallet-funded execution
// (spec.md §4.2): chain-specific basis points with a 9bps fallback when a
// chain has none configured.
package flashloan

import "math/big"

const defaultFeeBps = 9

// Calculator holds the per-chain flash-loan fee schedule.
type Calculator struct {
	feeBpsByChain map[string]int
}

// NewCalculator builds a Calculator from config.ChainConfig.FlashLoanFeeBps
// values, keyed by chain name.
func NewCalculator(feeBpsByChain map[string]int) *Calculator {
	c := &Calculator{feeBpsByChain: make(map[string]int, len(feeBpsByChain))}
	for chain, bps := range feeBpsByChain {
		c.feeBpsByChain[chain] = bps
	}
	return c
}

// FeeBps returns the configured fee for chain, or the 9bps fallback.
func (c *Calculator) FeeBps(chain string) int {
	if bps, ok := c.feeBpsByChain[chain]; ok && bps > 0 {
		return bps
	}
	return defaultFeeBps
}

// Fee computes the flash-loan fee owed on principal for chain.
func (c *Calculator) Fee(chain string, principal *big.Int) *big.Int {
	bps := big.NewInt(int64(c.FeeBps(chain)))
	fee := new(big.Int).Mul(principal, bps)
	return fee.Quo(fee, big.NewInt(10000))
}

// Recommend decides whether the execution should borrow via flash loan or
// use the wallet's own balance directly: a flash loan is recommended only
// if its fee leaves expectedProfit still positive, since a flash loan that
// eats the entire edge provides no benefit over simply not trading.
func (c *Calculator) Recommend(chain string, principal *big.Int, expectedProfitWei *big.Int) (useFlashLoan bool) {
	if principal == nil || principal.Sign() <= 0 {
		return false
	}
	fee := c.Fee(chain, principal)
	if expectedProfitWei == nil {
		return false
	}
	return expectedProfitWei.Cmp(fee) > 0
}
