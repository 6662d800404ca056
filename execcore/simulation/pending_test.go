package simulation

import (
	"math/big"
	"testing"
)

func TestLookupIsOrderIndependent(t *testing.T) {
	s := NewPendingStateSimulator([]Pool{
		{Address: "0xpool", Kind: PoolV2, TokenA: "WETH", TokenB: "USDC"},
	})
	if _, ok := s.Lookup("WETH", "USDC"); !ok {
		t.Fatal("expected lookup in declared order to succeed")
	}
	if _, ok := s.Lookup("USDC", "WETH"); !ok {
		t.Fatal("expected lookup in reverse order to succeed")
	}
	if _, ok := s.Lookup("WETH", "DAI"); ok {
		t.Fatal("expected unconfigured pair to miss")
	}
}

func TestBuildSwapAppliesSlippageToDeclaredMinOut(t *testing.T) {
	s := NewPendingStateSimulator([]Pool{
		{Address: "0xpool", Kind: PoolV3, TokenA: "WETH", TokenB: "USDC", FeeTier: 3000},
	})
	swap, ok := s.BuildSwap("WETH", "USDC", big.NewInt(1000), big.NewInt(2000), 100)
	if !ok {
		t.Fatal("expected pool to be found")
	}
	want := big.NewInt(1980) // 2000 * 9900/10000
	if swap.AmountOutMin.Cmp(want) != 0 {
		t.Fatalf("AmountOutMin = %s, want %s", swap.AmountOutMin, want)
	}
}
