package commitreveal

import (
	"math/big"
	"testing"

	"nhbchain/execcore/types"
)

func TestCommitmentHashIsDeterministic(t *testing.T) {
	params := types.RevealParams{
		Asset:    "0x0000000000000000000000000000000000000001",
		AmountIn: big.NewInt(1000),
		Path: []types.SwapLeg{
			{Router: "0x0000000000000000000000000000000000000002", TokenIn: "a", TokenOut: "b", AmountOutMin: big.NewInt(1)},
		},
		MinProfit: big.NewInt(10),
		Deadline:  big.NewInt(99999),
		Salt:      [32]byte{1, 2, 3},
	}
	h1, err := CommitmentHash(params)
	if err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}
	h2, err := CommitmentHash(params)
	if err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected identical hash for identical params")
	}
}

func TestCommitmentHashChangesWithSalt(t *testing.T) {
	base := types.RevealParams{
		Asset:     "0x0000000000000000000000000000000000000001",
		AmountIn:  big.NewInt(1000),
		MinProfit: big.NewInt(10),
		Deadline:  big.NewInt(99999),
		Salt:      [32]byte{1},
	}
	h1, err := CommitmentHash(base)
	if err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}
	base.Salt = [32]byte{2}
	h2, err := CommitmentHash(base)
	if err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected different salt to change the hash")
	}
}
