package strategy

import (
	"context"
	"math/big"
	"testing"

	"nhbchain/execcore/dnsguard"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
)

type fakeSolanaExec struct{ called bool }

func (f *fakeSolanaExec) SubmitBundle(ctx context.Context, opp *types.Opportunity, tipLamports uint64, maxSlippageBps int) (string, error) {
	f.called = true
	return "sig123", nil
}

func TestSolanaRejectsUntrustedHost(t *testing.T) {
	guard := dnsguard.New("", []string{"api.jup.ag"})
	s := NewSolanaStrategy(&fakeSolanaExec{}, guard, nil, 0.05, 1000, 50, 0)
	opp := &types.Opportunity{Kind: types.KindSolanaBundle, BuyVenue: "evil.example.com"}
	if s.Applicable(opp) {
		t.Fatal("expected untrusted aggregator host to be rejected")
	}
}

func TestSolanaExecutesForTrustedHost(t *testing.T) {
	guard := dnsguard.New("", []string{"api.jup.ag"})
	exec := &fakeSolanaExec{}
	s := NewSolanaStrategy(exec, guard, nil, 0.05, 1000, 50, 0)
	opp := &types.Opportunity{Kind: types.KindSolanaBundle, BuyVenue: "api.jup.ag", AmountIn: big.NewInt(1), ExpectedProfit: 10}
	if !s.Applicable(opp) {
		t.Fatal("expected trusted aggregator host to be applicable")
	}
	res, err := s.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !exec.called || res.TxHashes[0] != "sig123" {
		t.Fatalf("res = %+v", res)
	}
}

type fakePriceRef struct{ price float64 }

func (f fakePriceRef) ReferencePrice(ctx context.Context, token string) (float64, error) {
	return f.price, nil
}

func TestSolanaRejectsPriceDeviation(t *testing.T) {
	guard := dnsguard.New("", []string{"api.jup.ag"})
	exec := &fakeSolanaExec{}
	s := NewSolanaStrategy(exec, guard, fakePriceRef{price: 1.0}, 0.01, 1000, 50, 0)
	opp := &types.Opportunity{Kind: types.KindSolanaBundle, BuyVenue: "api.jup.ag", AmountIn: big.NewInt(1), ExpectedProfit: 100}
	_, err := s.Execute(context.Background(), opp)
	var ee *execerr.Error
	if !execerr.As(err, &ee) || ee.Code != execerr.CodePriceDeviation {
		t.Fatalf("err = %v, want CodePriceDeviation", err)
	}
}
