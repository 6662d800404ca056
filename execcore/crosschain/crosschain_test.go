package crosschain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/gas"
	"nhbchain/execcore/nonce"
	"nhbchain/execcore/swapstep"
	"nhbchain/execcore/types"
)

type fakeBridge struct {
	quote      BridgeQuote
	quoteErr   error
	submitErr  error
	status     BridgeStatus
	received   *big.Int
}

func (f *fakeBridge) Quote(ctx context.Context, sourceChain, destChain, token string, amount *big.Int) (BridgeQuote, error) {
	return f.quote, f.quoteErr
}

func (f *fakeBridge) Submit(ctx context.Context, sourceChain, destChain, token string, amount *big.Int) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "bridge-tx-1", nil
}

func (f *fakeBridge) PollStatus(ctx context.Context, bridgeTxID string) (BridgeStatus, *big.Int, error) {
	return f.status, f.received, nil
}

type fakeExec struct {
	swapAmountOut *big.Int
	swapErr       error
	gasPrice      *big.Int
}

func (f *fakeExec) Swap(ctx context.Context, chain string, step swapstep.Step, n uint64) (string, *big.Int, error) {
	if f.swapErr != nil {
		return "", nil, f.swapErr
	}
	return "0xswap", f.swapAmountOut, nil
}

func (f *fakeExec) EnsureApproval(ctx context.Context, chain, token, spender string, n uint64) error {
	return nil
}

func (f *fakeExec) GasPriceWei(ctx context.Context, chain string) (*big.Int, error) {
	return f.gasPrice, nil
}

func testOpp() *types.Opportunity {
	return &types.Opportunity{
		ID:             "opp-1",
		Kind:           types.KindCrossChain,
		BuyChain:       "ethereum",
		SellChain:      "polygon",
		TokenIn:        "WETH",
		TokenOut:       "USDC",
		AmountIn:       big.NewInt(1_000_000),
		ExpectedProfit: 100,
		ReceivedAt:     time.Now(),
	}
}

func testPath() swapstep.Path {
	return swapstep.Path{Steps: []swapstep.Step{
		{Router: "0xbuy", TokenIn: "WETH", TokenOut: "USDC", AmountIn: big.NewInt(1_000_000), AmountOutMin: big.NewInt(990_000)},
		{Router: "0xsell", TokenIn: "USDC", TokenOut: "WETH", AmountIn: big.NewInt(990_000), AmountOutMin: big.NewInt(980_000)},
	}}
}

func TestExecuteHappyPath(t *testing.T) {
	bridge := &fakeBridge{quote: BridgeQuote{FeeUSD: 5}, status: BridgeCompleted, received: big.NewInt(990_000)}
	exec := &fakeExec{swapAmountOut: big.NewInt(1_100_000), gasPrice: big.NewInt(10)}
	nonces := nonce.NewManager()
	nonces.Seed("ethereum", "0xwallet1", 0)
	nonces.Seed("polygon", "0xwallet2", 0)
	wallets := map[string]string{"ethereum": "0xwallet1", "polygon": "0xwallet2"}

	ex := NewExecutor(gas.NewPolicy(3.0, nil), nonces, nil, bridge, exec, wallets)
	res, err := ex.Execute(context.Background(), testOpp(), testPath())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.BridgeTxID != "bridge-tx-1" {
		t.Fatalf("BridgeTxID = %q", res.BridgeTxID)
	}
}

func TestExecuteRejectsHighBridgeFee(t *testing.T) {
	bridge := &fakeBridge{quote: BridgeQuote{FeeUSD: 60}} // >= 50% of 100 profit
	exec := &fakeExec{gasPrice: big.NewInt(10)}
	nonces := nonce.NewManager()
	ex := NewExecutor(gas.NewPolicy(3.0, nil), nonces, nil, bridge, exec, map[string]string{})

	_, err := ex.Execute(context.Background(), testOpp(), testPath())
	var ee *execerr.Error
	if !asExecErr(err, &ee) || ee.Code != execerr.CodeLowProfitExec {
		t.Fatalf("err = %v, want CodeLowProfitExec", err)
	}
}

func TestExecuteGasSpikeAbortsBeforeAnySwap(t *testing.T) {
	bridge := &fakeBridge{quote: BridgeQuote{FeeUSD: 5}}
	nonces := nonce.NewManager()
	gp := gas.NewPolicy(3.0, nil)
	gp.Observe("ethereum", big.NewInt(50_000_000_000)) // seed baseline

	exec2 := &fakeExec{gasPrice: big.NewInt(500_000_000_000)} // 10x spike
	ex := NewExecutor(gp, nonces, nil, bridge, exec2, map[string]string{})
	_, err := ex.Execute(context.Background(), testOpp(), testPath())
	var ee *execerr.Error
	if !asExecErr(err, &ee) || ee.Code != execerr.CodeGasSpike {
		t.Fatalf("err = %v, want CodeGasSpike", err)
	}
}

func asExecErr(err error, target **execerr.Error) bool {
	return execerr.As(err, target)
}
