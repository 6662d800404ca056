// Package crosschain drives the nine-step cross-chain arbitrage pipeline
// (spec.md §4.5): buy on the source chain, bridge the proceeds, and sell on
// the destination chain, with a gas-spike guard and a bridge-timeout path
// that never re-confirms a nonce once the poll gives up.
package crosschain

import (
	"context"
	"math/big"
	"time"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/gas"
	"nhbchain/execcore/nonce"
	"nhbchain/execcore/simulation"
	"nhbchain/execcore/swapstep"
	"nhbchain/execcore/types"
)

const (
	bridgePollInterval = 15 * time.Second
	bridgeMaxWait       = 20 * time.Minute
	maxBridgeFeeShare   = 0.5
)

// BridgeQuote is the bridge's quoted fee and ETA for a transfer.
type BridgeQuote struct {
	FeeUSD           float64
	EstimatedMinutes int
}

// BridgeStatus is the bridge's reported state for a submitted transfer.
type BridgeStatus string

const (
	BridgePending   BridgeStatus = "pending"
	BridgeCompleted BridgeStatus = "completed"
	BridgeFailed    BridgeStatus = "failed"
)

// Bridge is the cross-chain transfer provider.
type Bridge interface {
	Quote(ctx context.Context, sourceChain, destChain, token string, amount *big.Int) (BridgeQuote, error)
	Submit(ctx context.Context, sourceChain, destChain, token string, amount *big.Int) (bridgeTxID string, err error)
	PollStatus(ctx context.Context, bridgeTxID string) (BridgeStatus, *big.Int, error) // status, receivedAmount
}

// ChainExecutor performs the on-chain swap leg on one side of the bridge.
type ChainExecutor interface {
	Swap(ctx context.Context, chain string, step swapstep.Step, n uint64) (txHash string, amountOut *big.Int, err error)
	EnsureApproval(ctx context.Context, chain, token, spender string, n uint64) error
	GasPriceWei(ctx context.Context, chain string) (*big.Int, error)
}

// Executor wires together the shared subsystems a cross-chain execution
// needs.
type Executor struct {
	gasPolicy *gas.Policy
	nonces    *nonce.Manager
	sim       *simulation.Service
	bridge    Bridge
	exec      ChainExecutor
	wallet    map[string]string // chain -> executing wallet address
}

// NewExecutor constructs an Executor.
func NewExecutor(gasPolicy *gas.Policy, nonces *nonce.Manager, sim *simulation.Service, bridge Bridge, exec ChainExecutor, wallet map[string]string) *Executor {
	return &Executor{gasPolicy: gasPolicy, nonces: nonces, sim: sim, bridge: bridge, exec: exec, wallet: wallet}
}

// Result records the outcome of a completed cross-chain execution.
type Result struct {
	SourceTxHash string
	DestTxHash   string
	BridgeTxID   string
	RealizedUSD  float64
}

// Execute runs the full nine-step pipeline for opp.
func (e *Executor) Execute(ctx context.Context, opp *types.Opportunity, path swapstep.Path) (Result, error) {
	// 1. gas-spike guard on the source chain before spending anything.
	sourcePrice, err := e.exec.GasPriceWei(ctx, opp.BuyChain)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeNoProvider, "read source chain gas price", err)
	}
	if e.gasPolicy.Observe(opp.BuyChain, sourcePrice) {
		return Result{}, execerr.New(execerr.CodeGasSpike, "source chain gas price spiked above baseline")
	}

	// 2. bridge quote; reject if the fee would eat half or more of the edge.
	quote, err := e.bridge.Quote(ctx, opp.BuyChain, opp.SellChain, opp.TokenOut, opp.AmountIn)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeNoBridge, "bridge quote failed", err)
	}
	if opp.ExpectedProfit <= 0 || quote.FeeUSD >= opp.ExpectedProfit*maxBridgeFeeShare {
		return Result{}, execerr.New(execerr.CodeLowProfitExec, "bridge fee would consume at least half the expected profit")
	}

	// 3. reserve a nonce on the source chain.
	srcWallet := e.wallet[opp.BuyChain]
	srcNonce := e.nonces.Reserve(opp.BuyChain, srcWallet)

	// 4. quote-liveness check: the opportunity must not have expired while
	// we were quoting the bridge.
	if opp.Expiry != nil && time.Now().After(*opp.Expiry) {
		e.nonces.Fail(opp.BuyChain, srcWallet, srcNonce)
		return Result{}, execerr.New(execerr.CodeQuoteExpired, "opportunity expired before source swap")
	}

	// 5. simulate the destination sell before committing the source swap,
	// since a source swap with no viable destination leg strands funds
	// mid-bridge.
	if e.sim != nil && e.sim.ShouldSimulate(opp.ExpectedProfit, ageMs(opp)) {
		destCall := simulation.Call{Chain: opp.SellChain, To: path.Steps[len(path.Steps)-1].Router}
		if err := e.sim.Simulate(ctx, destCall); err != nil {
			e.nonces.Fail(opp.BuyChain, srcWallet, srcNonce)
			return Result{}, execerr.Wrap(execerr.CodeSimRevertDest, "destination sell simulation failed", err)
		}
	}

	// 6. execute the source swap.
	sourceStep := path.Steps[0]
	srcTx, boughtAmount, err := e.exec.Swap(ctx, opp.BuyChain, sourceStep, srcNonce)
	if err != nil {
		e.nonces.Fail(opp.BuyChain, srcWallet, srcNonce)
		return Result{}, execerr.Wrap(execerr.CodeRevert, "source swap failed", err).WithTx(opp.BuyChain, srcTx)
	}
	e.nonces.Confirm(opp.BuyChain, srcWallet, srcNonce)

	// 7. submit to the bridge and poll until completion or timeout; a
	// bridge timeout never re-confirms the source nonce, since it already
	// confirmed in step 6 and the funds are now in the bridge's custody,
	// not ours to retry.
	bridgeTxID, err := e.bridge.Submit(ctx, opp.BuyChain, opp.SellChain, opp.TokenOut, boughtAmount)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeNoBridge, "bridge submission failed", err).WithTx(opp.BuyChain, srcTx)
	}
	receivedAmount, err := e.pollBridge(ctx, bridgeTxID)
	if err != nil {
		return Result{}, err
	}

	// 8. destination chain: ensure approval, reserve nonce, run the sell.
	destWallet := e.wallet[opp.SellChain]
	if err := e.exec.EnsureApproval(ctx, opp.SellChain, opp.TokenOut, path.Steps[len(path.Steps)-1].Router, 0); err != nil {
		return Result{}, execerr.Wrap(execerr.CodeApproval, "destination approval failed", err).WithTx(opp.SellChain, "").WithBridgeTx(bridgeTxID)
	}
	destPrice, err := e.exec.GasPriceWei(ctx, opp.SellChain)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeNoProvider, "read destination chain gas price", err).WithTx(opp.SellChain, "").WithBridgeTx(bridgeTxID)
	}
	if e.gasPolicy.Observe(opp.SellChain, destPrice) {
		return Result{}, execerr.New(execerr.CodeGasSpike, "destination chain gas price spiked above baseline").WithTx(opp.SellChain, "").WithBridgeTx(bridgeTxID)
	}
	destNonce := e.nonces.Reserve(opp.SellChain, destWallet)
	destStep := path.Steps[len(path.Steps)-1]
	destStep.AmountIn = receivedAmount
	destTx, finalAmount, err := e.exec.Swap(ctx, opp.SellChain, destStep, destNonce)
	if err != nil {
		e.nonces.Fail(opp.SellChain, destWallet, destNonce)
		return Result{}, execerr.Wrap(execerr.CodeRevert, "destination swap failed", err).WithTx(opp.SellChain, destTx).WithBridgeTx(bridgeTxID)
	}
	e.nonces.Confirm(opp.SellChain, destWallet, destNonce)

	// 9. settle: realized profit is whatever came back above the original
	// principal spent on the source chain, in raw token units. This differs
	// from the expected-minus-fees-minus-gas USD figure of the source
	// material: token prices are out of scope here (opaque/per-opportunity),
	// so there is no USD conversion to subtract bridge/gas cost from.
	realized := new(big.Int).Sub(finalAmount, opp.AmountIn)
	realizedFloat, _ := new(big.Float).SetInt(realized).Float64()

	return Result{
		SourceTxHash: srcTx,
		DestTxHash:   destTx,
		BridgeTxID:   bridgeTxID,
		RealizedUSD:  realizedFloat,
	}, nil
}

func (e *Executor) pollBridge(ctx context.Context, bridgeTxID string) (*big.Int, error) {
	deadline := time.Now().Add(bridgeMaxWait)
	ticker := time.NewTicker(bridgePollInterval)
	defer ticker.Stop()

	for {
		status, amount, err := e.bridge.PollStatus(ctx, bridgeTxID)
		if err == nil {
			switch status {
			case BridgeCompleted:
				return amount, nil
			case BridgeFailed:
				return nil, execerr.New(execerr.CodeRevert, "bridge transfer failed")
			}
		}
		if time.Now().After(deadline) {
			return nil, execerr.New(execerr.CodeBridgeTimeout, "bridge transfer did not complete before timeout")
		}
		select {
		case <-ctx.Done():
			return nil, execerr.Wrap(execerr.CodeShutdown, "bridge poll canceled", ctx.Err())
		case <-ticker.C:
		}
	}
}

func ageMs(opp *types.Opportunity) int64 {
	return time.Since(opp.ReceivedAt).Milliseconds()
}
