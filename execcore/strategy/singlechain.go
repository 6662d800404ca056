package strategy

import (
	"context"
	"math/big"

	"nhbchain/execcore/dex"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/gas"
	"nhbchain/execcore/nonce"
	"nhbchain/execcore/simulation"
	"nhbchain/execcore/swapstep"
	"nhbchain/execcore/types"
)

// ChainExecutor performs one on-chain swap leg and reports gas price, used
// by both the single-chain and cross-chain strategies.
type ChainExecutor interface {
	Swap(ctx context.Context, chain string, step swapstep.Step, n uint64) (txHash string, amountOut *big.Int, err error)
	GasPriceWei(ctx context.Context, chain string) (*big.Int, error)
}

// SingleChainStrategy is the fallback strategy matched when nothing more
// specific claims an opportunity: buy and sell on the same chain within one
// block window.
type SingleChainStrategy struct {
	dexRegistry *dex.Registry
	builder     *swapstep.Builder
	gasPolicy   *gas.Policy
	nonces      *nonce.Manager
	sim         *simulation.Service
	exec        ChainExecutor
	wallet      map[string]string
	slippageBps int
}

// NewSingleChainStrategy constructs the default strategy.
func NewSingleChainStrategy(dexRegistry *dex.Registry, builder *swapstep.Builder, gasPolicy *gas.Policy, nonces *nonce.Manager, sim *simulation.Service, exec ChainExecutor, wallet map[string]string, slippageBps int) *SingleChainStrategy {
	return &SingleChainStrategy{
		dexRegistry: dexRegistry, builder: builder, gasPolicy: gasPolicy,
		nonces: nonces, sim: sim, exec: exec, wallet: wallet, slippageBps: slippageBps,
	}
}

func (s *SingleChainStrategy) Name() string { return "single-chain" }

// Applicable matches any single-chain-shaped opportunity; it is intended to
// sit last in the dispatch order, after every more specific strategy has
// had a chance to claim the opportunity.
func (s *SingleChainStrategy) Applicable(opp *types.Opportunity) bool {
	return opp.Kind == types.KindSingleChain || (opp.BuyChain != "" && opp.BuyChain == opp.SellChain)
}

func (s *SingleChainStrategy) Execute(ctx context.Context, opp *types.Opportunity) (Result, error) {
	buyRouter, ok := s.dexRegistry.Router(opp.BuyChain, opp.BuyVenue)
	if !ok {
		return Result{}, execerr.New(execerr.CodeNoRoute, "no router configured for buy venue")
	}
	sellRouter, ok := s.dexRegistry.Router(opp.SellChain, opp.SellVenue)
	if !ok {
		return Result{}, execerr.New(execerr.CodeNoRoute, "no router configured for sell venue")
	}

	path, err := s.builder.Build(opp, opp.BuyChain, buyRouter, sellRouter, s.slippageBps)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeUnexpected, "build swap path", err)
	}

	price, err := s.exec.GasPriceWei(ctx, opp.BuyChain)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeNoProvider, "read gas price", err)
	}
	if s.gasPolicy.Observe(opp.BuyChain, price) {
		return Result{}, execerr.New(execerr.CodeGasSpike, "gas price spiked above baseline")
	}

	if s.sim != nil && s.sim.ShouldSimulate(opp.ExpectedProfit, 0) {
		if err := s.sim.Simulate(ctx, simulation.Call{Chain: opp.BuyChain, To: path.Steps[0].Router}); err != nil {
			return Result{}, err
		}
	}

	wallet := s.wallet[opp.BuyChain]
	var txHashes []string
	for _, step := range path.Steps {
		n := s.nonces.Reserve(opp.BuyChain, wallet)
		txHash, _, err := s.exec.Swap(ctx, opp.BuyChain, step, n)
		if err != nil {
			s.nonces.Fail(opp.BuyChain, wallet, n)
			return Result{}, execerr.Wrap(execerr.CodeRevert, "swap leg failed", err).WithTx(opp.BuyChain, txHash)
		}
		s.nonces.Confirm(opp.BuyChain, wallet, n)
		txHashes = append(txHashes, txHash)
	}

	return Result{Strategy: s.Name(), TxHashes: txHashes, RealizedUSD: opp.ExpectedProfit}, nil
}
