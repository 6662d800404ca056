package strategy

import (
	"context"

	"nhbchain/execcore/crosschain"
	"nhbchain/execcore/dex"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/swapstep"
	"nhbchain/execcore/types"
)

// CrossChainStrategy adapts crosschain.Executor to the Strategy interface.
type CrossChainStrategy struct {
	exec        *crosschain.Executor
	dexRegistry *dex.Registry
	builder     *swapstep.Builder
	slippageBps int
}

// NewCrossChainStrategy constructs the cross-chain strategy.
func NewCrossChainStrategy(exec *crosschain.Executor, dexRegistry *dex.Registry, builder *swapstep.Builder, slippageBps int) *CrossChainStrategy {
	return &CrossChainStrategy{exec: exec, dexRegistry: dexRegistry, builder: builder, slippageBps: slippageBps}
}

func (s *CrossChainStrategy) Name() string { return "cross-chain" }

func (s *CrossChainStrategy) Applicable(opp *types.Opportunity) bool {
	return opp.Kind == types.KindCrossChain && opp.BuyChain != opp.SellChain
}

func (s *CrossChainStrategy) Execute(ctx context.Context, opp *types.Opportunity) (Result, error) {
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

	res, err := s.exec.Execute(ctx, opp, path)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Strategy:    s.Name(),
		TxHashes:    []string{res.SourceTxHash, res.DestTxHash},
		RealizedUSD: res.RealizedUSD,
	}, nil
}
