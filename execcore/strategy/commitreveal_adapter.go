package strategy

import (
	"context"
	"math/big"

	"nhbchain/execcore/commitreveal"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
)

// CommitRevealStrategy adapts commitreveal.Service to the Strategy
// interface. The buildParams seam turns an opportunity into the reveal
// parameters the on-chain commitment commits to.
type CommitRevealStrategy struct {
	svc         *commitreveal.Service
	buildParams func(opp *types.Opportunity) (types.RevealParams, error)
}

// NewCommitRevealStrategy constructs the commit-reveal strategy.
func NewCommitRevealStrategy(svc *commitreveal.Service, buildParams func(opp *types.Opportunity) (types.RevealParams, error)) *CommitRevealStrategy {
	return &CommitRevealStrategy{svc: svc, buildParams: buildParams}
}

func (s *CommitRevealStrategy) Name() string { return "commit-reveal" }

func (s *CommitRevealStrategy) Applicable(opp *types.Opportunity) bool {
	return opp.Kind == types.KindCommitReveal
}

func (s *CommitRevealStrategy) Execute(ctx context.Context, opp *types.Opportunity) (Result, error) {
	params, err := s.buildParams(opp)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeUnexpected, "build reveal params", err)
	}
	profit := opp.ExpectedProfit
	txHash, err := s.svc.Execute(ctx, opp.BuyChain, params, &profit)
	if err != nil {
		return Result{}, err
	}
	realized, _ := new(big.Float).SetInt(params.MinProfit).Float64()
	return Result{Strategy: s.Name(), TxHashes: []string{txHash}, RealizedUSD: realized}, nil
}
