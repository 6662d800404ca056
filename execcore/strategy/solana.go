package strategy

import (
	"context"
	"math"
	"math/big"

	"nhbchain/execcore/dnsguard"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
)

// SolanaExecutor submits a Jito-style bundle for a Solana opportunity.
type SolanaExecutor interface {
	SubmitBundle(ctx context.Context, opp *types.Opportunity, tipLamports uint64, maxSlippageBps int) (txSig string, err error)
}

// PriceReference supplies an independent reference price used to guard
// against a stale or manipulated aggregator quote.
type PriceReference interface {
	ReferencePrice(ctx context.Context, token string) (float64, error)
}

// SolanaStrategy executes solana-bundle opportunities sourced from an
// aggregator, guarded by a DNS/SSRF host check and a price-deviation check
// against an independent reference (spec.md §4.6).
type SolanaStrategy struct {
	exec               SolanaExecutor
	guard              *dnsguard.Guard
	priceRef           PriceReference
	maxDeviationPct    float64
	tipLamports        uint64
	maxSlippageBps     int
	minProfitLamports  int64
}

// NewSolanaStrategy constructs the Solana-bundle strategy.
func NewSolanaStrategy(exec SolanaExecutor, guard *dnsguard.Guard, priceRef PriceReference, maxDeviationPct float64, tipLamports uint64, maxSlippageBps int, minProfitLamports int64) *SolanaStrategy {
	return &SolanaStrategy{
		exec: exec, guard: guard, priceRef: priceRef,
		maxDeviationPct: maxDeviationPct, tipLamports: tipLamports,
		maxSlippageBps: maxSlippageBps, minProfitLamports: minProfitLamports,
	}
}

func (s *SolanaStrategy) Name() string { return "solana-bundle" }

func (s *SolanaStrategy) Applicable(opp *types.Opportunity) bool {
	if opp.Kind != types.KindSolanaBundle {
		return false
	}
	return s.guard.IsAllowedHost(opp.BuyVenue)
}

func (s *SolanaStrategy) Execute(ctx context.Context, opp *types.Opportunity) (Result, error) {
	if !s.guard.IsAllowedHost(opp.BuyVenue) {
		return Result{}, execerr.New(execerr.CodeUntrustedHost, "aggregator host is not on the trusted list")
	}
	if err := s.guard.CheckResolves(ctx, opp.BuyVenue); err != nil {
		return Result{}, execerr.Wrap(execerr.CodeUntrustedHost, "aggregator host failed SSRF guard", err)
	}

	if s.priceRef != nil {
		ref, err := s.priceRef.ReferencePrice(ctx, opp.TokenIn)
		if err == nil && ref > 0 {
			quoted := impliedPrice(opp)
			deviation := math.Abs(quoted-ref) / ref
			if deviation > s.maxDeviationPct {
				return Result{}, execerr.New(execerr.CodePriceDeviation, "aggregator quote deviates from reference price beyond tolerance")
			}
		}
	}

	if int64(opp.ExpectedProfit) < s.minProfitLamports {
		return Result{}, execerr.New(execerr.CodeLowProfitExec, "solana bundle below minimum profit lamports")
	}

	sig, err := s.exec.SubmitBundle(ctx, opp, s.tipLamports, s.maxSlippageBps)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeRevert, "solana bundle submission failed", err).WithTx("solana", sig)
	}
	return Result{Strategy: s.Name(), TxHashes: []string{sig}, RealizedUSD: opp.ExpectedProfit}, nil
}

// impliedPrice derives a rough per-unit price from the opportunity's
// declared amounts, used only for the deviation guard's sanity check.
func impliedPrice(opp *types.Opportunity) float64 {
	if opp.AmountIn == nil || opp.AmountIn.Sign() == 0 {
		return 0
	}
	amt, _ := new(big.Float).SetInt(opp.AmountIn).Float64()
	if amt == 0 {
		return 0
	}
	return opp.ExpectedProfit / amt
}
