package strategy

import (
	"context"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/simulation"
	"nhbchain/execcore/types"
)

// SimulationStrategy wraps simulation.Service behind the Strategy interface
// so the registry's global simulation-mode override (spec.md §4.6 step 1)
// has something concrete to route every opportunity to: a dry-run eth_call
// that never broadcasts, regardless of the opportunity's own kind.
type SimulationStrategy struct {
	svc       *simulation.Service
	buildCall func(opp *types.Opportunity) (simulation.Call, error)
}

// NewSimulationStrategy constructs the simulation-mode strategy. buildCall
// turns an opportunity into the eth_call this deployment wants to preflight
// (typically the buy leg); it is a dependency seam rather than a fixed
// wire format, since what "the call for this opportunity" means is
// deployment-specific.
func NewSimulationStrategy(svc *simulation.Service, buildCall func(opp *types.Opportunity) (simulation.Call, error)) *SimulationStrategy {
	return &SimulationStrategy{svc: svc, buildCall: buildCall}
}

func (s *SimulationStrategy) Name() string { return "simulation" }

// Applicable always matches: simulation mode is a registry-level override
// that bypasses normal kind-based resolution, not a kind of its own.
func (s *SimulationStrategy) Applicable(opp *types.Opportunity) bool { return true }

func (s *SimulationStrategy) Execute(ctx context.Context, opp *types.Opportunity) (Result, error) {
	call, err := s.buildCall(opp)
	if err != nil {
		return Result{}, execerr.Wrap(execerr.CodeUnexpected, "build simulation call", err)
	}
	if err := s.svc.Simulate(ctx, call); err != nil {
		return Result{}, err
	}
	return Result{Strategy: s.Name(), RealizedUSD: opp.ExpectedProfit}, nil
}
