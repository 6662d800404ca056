// Package strategy implements the per-opportunity-kind execution strategies
// and the dispatch order that picks among them (spec.md §4.6).
package strategy

import (
	"context"
	"fmt"
	"sync/atomic"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
)

// Result is the outcome of a dispatched strategy execution.
type Result struct {
	Strategy    string
	TxHashes    []string
	RealizedUSD float64
}

// Strategy is one executable arbitrage path.
type Strategy interface {
	Name() string
	Applicable(opp *types.Opportunity) bool
	Execute(ctx context.Context, opp *types.Opportunity) (Result, error)
}

// Registry holds the configured strategies and resolves dispatch order.
// Resolution order (spec.md §4.6), first applicable wins:
//  1. simulation-mode override: if enabled, every opportunity routes to the
//     simulation strategy regardless of kind
//  2. cross-chain
//  3. intent-fill / filler
//  4. solana-bundle
//  5. commit-reveal
//  6. default single-chain
type Registry struct {
	crossChain   Strategy
	filler       Strategy
	solana       Strategy
	commitReveal Strategy
	singleChain  Strategy
	simulation   Strategy

	simulationMode atomic.Bool
}

// NewRegistry constructs a Registry. Any strategy left nil is simply never
// matched, which lets a deployment enable only a subset.
func NewRegistry(crossChain, filler, solana, commitReveal, singleChain Strategy) *Registry {
	return &Registry{
		crossChain:   crossChain,
		filler:       filler,
		solana:       solana,
		commitReveal: commitReveal,
		singleChain:  singleChain,
	}
}

// SetSimulationStrategy registers the strategy used while simulation mode is
// enabled. Safe to call once at startup before Dispatch runs concurrently.
func (r *Registry) SetSimulationStrategy(s Strategy) {
	r.simulation = s
}

// SetSimulationMode toggles the global simulation-mode override, typically
// driven by an operator flag or environment switch. Safe for concurrent use
// with Dispatch.
func (r *Registry) SetSimulationMode(enabled bool) {
	r.simulationMode.Store(enabled)
}

// SimulationMode reports whether the simulation-mode override is currently
// enabled.
func (r *Registry) SimulationMode() bool {
	return r.simulationMode.Load()
}

// Dispatch resolves and runs the first applicable strategy for opp in the
// fixed resolution order. When simulation mode is enabled every opportunity
// is routed to the simulation strategy instead, failing closed if none is
// registered rather than silently falling through to live execution.
func (r *Registry) Dispatch(ctx context.Context, opp *types.Opportunity) (Result, error) {
	if r.simulationMode.Load() {
		if r.simulation == nil {
			return Result{}, execerr.New(execerr.CodeNoRoute, "simulation mode enabled but no simulation strategy is registered")
		}
		return r.simulation.Execute(ctx, opp)
	}

	for _, s := range []Strategy{r.crossChain, r.filler, r.solana, r.commitReveal, r.singleChain} {
		if s == nil {
			continue
		}
		if s.Applicable(opp) {
			return s.Execute(ctx, opp)
		}
	}
	return Result{}, execerr.New(execerr.CodeNoRoute, fmt.Sprintf("no strategy applicable to opportunity kind %q", opp.Kind))
}
