// Package simulation pre-flights a built transaction against one or more
// RPC providers via eth_call before it is ever broadcast (spec.md §4.2),
// gated by profit size and time pressure so the extra round-trip is skipped
// when it would cost more latency than it is worth.
package simulation

import (
	"context"
	"fmt"
	"time"

	"nhbchain/execcore/execerr"
)

// Call is one eth_call-shaped simulation request.
type Call struct {
	Chain string
	To    string
	Data  []byte
	From  string
}

// Provider simulates a call without mutating chain state.
type Provider interface {
	Name() string
	SimulateCall(ctx context.Context, call Call) (returnData []byte, reverted bool, revertReason string, err error)
}

// Policy configures when simulation runs at all.
type Policy struct {
	Enabled                 bool
	MinProfitForSimulation  float64
	TimeCriticalThresholdMs int64
	UseFallback             bool
}

// Service fans a simulation call out across configured providers, falling
// back to the next provider only when UseFallback is set and the primary
// errors (as opposed to reverts, which is a conclusive answer).
type Service struct {
	policy    Policy
	providers []Provider
}

// NewService constructs a Service. providers are tried in order.
func NewService(policy Policy, providers []Provider) *Service {
	return &Service{policy: policy, providers: providers}
}

// ShouldSimulate applies the gating policy from spec.md §4.2: simulation is
// skipped below MinProfitForSimulation (not worth the latency) and skipped
// when the opportunity is older than TimeCriticalThresholdMs (the latency
// would forfeit the edge anyway).
func (s *Service) ShouldSimulate(expectedProfitUSD float64, opportunityAgeMs int64) bool {
	if !s.policy.Enabled {
		return false
	}
	if expectedProfitUSD < s.policy.MinProfitForSimulation {
		return false
	}
	if s.policy.TimeCriticalThresholdMs > 0 && opportunityAgeMs > s.policy.TimeCriticalThresholdMs {
		return false
	}
	return true
}

// Simulate runs call against the first healthy provider, trying subsequent
// providers on transport error (not on revert) when UseFallback is set. A
// revert is returned as a *execerr.Error with CodeSimRevert so callers can
// distinguish "transaction would fail" from "we could not find out".
func (s *Service) Simulate(ctx context.Context, call Call) error {
	if len(s.providers) == 0 {
		return execerr.New(execerr.CodeSimError, "no simulation providers configured")
	}
	var lastErr error
	for i, p := range s.providers {
		_, reverted, reason, err := p.SimulateCall(ctx, call)
		if err != nil {
			lastErr = err
			if s.policy.UseFallback && i < len(s.providers)-1 {
				continue
			}
			return execerr.Wrap(execerr.CodeSimError, fmt.Sprintf("simulation via %s failed", p.Name()), err)
		}
		if reverted {
			return execerr.New(execerr.CodeSimRevert, fmt.Sprintf("simulated revert: %s", reason))
		}
		return nil
	}
	return execerr.Wrap(execerr.CodeSimError, "all simulation providers failed", lastErr)
}

// AggregateHealth reports how many of the configured providers answered a
// trivial probe successfully within timeout, for health/metrics endpoints.
func (s *Service) AggregateHealth(ctx context.Context, timeout time.Duration) (healthy, total int) {
	total = len(s.providers)
	for _, p := range s.providers {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		_, _, _, err := p.SimulateCall(pctx, Call{})
		cancel()
		if err == nil {
			healthy++
		}
	}
	return healthy, total
}
