package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"nhbchain/execcore/breaker"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/strategy"
	"nhbchain/execcore/types"
)

func TestExecuteSucceedsAndRecordsStats(t *testing.T) {
	stats := &types.Stats{}
	breakers := map[string]*breaker.Breaker{"ethereum": breaker.New(breaker.Config{Enabled: true, FailureThreshold: 3, CooldownPeriod: time.Minute, HalfOpenMaxAttempts: 1}, nil)}
	stub := &stubStrategyAdapter{result: strategy.Result{Strategy: "x"}}
	o := &Orchestrator{
		cfg:      Config{MaxInflightExecutions: 5, ExecutionTimeout: time.Second},
		breakers: breakers,
		stats:    stats,
		inflight: make(map[string]struct{}),
		registry: strategy.NewRegistry(stub, nil, nil, nil, nil),
	}

	opp := &types.Opportunity{ID: "opp-1", BuyChain: "ethereum"}

	res, err := o.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Strategy != "x" {
		t.Fatalf("Strategy = %q", res.Strategy)
	}
	if stats.Succeeded.Load() != 1 {
		t.Fatalf("Succeeded = %d, want 1", stats.Succeeded.Load())
	}
}

type stubStrategyAdapter struct {
	result strategy.Result
	err    error
}

func (s *stubStrategyAdapter) Name() string                               { return "cross-chain" }
func (s *stubStrategyAdapter) Applicable(opp *types.Opportunity) bool     { return true }
func (s *stubStrategyAdapter) Execute(ctx context.Context, opp *types.Opportunity) (strategy.Result, error) {
	return s.result, s.err
}

func TestExecuteRejectsWhenBreakerOpen(t *testing.T) {
	stats := &types.Stats{}
	b := breaker.New(breaker.Config{Enabled: true, FailureThreshold: 1, CooldownPeriod: time.Hour, HalfOpenMaxAttempts: 1}, nil)
	b.ForceOpen()
	o := &Orchestrator{
		cfg:      Config{MaxInflightExecutions: 5, ExecutionTimeout: time.Second},
		breakers: map[string]*breaker.Breaker{"ethereum": b},
		stats:    stats,
		inflight: make(map[string]struct{}),
		registry: strategy.NewRegistry(&stubStrategyAdapter{}, nil, nil, nil, nil),
	}
	_, err := o.Execute(context.Background(), &types.Opportunity{ID: "opp-1", BuyChain: "ethereum"})
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeCircuitOpen {
		t.Fatalf("err = %v, want CodeCircuitOpen", err)
	}
	if stats.CircuitBreakerBlocks.Load() != 1 {
		t.Fatalf("CircuitBreakerBlocks = %d, want 1", stats.CircuitBreakerBlocks.Load())
	}
}

func TestExecuteTimesOutOnSlowStrategy(t *testing.T) {
	stats := &types.Stats{}
	o := &Orchestrator{
		cfg:      Config{MaxInflightExecutions: 5, ExecutionTimeout: 20 * time.Millisecond},
		breakers: map[string]*breaker.Breaker{},
		stats:    stats,
		inflight: make(map[string]struct{}),
		registry: strategy.NewRegistry(&slowStrategy{}, nil, nil, nil, nil),
	}
	_, err := o.Execute(context.Background(), &types.Opportunity{ID: "opp-1", BuyChain: "ethereum"})
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeExecutionTimeout {
		t.Fatalf("err = %v, want CodeExecutionTimeout", err)
	}
	if stats.TimedOut.Load() != 1 {
		t.Fatalf("TimedOut = %d, want 1", stats.TimedOut.Load())
	}
}

type slowStrategy struct{}

func (slowStrategy) Name() string                           { return "cross-chain" }
func (slowStrategy) Applicable(opp *types.Opportunity) bool { return true }
func (slowStrategy) Execute(ctx context.Context, opp *types.Opportunity) (strategy.Result, error) {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return strategy.Result{}, nil
}

func TestExecuteRejectsBeyondMaxInflightAsQueueFull(t *testing.T) {
	stats := &types.Stats{}
	o := &Orchestrator{
		cfg:      Config{MaxInflightExecutions: 1, ExecutionTimeout: time.Second},
		breakers: map[string]*breaker.Breaker{},
		stats:    stats,
		inflight: map[string]struct{}{"opp-already-running": {}},
		registry: strategy.NewRegistry(&stubStrategyAdapter{}, nil, nil, nil, nil),
	}
	_, err := o.Execute(context.Background(), &types.Opportunity{ID: "opp-2", BuyChain: "ethereum"})
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeQueueFull {
		t.Fatalf("err = %v, want CodeQueueFull", err)
	}
	if stats.QueueRejects.Load() != 1 {
		t.Fatalf("QueueRejects = %d, want 1", stats.QueueRejects.Load())
	}
	if stats.LockConflicts.Load() != 0 {
		t.Fatalf("LockConflicts = %d, want 0", stats.LockConflicts.Load())
	}
}

func TestExecuteRejectsDuplicateInflight(t *testing.T) {
	stats := &types.Stats{}
	o := &Orchestrator{
		cfg:      Config{MaxInflightExecutions: 5, ExecutionTimeout: time.Second},
		breakers: map[string]*breaker.Breaker{},
		stats:    stats,
		inflight: map[string]struct{}{"opp-1": {}},
		registry: strategy.NewRegistry(&stubStrategyAdapter{}, nil, nil, nil, nil),
	}
	_, err := o.Execute(context.Background(), &types.Opportunity{ID: "opp-1", BuyChain: "ethereum"})
	var ee *execerr.Error
	if !errors.As(err, &ee) || ee.Code != execerr.CodeLockConflict {
		t.Fatalf("err = %v, want CodeLockConflict", err)
	}
}
