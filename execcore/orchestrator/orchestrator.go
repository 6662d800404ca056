// Package orchestrator sequences a single opportunity through the breaker
// check, an inflight-id lock, strategy dispatch and breaker bookkeeping
// (spec.md §4.7).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nhbchain/execcore/breaker"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/strategy"
	"nhbchain/execcore/types"
)

// Config bounds how many executions may run concurrently and how long a
// single execution is allowed to run.
type Config struct {
	MaxInflightExecutions int
	ExecutionTimeout      time.Duration
}

// Orchestrator owns the per-chain breakers, the inflight-id lock set and
// dispatches to the strategy registry.
type Orchestrator struct {
	cfg       Config
	breakers  map[string]*breaker.Breaker
	registry  *strategy.Registry
	stats     *types.Stats

	mu       sync.Mutex
	inflight map[string]struct{}
	active   int
}

// New constructs an Orchestrator. breakers is one Breaker per chain,
// typically keyed by chain name.
func New(cfg Config, breakers map[string]*breaker.Breaker, registry *strategy.Registry, stats *types.Stats) *Orchestrator {
	if cfg.MaxInflightExecutions <= 0 {
		cfg.MaxInflightExecutions = 10
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 30 * time.Second
	}
	return &Orchestrator{
		cfg:      cfg,
		breakers: breakers,
		registry: registry,
		stats:    stats,
		inflight: make(map[string]struct{}),
	}
}

// Execute runs opp through the full decision pipeline: breaker check, lock
// acquisition, bounded strategy dispatch, then breaker/stat bookkeeping and
// lock release, always in that order regardless of outcome.
func (o *Orchestrator) Execute(ctx context.Context, opp *types.Opportunity) (strategy.Result, error) {
	o.stats.Attempted.Add(1)

	chainBreaker := o.breakerFor(opp.BuyChain)
	if chainBreaker != nil && !chainBreaker.CanExecute() {
		o.stats.CircuitBreakerBlocks.Add(1)
		return strategy.Result{}, execerr.New(execerr.CodeCircuitOpen, fmt.Sprintf("circuit open for chain %q", opp.BuyChain))
	}

	switch o.acquire(opp.ID) {
	case acquireQueueFull:
		o.stats.QueueRejects.Add(1)
		return strategy.Result{}, execerr.New(execerr.CodeQueueFull, fmt.Sprintf("max inflight executions (%d) reached", o.cfg.MaxInflightExecutions))
	case acquireLockConflict:
		o.stats.LockConflicts.Add(1)
		return strategy.Result{}, execerr.New(execerr.CodeLockConflict, fmt.Sprintf("opportunity %q already in flight", opp.ID))
	}
	defer o.release(opp.ID)

	execCtx, cancel := context.WithTimeout(ctx, o.cfg.ExecutionTimeout)
	defer cancel()

	res, err := o.runBounded(execCtx, opp)

	if chainBreaker != nil {
		if err != nil {
			chainBreaker.RecordFailure()
		} else {
			chainBreaker.RecordSuccess()
		}
	}

	if err != nil {
		if execCtx.Err() != nil {
			o.stats.TimedOut.Add(1)
		} else {
			o.stats.Failed.Add(1)
		}
		return strategy.Result{}, err
	}
	o.stats.Succeeded.Add(1)
	return res, nil
}

// runBounded runs the strategy dispatch on its own goroutine so a strategy
// that ignores ctx cancellation still cannot outlive ExecutionTimeout from
// the caller's perspective. A panic inside the strategy is recovered and
// returned as ERR_UNEXPECTED.
func (o *Orchestrator) runBounded(ctx context.Context, opp *types.Opportunity) (strategy.Result, error) {
	type outcome struct {
		res strategy.Result
		err error
	}
	done := make(chan outcome, 1)

	o.mu.Lock()
	o.active++
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.active--
		o.mu.Unlock()
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: execerr.New(execerr.CodeUnexpected, fmt.Sprintf("strategy panicked: %v", r))}
			}
		}()
		res, err := o.registry.Dispatch(ctx, opp)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return strategy.Result{}, execerr.New(execerr.CodeExecutionTimeout, "execution exceeded configured timeout")
	case out := <-done:
		return out.res, out.err
	}
}

func (o *Orchestrator) breakerFor(chain string) *breaker.Breaker {
	if o.breakers == nil {
		return nil
	}
	return o.breakers[chain]
}

// acquireResult distinguishes why an acquire attempt was denied: the cap
// and the id-lock are separate failure modes with separate error codes
// and counters (spec.md §4.2, §7).
type acquireResult int

const (
	acquireOK acquireResult = iota
	acquireQueueFull
	acquireLockConflict
)

func (o *Orchestrator) acquire(id string) acquireResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.inflight[id]; exists {
		return acquireLockConflict
	}
	if len(o.inflight) >= o.cfg.MaxInflightExecutions {
		return acquireQueueFull
	}
	o.inflight[id] = struct{}{}
	return acquireOK
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}

// ActiveExecutions reports the current number of in-flight strategy
// dispatches, for metrics/health endpoints.
func (o *Orchestrator) ActiveExecutions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}
