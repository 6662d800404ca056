package types

import "sync/atomic"

// Stats holds the monotonic counters named in spec.md §3, one per decision
// point. All fields are accessed with sync/atomic so the orchestrator,
// consumer, breaker and strategies can update them from concurrent
// goroutines without a shared mutex.
type Stats struct {
	Received                  atomic.Int64
	Rejected                  atomic.Int64
	Attempted                 atomic.Int64
	Succeeded                 atomic.Int64
	Failed                    atomic.Int64
	TimedOut                  atomic.Int64
	Simulated                 atomic.Int64
	SimulationSkipped         atomic.Int64
	SimulationPredictedRevert atomic.Int64
	CircuitBreakerTrips       atomic.Int64
	CircuitBreakerBlocks      atomic.Int64
	RiskCaution               atomic.Int64
	LockConflicts             atomic.Int64
	QueueRejects              atomic.Int64
}

// Snapshot is an immutable copy of Stats for exposition via health/metrics
// endpoints, matching the "accessors return a copy" policy in spec.md §5.
type Snapshot struct {
	Received                  int64
	Rejected                  int64
	Attempted                 int64
	Succeeded                 int64
	Failed                    int64
	TimedOut                  int64
	Simulated                 int64
	SimulationSkipped         int64
	SimulationPredictedRevert int64
	CircuitBreakerTrips       int64
	CircuitBreakerBlocks      int64
	RiskCaution               int64
	LockConflicts             int64
	QueueRejects              int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Received:                  s.Received.Load(),
		Rejected:                  s.Rejected.Load(),
		Attempted:                 s.Attempted.Load(),
		Succeeded:                 s.Succeeded.Load(),
		Failed:                    s.Failed.Load(),
		TimedOut:                  s.TimedOut.Load(),
		Simulated:                 s.Simulated.Load(),
		SimulationSkipped:         s.SimulationSkipped.Load(),
		SimulationPredictedRevert: s.SimulationPredictedRevert.Load(),
		CircuitBreakerTrips:       s.CircuitBreakerTrips.Load(),
		CircuitBreakerBlocks:      s.CircuitBreakerBlocks.Load(),
		RiskCaution:               s.RiskCaution.Load(),
		LockConflicts:             s.LockConflicts.Load(),
		QueueRejects:              s.QueueRejects.Load(),
	}
}
