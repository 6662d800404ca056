package config

import "fmt"

// Validate rejects configuration combinations that would leave the
// execution core in an unsafe or meaningless state. Fatal errors here are
// surfaced during start-up and the service refuses to run (spec.md §7).
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("config: at least one chain must be configured")
	}
	seen := make(map[string]struct{}, len(cfg.Chains))
	for _, c := range cfg.Chains {
		if c.Name == "" {
			return fmt.Errorf("config: chain entry missing Name")
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("config: duplicate chain %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.RPCURL == "" {
			return fmt.Errorf("config: chain %q missing RPCURL", c.Name)
		}
		if c.GasSpikeMultiplier <= 1 {
			return fmt.Errorf("config: chain %q GasSpikeMultiplier must be > 1", c.Name)
		}
	}

	if cfg.Consumer.StreamName == "" || cfg.Consumer.DLQStreamName == "" {
		return fmt.Errorf("config: consumer stream names must not be empty")
	}
	if cfg.Consumer.StreamName == cfg.Consumer.DLQStreamName {
		return fmt.Errorf("config: consumer stream and DLQ stream must differ")
	}
	if cfg.Consumer.ConfidenceThreshold < 0 || cfg.Consumer.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence threshold must be within [0,1]")
	}
	if cfg.Consumer.ScanIntervalMs <= 0 {
		return fmt.Errorf("config: scan interval must be > 0")
	}

	// Breaker invariants per spec.md §4.3: a zero attempt cap would
	// permanently strand the breaker in half-open.
	if cfg.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("config: breaker FailureThreshold must be >= 1")
	}
	if cfg.Breaker.CooldownPeriodMs < 0 {
		return fmt.Errorf("config: breaker CooldownPeriodMs must be >= 0")
	}
	if cfg.Breaker.HalfOpenMaxAttempts < 1 {
		return fmt.Errorf("config: breaker HalfOpenMaxAttempts must be >= 1")
	}

	if cfg.Solana.MaxSlippageBps == 0 || cfg.Solana.MaxSlippageBps > 10_000 {
		return fmt.Errorf("config: solana MaxSlippageBps out of range")
	}

	if cfg.Orchestrator.MaxInflightExecutions <= 0 {
		return fmt.Errorf("config: orchestrator MaxInflightExecutions must be > 0")
	}
	if cfg.Orchestrator.ExecutionTimeoutMs <= 0 {
		return fmt.Errorf("config: orchestrator ExecutionTimeoutMs must be > 0")
	}

	return nil
}
