package config

import "time"

// ChainConfig describes the RPC and wallet wiring for a single chain the
// executor can submit transactions to.
type ChainConfig struct {
	Name              string `toml:"Name"`
	ChainID           uint64 `toml:"ChainID"`
	RPCURL            string `toml:"RPCURL"`
	FallbackRPCURL    string `toml:"FallbackRPCURL"`
	WalletAccountIdx  uint32 `toml:"WalletAccountIdx"`
	GasSpikeMultiplier float64 `toml:"GasSpikeMultiplier"`
	FlashLoanFeeBps   uint32 `toml:"FlashLoanFeeBps"`
}

// ConsumerConfig controls the opportunity-stream consumer and co-located DLQ
// housekeeping (spec.md §4.1).
type ConsumerConfig struct {
	StreamName            string `toml:"StreamName"`
	DLQStreamName         string `toml:"DLQStreamName"`
	ScanIntervalMs        int64  `toml:"ScanIntervalMs"`
	MaxMessagesPerScan    int64  `toml:"MaxMessagesPerScan"`
	MaxMessageAgeMs       int64  `toml:"MaxMessageAgeMs"`
	MaxStreamLength       int64  `toml:"MaxStreamLength"`
	AutoRecoveryEnabled   bool   `toml:"AutoRecoveryEnabled"`
	MaxAutoReplaysPerScan int    `toml:"MaxAutoReplaysPerScan"`
	ConfidenceThreshold   float64 `toml:"ConfidenceThreshold"`
	MinProfitPercentage   float64 `toml:"MinProfitPercentage"`
}

// BreakerConfig configures the circuit breaker (spec.md §4.3).
type BreakerConfig struct {
	Enabled             bool  `toml:"Enabled"`
	FailureThreshold    int   `toml:"FailureThreshold"`
	CooldownPeriodMs    int64 `toml:"CooldownPeriodMs"`
	HalfOpenMaxAttempts int   `toml:"HalfOpenMaxAttempts"`
}

// SimulationConfig gates the simulation service (spec.md §4.7).
type SimulationConfig struct {
	Enabled                 bool    `toml:"Enabled"`
	MinProfitForSimulation  float64 `toml:"MinProfitForSimulation"`
	TimeCriticalThresholdMs int64   `toml:"TimeCriticalThresholdMs"`
	UseFallback             bool    `toml:"UseFallback"`
}

// SolanaStrategyConfig configures the Solana-bundle strategy (spec.md §4.6).
type SolanaStrategyConfig struct {
	MaxPriceDeviationPct float64 `toml:"MaxPriceDeviationPct"`
	TipLamports          uint64  `toml:"TipLamports"`
	MaxSlippageBps       uint32  `toml:"MaxSlippageBps"`
	MinProfitLamports    uint64  `toml:"MinProfitLamports"`
	TrustedAggregators   []string `toml:"TrustedAggregators"`
}

// FillerStrategyConfig configures the intent-fill (Dutch auction) strategy.
type FillerStrategyConfig struct {
	MinProfitUsd    float64  `toml:"MinProfitUsd"`
	MaxGasPriceGwei float64  `toml:"MaxGasPriceGwei"`
	ReactorWhitelistFile string `toml:"ReactorWhitelistFile"`
}

// SwapStepConfig configures the swap-step builder (spec.md §4.9).
type SwapStepConfig struct {
	SlippageBps int `toml:"SlippageBps"`
}

// OrchestratorConfig bounds concurrency and wall-clock per execution.
type OrchestratorConfig struct {
	MaxInflightExecutions int           `toml:"MaxInflightExecutions"`
	ExecutionTimeoutMs    int64         `toml:"ExecutionTimeoutMs"`
	SimulationModeOnly    bool          `toml:"SimulationModeOnly"`
	ShutdownGracePeriod   time.Duration `toml:"-"`
}

// HTTPConfig configures the operator-facing HTTP surface.
type HTTPConfig struct {
	ListenAddress string `toml:"ListenAddress"`
	JWTSecret     string `toml:"JWTSecret"`
}

// Env captures environment-gated optional subsystems (spec.md §6).
type Env struct {
	ManagedSimulationAPIKey string
	FallbackRPCAPIKey       string
	DistributedCommitReveal bool
	RedisURL                string
	PostgresDSN             string
}
