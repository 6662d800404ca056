package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration surface recognized by the execution core
// (spec.md §6). It is loaded once at startup; subsystems receive the typed
// sub-struct relevant to them rather than the whole tree.
type Config struct {
	Service     string `toml:"Service"`
	Environment string `toml:"Environment"`

	Chains       []ChainConfig        `toml:"Chains"`
	Consumer     ConsumerConfig       `toml:"Consumer"`
	Breaker      BreakerConfig        `toml:"Breaker"`
	Simulation   SimulationConfig     `toml:"Simulation"`
	Solana       SolanaStrategyConfig `toml:"Solana"`
	Filler       FillerStrategyConfig `toml:"Filler"`
	SwapStep     SwapStepConfig       `toml:"SwapStep"`
	Orchestrator OrchestratorConfig   `toml:"Orchestrator"`
	HTTP         HTTPConfig           `toml:"HTTP"`

	Env Env `toml:"-"`
}

// Load reads the configuration from path, writing a default file the first
// time it's called against a path that doesn't exist yet, mirroring the
// teacher's create-default-on-first-run behavior.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		if writeErr := write(path, cfg); writeErr != nil {
			return nil, writeErr
		}
		loadEnv(cfg)
		return cfg, nil
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	loadEnv(cfg)
	return cfg, nil
}

func write(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultConfig() *Config {
	cfg := &Config{
		Service:     "execcore",
		Environment: "development",
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in the defaults named throughout spec.md §4 and §6 for
// any zero-valued field, so a partially-specified TOML file still behaves
// sensibly.
func applyDefaults(cfg *Config) {
	if cfg.Consumer.StreamName == "" {
		cfg.Consumer.StreamName = "arb:opportunities"
	}
	if cfg.Consumer.DLQStreamName == "" {
		cfg.Consumer.DLQStreamName = "arb:dlq"
	}
	if cfg.Consumer.ScanIntervalMs == 0 {
		cfg.Consumer.ScanIntervalMs = 60_000
	}
	if cfg.Consumer.MaxMessagesPerScan == 0 {
		cfg.Consumer.MaxMessagesPerScan = 100
	}
	if cfg.Consumer.MaxMessageAgeMs == 0 {
		cfg.Consumer.MaxMessageAgeMs = 24 * 60 * 60 * 1000
	}
	if cfg.Consumer.MaxStreamLength == 0 {
		cfg.Consumer.MaxStreamLength = 100_000
	}
	if cfg.Consumer.MaxAutoReplaysPerScan == 0 {
		cfg.Consumer.MaxAutoReplaysPerScan = 5
	}
	if cfg.Consumer.ConfidenceThreshold == 0 {
		cfg.Consumer.ConfidenceThreshold = 0.70
	}
	if cfg.Consumer.MinProfitPercentage == 0 {
		cfg.Consumer.MinProfitPercentage = 0.01
	}

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.CooldownPeriodMs == 0 {
		cfg.Breaker.CooldownPeriodMs = 5 * 60 * 1000
	}
	if cfg.Breaker.HalfOpenMaxAttempts == 0 {
		cfg.Breaker.HalfOpenMaxAttempts = 1
	}

	if cfg.Simulation.TimeCriticalThresholdMs == 0 {
		cfg.Simulation.TimeCriticalThresholdMs = 2_000
	}

	if cfg.Solana.MaxPriceDeviationPct == 0 {
		cfg.Solana.MaxPriceDeviationPct = 0.01
	}
	if cfg.Solana.MaxSlippageBps == 0 {
		cfg.Solana.MaxSlippageBps = 50
	}

	if cfg.SwapStep.SlippageBps == 0 {
		cfg.SwapStep.SlippageBps = 50
	}

	if cfg.Orchestrator.MaxInflightExecutions == 0 {
		cfg.Orchestrator.MaxInflightExecutions = 16
	}
	if cfg.Orchestrator.ExecutionTimeoutMs == 0 {
		cfg.Orchestrator.ExecutionTimeoutMs = 30_000
	}

	if cfg.HTTP.ListenAddress == "" {
		cfg.HTTP.ListenAddress = ":8090"
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].GasSpikeMultiplier == 0 {
			cfg.Chains[i].GasSpikeMultiplier = 3.0
		}
		if cfg.Chains[i].FlashLoanFeeBps == 0 {
			cfg.Chains[i].FlashLoanFeeBps = 9
		}
		cfg.Chains[i].Name = strings.ToLower(strings.TrimSpace(cfg.Chains[i].Name))
	}
}

// loadEnv reads the optional-subsystem flags documented in spec.md §6:
// presence of a managed-simulation key enables that provider, a
// fallback-RPC key enables the second provider, and a feature flag toggles
// distributed commit-reveal storage.
func loadEnv(cfg *Config) {
	cfg.Env.ManagedSimulationAPIKey = os.Getenv("EXECCORE_SIMULATION_API_KEY")
	cfg.Env.FallbackRPCAPIKey = os.Getenv("EXECCORE_FALLBACK_RPC_KEY")
	cfg.Env.DistributedCommitReveal = strings.EqualFold(os.Getenv("EXECCORE_DISTRIBUTED_COMMIT_REVEAL"), "true")
	cfg.Env.RedisURL = os.Getenv("EXECCORE_REDIS_URL")
	cfg.Env.PostgresDSN = os.Getenv("EXECCORE_POSTGRES_DSN")
}
