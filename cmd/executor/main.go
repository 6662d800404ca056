// Command executor runs the arbitrage execution core: it consumes
// opportunities from a Redis stream, dispatches each through the strategy
// registry under a circuit breaker and inflight lock, records outcomes to
// the audit ledger, and exposes health/metrics/admin endpoints over HTTP.
// Wiring follows services/lendingd/main.go's shape: load config, construct
// every collaborator, serve until a termination signal, shut down with a
// bounded grace period.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nhbchain/config"
	"nhbchain/execcore/breaker"
	"nhbchain/execcore/commitreveal"
	"nhbchain/execcore/consumer"
	"nhbchain/execcore/crosschain"
	"nhbchain/execcore/dex"
	"nhbchain/execcore/dlq"
	"nhbchain/execcore/dnsguard"
	"nhbchain/execcore/execerr"
	"nhbchain/execcore/flashloan"
	"nhbchain/execcore/gas"
	"nhbchain/execcore/httpapi"
	"nhbchain/execcore/ledger"
	"nhbchain/execcore/metrics"
	"nhbchain/execcore/nonce"
	"nhbchain/execcore/orchestrator"
	"nhbchain/execcore/provider"
	"nhbchain/execcore/simulation"
	"nhbchain/execcore/strategy"
	"nhbchain/execcore/stream"
	"nhbchain/execcore/swapstep"
	"nhbchain/execcore/types"
	"nhbchain/observability/logging"
	"nhbchain/observability/otel"
	"nhbchain/storage"
)

func main() {
	// A missing .env is normal in production (secrets come from the real
	// environment); only log it instead of failing startup.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	configPath := os.Getenv("EXECCORE_CONFIG")
	if configPath == "" {
		configPath = "executor.toml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.Setup(cfg.Service, cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := otel.Init(ctx, otel.Config{
		ServiceName: cfg.Service,
		Environment: cfg.Environment,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("telemetry init: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	stats := &types.Stats{}
	reg := metrics.New()
	metrics.RegisterStatsCollector(stats)

	streamClient, err := stream.New(cfg.Env.RedisURL)
	if err != nil {
		log.Fatalf("stream client: %v", err)
	}

	dlqMgr := dlq.NewManager(streamClient, dlq.Config{
		MainStreamName:  cfg.Consumer.StreamName,
		DLQStreamName:   cfg.Consumer.DLQStreamName,
		MaxStreamLength: cfg.Consumer.MaxStreamLength,
	})

	breakers := make(map[string]*breaker.Breaker, len(cfg.Chains))
	providers := make(map[string]*provider.Provider, len(cfg.Chains))
	flashloanFees := make(map[string]int, len(cfg.Chains))
	perChainGasMult := make(map[string]float64, len(cfg.Chains))
	supportedChains := make(map[string]struct{}, len(cfg.Chains))

	for _, chainCfg := range cfg.Chains {
		supportedChains[chainCfg.Name] = struct{}{}
		flashloanFees[chainCfg.Name] = int(chainCfg.FlashLoanFeeBps)
		perChainGasMult[chainCfg.Name] = chainCfg.GasSpikeMultiplier
	}

	gasPolicy := gas.NewPolicy(3.0, perChainGasMult)
	nonceMgr := nonce.NewManager()

	for _, chainCfg := range cfg.Chains {
		chainName := chainCfg.Name
		b := breaker.New(breaker.Config{
			Enabled:             cfg.Breaker.Enabled,
			FailureThreshold:    cfg.Breaker.FailureThreshold,
			CooldownPeriod:      time.Duration(cfg.Breaker.CooldownPeriodMs) * time.Millisecond,
			HalfOpenMaxAttempts: cfg.Breaker.HalfOpenMaxAttempts,
		}, func(from, to breaker.State) {
			reg.SetCircuitState(chainName, string(to))
			logger.Info("breaker state change", "chain", chainName, "from", from, "to", to)
		})
		breakers[chainCfg.Name] = b

		p, err := provider.New(ctx, chainCfg.Name, chainCfg.RPCURL, chainCfg.FallbackRPCURL, nil)
		if err != nil {
			log.Fatalf("provider for chain %s: %v", chainCfg.Name, err)
		}
		p.OnReconnect(func(chain string) {
			gasPolicy.Reset(chain)
			nonceMgr.ResetChain(chain)
			logger.Warn("provider failed over, gas baseline and nonce state reset", "chain", chain)
		})
		providers[chainCfg.Name] = p
		go p.Run(ctx)
		defer p.Stop()
	}

	dexRegistry := dex.New(nil)
	swapBuilder := swapstep.NewBuilder(time.Minute, 256)
	// flashloanFees is consumed by the concrete on-chain executor when it
	// sizes a borrow, not by strategy-level code: the calculator is
	// constructed here and discarded, and nothing in this tree calls its
	// methods.
	_ = flashloan.NewCalculator(flashloanFees)

	// Simulation providers are concrete eth_call clients per chain; none are
	// wired here (no concrete DEX/aggregator/bridge wire format is in
	// scope), so the service runs with Enabled gated entirely by policy and
	// an empty provider list. A deployment that wants pre-flight simulation
	// supplies simulation.Provider implementations here.
	simService := simulation.NewService(simulation.Policy{
		Enabled:                 cfg.Simulation.Enabled,
		MinProfitForSimulation:  cfg.Simulation.MinProfitForSimulation,
		TimeCriticalThresholdMs: cfg.Simulation.TimeCriticalThresholdMs,
		UseFallback:             cfg.Simulation.UseFallback,
	}, nil)

	// Every strategy below is built from its concretely-constructible
	// collaborators (dex registry, swap-step builder, gas policy, nonce
	// manager, simulation service, dns guard, commit-reveal store). The
	// ChainExecutor/Bridge/FillerExecutor/SolanaExecutor/PriceReference/
	// ChainClient/QuoteOracle slots stay nil: those are the concrete
	// on-chain submission, bridge and pricing clients this tree leaves as
	// injection points. A strategy with a nil executor is still dispatched
	// to by the registry if applicable; calling the nil collaborator panics,
	// and the orchestrator recovers that panic as an ERR_UNEXPECTED error.
	singleChain := strategy.NewSingleChainStrategy(dexRegistry, swapBuilder, gasPolicy, nonceMgr, simService, nil, nil, cfg.SwapStep.SlippageBps)

	crossChainExec := crosschain.NewExecutor(gasPolicy, nonceMgr, simService, nil, nil, nil)
	crossChain := strategy.NewCrossChainStrategy(crossChainExec, dexRegistry, swapBuilder, cfg.SwapStep.SlippageBps)

	filler := strategy.NewFillerStrategy(nil, loadReactorWhitelist(cfg.Filler.ReactorWhitelistFile, logger), "", cfg.Filler.MinProfitUsd)

	solanaGuard := dnsguard.New("", cfg.Solana.TrustedAggregators)
	solana := strategy.NewSolanaStrategy(nil, solanaGuard, nil, cfg.Solana.MaxPriceDeviationPct, cfg.Solana.TipLamports, int(cfg.Solana.MaxSlippageBps), int64(cfg.Solana.MinProfitLamports))

	var commitRevealRDB *redis.Client
	if cfg.Env.DistributedCommitReveal && cfg.Env.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Env.RedisURL)
		if err != nil {
			log.Fatalf("commit-reveal redis url: %v", err)
		}
		commitRevealRDB = redis.NewClient(opts)
	}
	commitStore := commitreveal.NewStore(commitRevealRDB, storage.NewMemDB(), 0)
	commitSvc := commitreveal.NewService(nil, commitStore, nil)
	commitReveal := strategy.NewCommitRevealStrategy(commitSvc, func(opp *types.Opportunity) (types.RevealParams, error) {
		return types.RevealParams{}, execerr.New(execerr.CodeUnexpected, "reveal-params builder not configured")
	})

	registry := strategy.NewRegistry(crossChain, filler, solana, commitReveal, singleChain)

	// SimulationModeOnly routes every opportunity to a dry-run eth_call
	// instead of live execution; buildCall turns an opportunity into that
	// call, which is itself a concrete wire-format seam left for a
	// deployment to fill in, same as the nil executors above.
	simStrategy := strategy.NewSimulationStrategy(simService, func(opp *types.Opportunity) (simulation.Call, error) {
		return simulation.Call{}, execerr.New(execerr.CodeUnexpected, "simulation call builder not configured")
	})
	registry.SetSimulationStrategy(simStrategy)
	registry.SetSimulationMode(cfg.Orchestrator.SimulationModeOnly)

	orch := orchestrator.New(orchestrator.Config{
		MaxInflightExecutions: cfg.Orchestrator.MaxInflightExecutions,
		ExecutionTimeout:      time.Duration(cfg.Orchestrator.ExecutionTimeoutMs) * time.Millisecond,
	}, breakers, registry, stats)

	var recorder *ledger.Recorder
	var archiver *ledger.Archiver
	if cfg.Env.PostgresDSN != "" {
		recorder, err = ledger.NewRecorder(cfg.Env.PostgresDSN)
		if err != nil {
			log.Fatalf("ledger recorder: %v", err)
		}
		defer recorder.Close()
		archiver = ledger.NewArchiver(recorder, "./archive")
		go archiver.RunHourly(ctx, func(err error) {
			logger.Error("hourly archive failed", "error", err)
		})
	}

	handler := consumer.Handler(func(ctx context.Context, opp *types.Opportunity) error {
		start := time.Now()
		res, execErr := orch.Execute(ctx, opp)
		reg.ObserveExecution(res.Strategy, outcomeLabel(execErr), time.Since(start).Seconds())
		if recorder != nil {
			if recErr := recorder.Record(ctx, opp, res, execErr); recErr != nil {
				logger.Error("ledger record failed", "opportunity", opp.ID, "error", recErr)
			}
		}
		return execErr
	})

	cons := consumer.New(streamClient, dlqMgr, consumer.Config{
		StreamName:         cfg.Consumer.StreamName,
		ScanInterval:       time.Duration(cfg.Consumer.ScanIntervalMs) * time.Millisecond,
		MaxMessagesPerScan: cfg.Consumer.MaxMessagesPerScan,
		Service:            cfg.Service,
		InstanceID:         hostnameOrDefault(),
	}, consumer.Options{
		ConfidenceThreshold: cfg.Consumer.ConfidenceThreshold,
		MinProfitPercentage: cfg.Consumer.MinProfitPercentage,
		SupportedChains:     supportedChains,
	}, handler, stats, logger)

	cons.Start(ctx)
	defer cons.Stop()

	healthChecks := map[string]httpapi.HealthCheck{
		"stream": func() (bool, string) {
			if _, err := streamClient.XLen(context.Background(), cfg.Consumer.StreamName); err != nil {
				return false, err.Error()
			}
			return true, ""
		},
	}

	apiHandler := httpapi.New(httpapi.Config{
		Breakers:     breakers,
		DLQ:          dlqMgr,
		HealthChecks: healthChecks,
		JWTSecret:    cfg.HTTP.JWTSecret,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTP.ListenAddress,
		Handler: apiHandler,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("executor listening", "addr", cfg.HTTP.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		grace := cfg.Orchestrator.ShutdownGracePeriod
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "succeeded"
	}
	var tagged *execerr.Error
	if execerr.As(err, &tagged) && tagged.Code == execerr.CodeExecutionTimeout {
		return "timed_out"
	}
	return "failed"
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "executor-" + uuid.NewString()
	}
	return h
}

// loadReactorWhitelist reads the YAML list of trusted UniswapX reactor
// addresses the filler strategy is allowed to fill against. A missing or
// empty path disables the filler strategy rather than trusting every
// reactor.
func loadReactorWhitelist(path string, logger *slog.Logger) []string {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("reactor whitelist not loaded, filler strategy will reject every opportunity", "path", path, "error", err)
		return nil
	}
	var whitelist []string
	if err := yaml.Unmarshal(raw, &whitelist); err != nil {
		logger.Warn("reactor whitelist malformed, filler strategy will reject every opportunity", "path", path, "error", err)
		return nil
	}
	return whitelist
}
