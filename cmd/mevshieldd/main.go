// Command mevshieldd runs one chain's MEV Shield Core Orchestrator: an
// encrypted mempool, fair-ordering engine, MEV detection, builder
// coordinator, and redistribution ledger, ticking one slot at a time.
//
// Usage:
//
//	mevshieldd [flags]
//
// Flags:
//
//	--datadir            Data directory path (default: ~/.mevshield)
//	--config             Path to a TOML-like config file
//	--chainid            Chain identifier this instance serves (default: 1)
//	--threshold.k        Shares required to decrypt (default: 3)
//	--threshold.n        Total validator shares (default: 5)
//	--vdf.iterations     VDF sequential squarings per slot (default: 1<<20)
//	--vdf.security-bits  VDF modulus security bits (default: 128)
//	--slot-seconds       Wall-clock seconds between slots (default: 12)
//	--log-level          Log level: debug, info, warn, error (default: info)
//	--metrics            Enable metrics collection (default: false)
//	--version            Print version and exit
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/mevshield/mevshield/builder"
	"github.com/mevshield/mevshield/config"
	"github.com/mevshield/mevshield/crypto"
	"github.com/mevshield/mevshield/detection"
	"github.com/mevshield/mevshield/log"
	"github.com/mevshield/mevshield/mempool"
	"github.com/mevshield/mevshield/ordering"
	"github.com/mevshield/mevshield/orchestrator"
	"github.com/mevshield/mevshield/redistribution"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}

	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: reading config file: %v\n", err)
			return 1
		}
		fromFile, err := config.Load(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: parsing config file: %v\n", err)
			return 1
		}
		fromFile.ConfigFile = cfg.ConfigFile
		cfg = *fromFile
	}
	config.ApplyEnvironment(&cfg, os.LookupEnv)
	// CLI flags win over the config file and the environment: re-apply them on top.
	if _, exit, code := parseFlagsInto(&cfg, args); exit {
		return code
	}

	logger := log.Default().Module("mevshieldd")
	logger.Info("mevshieldd starting", "version", version, "commit", commit)
	logger.Info("resolved configuration",
		"datadir", cfg.DataDir,
		"chain_id", cfg.ChainID,
		"threshold_k", cfg.K,
		"threshold_n", cfg.N,
		"vdf_iterations", cfg.VDFIterations,
		"slot_seconds", cfg.SlotSeconds,
		"log_level", cfg.LogLevel,
		"metrics", cfg.Metrics,
	)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	if err := cfg.InitDataDir(); err != nil {
		logger.Error("failed to initialize datadir", "error", err)
		return 1
	}

	o, chainCfg, err := buildOrchestrator(cfg)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.SlotSeconds) * time.Second)
	defer ticker.Stop()

	var slot uint64
	logger.Info("entering slot loop", "chain_id", chainCfg.ChainID)
	for {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig.String())
			return 0
		case <-ticker.C:
			slot++
			now := o.Clock.Now()
			outcome, err := o.RunSlot(chainCfg.ChainID, slot, now)
			if err != nil {
				logger.Error("RunSlot failed", "slot", slot, "error", err)
				continue
			}
			logger.Info("slot complete", "slot", slot, "status", outcome.ProposalStatus, "incidents", len(outcome.Incidents))
		}
	}
}

// buildOrchestrator wires the C1–C7 components (threshold scheme, VDF
// evaluator, builder registry, detection engine, redistribution ledger)
// into a single-chain Orchestrator. mevshieldd serves exactly one chain per
// process; a multi-chain deployment runs one process per chain.
func buildOrchestrator(cfg config.Config) (*orchestrator.Orchestrator, mempool.ChainConfig, error) {
	ts, err := crypto.NewThresholdScheme(cfg.K, cfg.N)
	if err != nil {
		return nil, mempool.ChainConfig{}, fmt.Errorf("threshold scheme: %w", err)
	}
	kg, err := ts.KeyGeneration()
	if err != nil {
		return nil, mempool.ChainConfig{}, fmt.Errorf("key generation: %w", err)
	}

	validators := make([]mempool.ValidatorKey, cfg.N)
	for i := 0; i < cfg.N; i++ {
		validators[i] = mempool.ValidatorKey{Index: i + 1}
	}

	chainCfg := mempool.ChainConfig{
		ChainID:       cfg.ChainID,
		K:             cfg.K,
		N:             cfg.N,
		PublicKey:     kg.PublicKey,
		Commitments:   kg.Commitments,
		Validators:    validators,
		GraceWindow:   cfg.GraceWindowSeconds,
		RetryLimit:    cfg.RetryLimit,
		MaxUnlockSkew: cfg.MaxUnlockSkewSeconds,
		HighWatermark: cfg.HighWatermark,
	}

	mp := mempool.New()
	if err := mp.RegisterChain(chainCfg); err != nil {
		return nil, mempool.ChainConfig{}, fmt.Errorf("register chain: %w", err)
	}

	vdfParams := &crypto.VDFParams{T: cfg.VDFIterations, Lambda: cfg.VDFSecurityBits}
	orderingEngine := ordering.NewEngine(crypto.NewWesolowskiVDF(vdfParams))

	builders := builder.NewRegistry()
	ledger := redistribution.NewLedger(redistribution.Policy{
		ReservedForGas:         uint256.NewInt(0),
		RedistributionFraction: cfg.RedistributionFraction,
		WeightGas:              cfg.WeightGas,
		WeightValue:            cfg.WeightValue,
		DustThreshold:          uint256.NewInt(cfg.DustThreshold),
	})

	selection := builder.DefaultSelectionPolicy()
	selection.MinReputation = cfg.MinReputation
	selection.MinStake = cfg.MinStake
	selection.ActiveWindow = cfg.ActiveWindow
	selection.RotationCap = cfg.RotationCap

	reputation := builder.DefaultReputationParams()
	reputation.AlphaAccept = cfg.AlphaAccept
	reputation.BetaAge = cfg.BetaAge
	reputation.GammaReject = cfg.GammaReject
	reputation.Sigma = cfg.Sigma
	reputation.DeltaSlash = cfg.DeltaSlash

	detectionPolicy := detection.DefaultPolicy()
	detectionPolicy.ConfidenceThreshold = cfg.ConfidenceThreshold

	orderingPolicy := ordering.DefaultPolicy(cfg.ChainID)
	orderingPolicy.VDFParams = vdfParams

	o := orchestrator.New(mp, orderingEngine, builders, ledger, orchestrator.SystemClock{}, nil, orchestrator.NoopTelemetry{}, orchestrator.NoopPayer{})
	o.RegisterChain(cfg.ChainID, orchestrator.ChainSetup{
		Ordering:     orderingPolicy,
		Detection:    detection.NewEngine(detectionPolicy),
		Selection:    selection,
		Reputation:   reputation,
		Transport:    orchestrator.InProcessBuilderTransport{},
		EpochSlots:   cfg.EpochSlots,
		SlotDeadline: cfg.SlotSeconds,
	})

	return o, chainCfg, nil
}

// parseFlags parses CLI arguments into a Config. Returns the config, whether
// the caller should exit immediately, and the exit code.
func parseFlags(args []string) (config.Config, bool, int) {
	cfg := config.Default()
	return parseFlagsInto(&cfg, args)
}

func parseFlagsInto(cfg *config.Config, args []string) (config.Config, bool, int) {
	fs := newFlagSet(cfg)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return *cfg, true, 2
	}

	if *showVersion {
		fmt.Printf("mevshieldd %s (commit %s)\n", version, commit)
		return *cfg, true, 0
	}

	return *cfg, false, 0
}
