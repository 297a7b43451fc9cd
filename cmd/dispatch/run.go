package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/config"
	"github.com/ShayCichocki/dispatch/internal/metrics"
	"github.com/ShayCichocki/dispatch/internal/orchestrator"
	"github.com/ShayCichocki/dispatch/internal/signals"
)

var (
	runOutput      string
	runMetricsFile string
	runMaxParallel int
	runMaxCycles   int
)

var runCmd = &cobra.Command{
	Use:   "run <spec.yaml>",
	Short: "Decompose a specification and generate every work order",
	Long: `Run the full pipeline for a technical specification:

  1. Estimate size and decompose into work orders (batched when large)
  2. Validate and repair work order dependencies
  3. Route each work order to a proposer under the daily budget
  4. Generate, retrying up the proposer ladder on failure
  5. Refine each artifact against compiler diagnostics and API contracts

Work orders run in dependency order, in parallel up to --max-parallel.
Spend is reserved in the global budget ledger before every generation call.

Press Ctrl+C or run 'dispatch kill' from the project directory to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpec,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write the run report as JSON to this file")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "Override execution.max_parallel")
	runCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "Override refinement.max_cycles")
}

func runSpec(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in run: %v", r)
		}
	}()

	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runMaxParallel > 0 {
		cfg.Execution.MaxParallel = runMaxParallel
	}
	if runMaxCycles > 0 {
		cfg.Refinement.MaxCycles = runMaxCycles
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	if verbose() {
		fmt.Printf("[DEBUG] Project root: %s\n", root)
		fmt.Printf("[DEBUG] Config: %s\n", config.GetUserConfigPath())
	}

	o, planner, cleanup, err := buildOrchestrator(cfg, root)
	if err != nil {
		return err
	}
	defer cleanup()

	base, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nReceived interrupt, finishing in-flight calls...")
			cancel()
		case <-base.Done():
		}
	}()

	ctx, watcher, err := signals.Watch(base, projectStateDir(root))
	if err != nil {
		return fmt.Errorf("watch kill signal: %w", err)
	}
	defer watcher.Close()

	printTitle("Running " + spec.FeatureName)
	report, runErr := o.Run(ctx, spec)

	if report != nil {
		fmt.Println()
		fmt.Println(renderSummary(report))
		for _, w := range report.Warnings {
			printStatus("⚠", w, colorWarn)
		}
		if report.Validation != nil && !report.Validation.Valid {
			printIssues(report.Validation)
		}
		if runOutput != "" {
			data, err := report.JSON()
			if err != nil {
				return err
			}
			if err := writeFile(runOutput, data); err != nil {
				return err
			}
			printStatus("✓", "Wrote report to "+runOutput, colorOK)
		}
	}

	in, out, cost := planner.Usage()
	printStatus("●", fmt.Sprintf("Planner usage: %d in / %d out, $%.4f", in, out, cost), colorInfo)

	if watcher.Killed() || errors.Is(runErr, signals.ErrKilled) {
		printStatus("✗", "Run stopped by kill signal", colorFail)
	}
	return runErr
}

// buildOrchestrator wires configuration into an orchestrator. Planner calls
// are charged to the same ledger as generation. The returned cleanup closes
// databases, writes metrics and flushes the debug log.
func buildOrchestrator(cfg *config.Config, root string) (*orchestrator.Orchestrator, *orchestrator.BudgetedPlanner, func(), error) {
	router, err := newRouter(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := newClient(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	checker, err := newChecker(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	contracts, err := newContracts(cfg, root)
	if err != nil {
		return nil, nil, nil, err
	}

	ledger, globalDB, err := openLedger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	runDB, err := openRunStore(cfg, root)
	if err != nil {
		globalDB.Close()
		return nil, nil, nil, err
	}

	logger := orchestrator.NopLogger()
	if verbose() {
		logger = orchestrator.NewDebugLoggerForProject(root)
		fmt.Printf("[DEBUG] Debug log: %s\n", orchestrator.DebugLogPath(root))
	}
	m := metrics.New()

	cleanup := func() {
		if verbose() {
			fmt.Printf("[DEBUG] Provider calls: %d\n", client.Tracker().Calls())
		}
		if runMetricsFile != "" {
			if err := m.WriteTextfile(runMetricsFile); err != nil {
				printStatus("⚠", err.Error(), colorWarn)
			}
		}
		runDB.Close()
		globalDB.Close()
		logger.Close()
	}

	planner := orchestrator.NewBudgetedPlanner(client, ledger, plannerProfile(cfg, router))
	o, err := orchestrator.New(orchestrator.RequiredConfig{
		Planner:   planner,
		Generator: client,
		Router:    router,
		Budget:    ledger,
		Checker:   checker,
	},
		orchestrator.WithMaxParallel(cfg.Execution.MaxParallel),
		orchestrator.WithMaxAttempts(cfg.Execution.MaxAttempts),
		orchestrator.WithMaxCycles(cfg.Refinement.MaxCycles),
		orchestrator.WithLowImprovementThreshold(cfg.Refinement.LowImprovementThreshold),
		orchestrator.WithDecomposeOptions(cfg.DecomposeOptions()),
		orchestrator.WithContracts(contracts),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(m),
		orchestrator.WithRunStore(runDB),
		orchestrator.WithEventHandler(printEvent),
	)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return o, planner, cleanup, nil
}
