package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/config"
	"github.com/ShayCichocki/dispatch/internal/decompose"
	"github.com/ShayCichocki/dispatch/internal/orchestrator"
)

var (
	decomposeOutput string
	decomposeDoc    string
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose <spec.yaml>",
	Short: "Decompose a specification into work orders",
	Long: `Estimate the size of a technical specification and decompose it into a
validated, dependency-ordered list of work orders.

The specification is a YAML (or JSON) document with feature_name, objectives,
constraints and acceptance_criteria. Large specifications are decomposed in
batches. Work orders are written as JSON with positional dependencies.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecompose,
}

func init() {
	decomposeCmd.Flags().StringVarP(&decomposeOutput, "output", "o", "", "Write work orders as JSON to this file")
	decomposeCmd.Flags().StringVar(&decomposeDoc, "doc", "", "Write the markdown decomposition document to this file")
}

func runDecompose(cmd *cobra.Command, args []string) error {
	spec, err := loadSpec(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	router, err := newRouter(cfg)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	logger := orchestrator.NopLogger()
	if verbose() {
		logger = orchestrator.NewDebugLoggerForProject(root)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ledger, db, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	planner := orchestrator.NewBudgetedPlanner(client, ledger, plannerProfile(cfg, router))
	opts := cfg.DecomposeOptions()

	printTitle("Decomposing " + spec.FeatureName)
	est, err := decompose.NewEstimator(planner, opts).Estimate(ctx, spec)
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}
	printStatus("●", fmt.Sprintf("Estimated %d work orders (batched: %v)", est.TotalTasks, est.NeedsBatching), colorInfo)

	d := decompose.New(planner, opts)
	d.SetDebugLog(logger.Log)
	result, err := d.Decompose(ctx, spec, est)
	if err != nil {
		return fmt.Errorf("decompose: %w", err)
	}

	fmt.Println()
	fmt.Println(result.Document)
	printIssues(result.Validation)
	for _, w := range result.Warnings {
		printStatus("⚠", w, colorWarn)
	}

	if decomposeOutput != "" {
		data, err := decompose.MarshalPositional(result.Tasks)
		if err != nil {
			return err
		}
		if err := writeFile(decomposeOutput, data); err != nil {
			return err
		}
		printStatus("✓", "Wrote work orders to "+decomposeOutput, colorOK)
	}
	if decomposeDoc != "" {
		if err := writeFile(decomposeDoc, []byte(result.Document)); err != nil {
			return err
		}
		printStatus("✓", "Wrote decomposition document to "+decomposeDoc, colorOK)
	}

	in, out, cost := planner.Usage()
	printStatus("●", fmt.Sprintf("Planner usage: %d in / %d out, $%.4f", in, out, cost), colorInfo)

	if !result.Validation.Valid {
		return fmt.Errorf("%w: %d unresolved", orchestrator.ErrBlockingIssues, len(result.Validation.Errors()))
	}
	return nil
}
