package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/config"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

var (
	routeComplexity float64
	routeSpend      float64
	routeHardStop   bool
)

var routeCmd = &cobra.Command{
	Use:   "route <description>",
	Short: "Show which proposer a task would be routed to",
	Long: `Run the routing policy for a task description without generating anything.

The complexity score is supplied directly. Current daily spend defaults to
today's committed and pending spend from the budget ledger; pass --spend to
evaluate a hypothetical spend instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().Float64Var(&routeComplexity, "complexity", 0.5, "Task complexity score in [0,1]")
	routeCmd.Flags().Float64Var(&routeSpend, "spend", 0, "Current daily spend in dollars")
	routeCmd.Flags().BoolVar(&routeHardStop, "hard-stop", false, "Force the hard-stop check to pass")
}

func runRoute(cmd *cobra.Command, args []string) error {
	if routeComplexity < 0 || routeComplexity > 1 {
		return fmt.Errorf("complexity %.2f outside [0,1]", routeComplexity)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	router, err := newRouter(cfg)
	if err != nil {
		return err
	}

	spend := routeSpend
	if !cmd.Flags().Changed("spend") {
		ledger, db, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if spend, err = ledger.DailySpend(cmd.Context()); err != nil {
			return fmt.Errorf("read daily spend: %w", err)
		}
	}

	rc := router.BuildContext(&models.WorkOrder{Title: args[0]}, spend)
	rc.ComplexityScore = routeComplexity
	rc.HardStopRequired = rc.HardStopRequired || routeHardStop

	decision, err := router.Route(rc)
	if err != nil {
		return err
	}

	printTitle("Routing decision")
	fmt.Printf("%s $%.2f of $%.2f soft / $%.2f hard\n", labelStyle.Render("Daily spend"), spend, cfg.Budget.DailySoftCap, cfg.Budget.DailyHardCap)
	printDecision(decision)
	return nil
}
