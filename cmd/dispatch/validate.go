package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/dispatch/internal/decompose"
)

var (
	validateFix    bool
	validateOutput string
)

var validateCmd = &cobra.Command{
	Use:   "validate <workorders.json>",
	Short: "Validate work order dependencies",
	Long: `Check a work order list for missing and invalid dependency references,
dependency cycles and files claimed by more than one work order.

With --fix, missing dependencies are replaced by synthesized prerequisite work
orders and cycles are broken. The repaired list is written back to the input
file, or to --output.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateFix, "fix", false, "Repair auto-fixable issues")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "", "Write repaired work orders here instead of overwriting the input")
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read work orders: %w", err)
	}
	tasks, err := decompose.UnmarshalPositional(data)
	if err != nil {
		return err
	}

	result := decompose.NewValidator().Validate(tasks, validateFix)

	printTitle(fmt.Sprintf("Validated %d work orders", len(tasks)))
	if len(result.Issues) == 0 {
		printStatus("✓", "No issues found", colorOK)
	} else {
		printIssues(result)
	}

	if validateFix && result.FixesApplied {
		out := validateOutput
		if out == "" {
			out = args[0]
		}
		fixed, err := decompose.MarshalPositional(result.Tasks)
		if err != nil {
			return err
		}
		if err := writeFile(out, fixed); err != nil {
			return err
		}
		printStatus("✓", "Wrote repaired work orders to "+out, colorOK)
	}

	if !result.Valid {
		return fmt.Errorf("%d blocking issue(s)", len(result.Errors()))
	}
	return nil
}
