package refine

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Strategy labels recorded in cycle history.
const (
	StrategyImportsSyntax     = "imports_syntax"
	StrategyTypesDeclarations = "types_declarations"
	StrategyFinalRewrite      = "final_rewrite"
)

// maxPromptDiagnostics caps how many diagnostics are listed in a prompt.
const maxPromptDiagnostics = 40

// StrategyFor returns the strategy label for a cycle.
func StrategyFor(cycle int) string {
	switch {
	case cycle <= 1:
		return StrategyImportsSyntax
	case cycle == 2:
		return StrategyTypesDeclarations
	default:
		return StrategyFinalRewrite
	}
}

// CycleInput is everything a cycle prompt is built from.
type CycleInput struct {
	Cycle       int
	MaxCycles   int
	Task        *models.WorkOrder
	Artifact    string
	Diagnostics []models.Diagnostic
	Violations  []models.BreakingChange
	// PriorImprovement is the previous cycle's improvement rate, negative when
	// there was no previous cycle.
	PriorImprovement float64
}

// BuildCyclePrompt builds the regeneration prompt for one refinement cycle.
func BuildCyclePrompt(in CycleInput) string {
	var sb strings.Builder

	final := in.Cycle >= in.MaxCycles
	fmt.Fprintf(&sb, "## Refinement cycle %d of %d\n\n", in.Cycle, in.MaxCycles)

	if in.Task != nil {
		fmt.Fprintf(&sb, "Task: %s\n", in.Task.Title)
		if in.Task.Description != "" {
			fmt.Fprintf(&sb, "%s\n", in.Task.Description)
		}
		if len(in.Task.AcceptanceCriteria) > 0 {
			sb.WriteString("\nAcceptance criteria:\n")
			for _, c := range in.Task.AcceptanceCriteria {
				fmt.Fprintf(&sb, "- %s\n", c)
			}
		}
		sb.WriteString("\n")
	}

	switch StrategyFor(in.Cycle) {
	case StrategyImportsSyntax:
		sb.WriteString("Focus on imports and syntax first: missing or unused imports, unbalanced braces, ")
		sb.WriteString("malformed statements. Do not restructure working code.\n")
	case StrategyTypesDeclarations:
		if in.PriorImprovement >= 0 {
			fmt.Fprintf(&sb, "The previous cycle resolved %.0f%% of the problems. ", in.PriorImprovement*100)
		}
		sb.WriteString("Now focus on type and declaration correctness: mismatched types, missing fields, ")
		sb.WriteString("undeclared identifiers and wrong signatures.\n")
	default:
		sb.WriteString("This is the final attempt. Rewrite the file rather than patching it. ")
		sb.WriteString("Temporary escape hatches are allowed where a precise fix is not possible ")
		sb.WriteString("(loose casts, explicit any, stubbed bodies), as long as the file compiles.\n")
	}
	if final && StrategyFor(in.Cycle) != StrategyFinalRewrite {
		sb.WriteString("No further cycles follow this one.\n")
	}

	if len(in.Diagnostics) > 0 {
		fmt.Fprintf(&sb, "\n### Compiler diagnostics (%d)\n", len(in.Diagnostics))
		for i, d := range in.Diagnostics {
			if i == maxPromptDiagnostics {
				fmt.Fprintf(&sb, "... and %d more\n", len(in.Diagnostics)-maxPromptDiagnostics)
				break
			}
			fmt.Fprintf(&sb, "- %s\n", d.String())
		}
	}

	if len(in.Violations) > 0 {
		fmt.Fprintf(&sb, "\n### Contract violations (%d)\n", len(in.Violations))
		for _, v := range in.Violations {
			fmt.Fprintf(&sb, "- [%s] %s %s %s: %s\n", v.Severity, v.Type, v.Method, v.Path, v.Description)
		}
	}

	sb.WriteString("\n### Current file\n```\n")
	sb.WriteString(in.Artifact)
	if !strings.HasSuffix(in.Artifact, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")
	sb.WriteString("Respond with the complete corrected file only, in a single code block, with no explanation.\n")

	return sb.String()
}
