package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// DefaultOutputUnits is the output estimate for work orders without a
// context budget.
const DefaultOutputUnits = 4096

// BuildTaskPrompt constructs the generation prompt for a work order.
// failureContext is appended on retries.
func BuildTaskPrompt(task *models.WorkOrder, prerequisites []string, failureContext string) string {
	var sb strings.Builder

	sb.WriteString("You are implementing one work order of a larger feature.\n\n")
	sb.WriteString("Title: ")
	sb.WriteString(task.Title)
	sb.WriteString("\n")

	if task.Description != "" {
		sb.WriteString("\nDescription:\n")
		sb.WriteString(task.Description)
		sb.WriteString("\n")
	}

	if len(task.AcceptanceCriteria) > 0 {
		sb.WriteString("\nAcceptance criteria:\n")
		for _, c := range task.AcceptanceCriteria {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
	}

	if len(task.FilesInScope) > 0 {
		sb.WriteString("\nYou MUST ONLY produce the contents of: ")
		sb.WriteString(fmt.Sprintf("`%s`", task.PrimaryFile()))
		if len(task.FilesInScope) > 1 {
			sb.WriteString(fmt.Sprintf(" (related files in scope: %s)", strings.Join(task.FilesInScope[1:], ", ")))
		}
		sb.WriteString("\n")
	}

	if len(prerequisites) > 0 {
		sb.WriteString("\nAlready implemented by earlier work orders:\n")
		for _, p := range prerequisites {
			sb.WriteString(fmt.Sprintf("- %s\n", p))
		}
	}

	if failureContext != "" {
		sb.WriteString("\n## Previous attempt\n")
		sb.WriteString(failureContext)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRespond with the complete file in a single fenced code block and nothing else.\n")
	return sb.String()
}

// EstimateAttemptCost estimates the dollar cost of one generation call. Input
// units are approximated at four characters per unit; output units come from
// the work order's context budget.
func EstimateAttemptCost(proposer models.ProposerProfile, prompt string, task *models.WorkOrder) float64 {
	out := DefaultOutputUnits
	if task != nil && task.ContextBudget > 0 {
		out = task.ContextBudget
	}
	return proposer.Cost(len(prompt)/4+1, out)
}
