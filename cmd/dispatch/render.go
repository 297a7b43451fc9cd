package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ShayCichocki/dispatch/internal/decompose"
	"github.com/ShayCichocki/dispatch/internal/orchestrator"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

const (
	colorOK   = color.FgGreen
	colorWarn = color.FgYellow
	colorFail = color.FgRed
	colorInfo = color.FgCyan
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(16)
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// printTitle prints a section heading.
func printTitle(title string) {
	fmt.Println(titleStyle.Render(title))
}

// statusSymbol maps a task status to a symbol and color.
func statusSymbol(s models.TaskStatus) (string, color.Attribute) {
	switch s {
	case models.TaskStatusSucceeded:
		return "✓", colorOK
	case models.TaskStatusPartial:
		return "◐", colorWarn
	case models.TaskStatusSkipped, models.TaskStatusCancelled:
		return "-", colorInfo
	default:
		return "✗", colorFail
	}
}

// printEvent renders one orchestrator event as a status line.
func printEvent(e orchestrator.Event) {
	switch e.Type {
	case orchestrator.EventPlanned:
		printStatus("●", "Planned: "+e.Message, colorInfo)
	case orchestrator.EventTaskRouted:
		printStatus("→", fmt.Sprintf("%s routed to %s (attempt %d)", e.TaskTitle, e.Proposer, e.Attempt), colorInfo)
	case orchestrator.EventTaskRetry:
		printStatus("↻", fmt.Sprintf("%s retrying: %s", e.TaskTitle, e.Message), colorWarn)
	case orchestrator.EventTaskFinished, orchestrator.EventTaskSkipped:
		sym, c := statusSymbol(e.Status)
		msg := fmt.Sprintf("%s %s", e.TaskTitle, e.Status)
		if e.Message != "" {
			msg += ": " + e.Message
		}
		printStatus(sym, msg, c)
	case orchestrator.EventTaskStarted:
		if verbose() {
			printStatus("·", e.TaskTitle+" started", colorInfo)
		}
	}
}

// printIssues prints validation issues.
func printIssues(result *decompose.ValidationResult) {
	for _, issue := range result.Issues {
		switch {
		case issue.Fixed:
			printStatus("✓", fmt.Sprintf("[fixed] %s: %s", issue.Type, issue.Message), colorOK)
		case issue.Severity == decompose.SeverityError:
			printStatus("✗", fmt.Sprintf("%s: %s", issue.Type, issue.Message), colorFail)
		default:
			printStatus("⚠", fmt.Sprintf("%s: %s", issue.Type, issue.Message), colorWarn)
		}
		if issue.Suggestion != "" && !issue.Fixed {
			fmt.Printf("    %s\n", issue.Suggestion)
		}
	}
}

// renderSummary renders the run totals as a bordered box.
func renderSummary(r *orchestrator.Report) string {
	t := r.Totals
	rows := [][2]string{
		{"Run", r.RunID},
		{"Feature", r.Feature},
		{"Work orders", fmt.Sprintf("%d", t.Tasks)},
		{"Succeeded", fmt.Sprintf("%d", t.Succeeded)},
		{"Partial", fmt.Sprintf("%d", t.Partial)},
		{"Escalated", fmt.Sprintf("%d", t.Escalated)},
		{"Budget refused", fmt.Sprintf("%d", t.BudgetRefused)},
		{"Skipped", fmt.Sprintf("%d", t.Skipped)},
		{"Cancelled", fmt.Sprintf("%d", t.Cancelled)},
		{"Estimated cost", fmt.Sprintf("$%.4f", r.EstimatedCost)},
		{"Actual cost", fmt.Sprintf("$%.4f", t.Cost)},
		{"Units in/out", fmt.Sprintf("%d / %d", t.InputUnits, t.OutputUnits)},
		{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, labelStyle.Render(row[0])+row[1])
	}
	return summaryStyle.Render(strings.Join(lines, "\n"))
}

// printDecision prints a routing decision.
func printDecision(d *models.RoutingDecision) {
	fmt.Printf("%s %s\n", labelStyle.Render("Proposer"), color.New(color.Bold).Sprint(d.SelectedProposer))
	fmt.Printf("%s %s\n", labelStyle.Render("Reason"), d.Reason)
	fmt.Printf("%s %.2f\n", labelStyle.Render("Confidence"), d.Confidence)
	if d.FallbackProposer != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("Fallback"), d.FallbackProposer)
	}
	fmt.Printf("%s %s\n", labelStyle.Render("Budget"), d.Metadata.BudgetStatus)
	fmt.Printf("%s %s\n", labelStyle.Render("Strategy"), d.Metadata.Strategy)
}
