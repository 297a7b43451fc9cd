package decompose

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// SummaryEntry is the compact record of an emitted task carried forward to
// later batches.
type SummaryEntry struct {
	Index        int      `json:"index"`
	Title        string   `json:"title"`
	PrimaryFile  string   `json:"primary_file,omitempty"`
	Exports      []string `json:"exports,omitempty"`
	Dependencies []int    `json:"dependencies"`
}

// typeNamePattern matches PascalCase identifiers with at least two humps,
// e.g. UserService or AuthToken.
var typeNamePattern = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-zA-Z0-9]*)+\b`)

// callPattern matches identifiers directly followed by an opening paren.
var callPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\(`)

// InferExports guesses up to MaxSummaryExports symbols a task will export,
// in order of first appearance in its description.
func InferExports(description string) []string {
	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for _, loc := range typeNamePattern.FindAllStringIndex(description, -1) {
		hits = append(hits, hit{loc[0], description[loc[0]:loc[1]]})
	}
	for _, m := range callPattern.FindAllStringSubmatchIndex(description, -1) {
		hits = append(hits, hit{m[2], description[m[2]:m[3]]})
	}

	// insertion sort by position; lists are short
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var exports []string
	seen := make(map[string]bool)
	for _, h := range hits {
		if seen[h.name] {
			continue
		}
		seen[h.name] = true
		exports = append(exports, h.name)
		if len(exports) == MaxSummaryExports {
			break
		}
	}
	return exports
}

// BuildSummary builds the context summary for all tasks emitted so far.
func BuildSummary(tasks []*models.WorkOrder) []SummaryEntry {
	positional := ToPositional(tasks)
	entries := make([]SummaryEntry, len(tasks))
	for i, t := range tasks {
		entries[i] = SummaryEntry{
			Index:        i,
			Title:        t.Title,
			PrimaryFile:  t.PrimaryFile(),
			Exports:      InferExports(t.Description),
			Dependencies: positional[i].Dependencies,
		}
	}
	return entries
}

// FormatSummary renders summary entries one line per task.
func FormatSummary(entries []SummaryEntry) string {
	if len(entries) == 0 {
		return "(no tasks emitted yet)"
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "[%d] %s", e.Index, e.Title)
		if e.PrimaryFile != "" {
			fmt.Fprintf(&sb, " | file: %s", e.PrimaryFile)
		}
		if len(e.Exports) > 0 {
			fmt.Fprintf(&sb, " | exports: %s", strings.Join(e.Exports, ", "))
		}
		if len(e.Dependencies) > 0 {
			deps := make([]string, len(e.Dependencies))
			for i, d := range e.Dependencies {
				deps[i] = fmt.Sprint(d)
			}
			fmt.Fprintf(&sb, " | deps: [%s]", strings.Join(deps, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
