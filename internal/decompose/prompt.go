package decompose

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// workOrderSchema describes the JSON every decomposition call must return.
const workOrderSchema = `Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "title": "Short task title",
    "description": "Detailed task description naming the types and functions it introduces",
    "acceptance_criteria": ["Specific, verifiable criterion"],
    "files_in_scope": ["src/auth/login.ts"],
    "context_budget": 8000,
    "risk_level": "low|medium|high",
    "dependencies": [0, 2]
  }
]

Dependency rules:
- "dependencies" holds 0-based indices into the COMBINED task list
- A task may only depend on tasks with a lower index
- Use an empty array [] when there are no dependencies
- Never depend on the task itself

File scope rules:
- files_in_scope MUST list every file the task creates or modifies, primary file first
- Avoid two tasks owning the same file; merge them instead

Risk rules:
- high: authentication, authorization, encryption, schema or breaking API changes
- medium: shared modules, public interfaces
- low: isolated additions`

// BuildEstimationPrompt asks the generator to size the work.
func BuildEstimationPrompt(spec *models.TechnicalSpecification, opts Options) string {
	opts = opts.withDefaults()
	return fmt.Sprintf(`Estimate how many atomic implementation tasks this specification needs.

%s
A task is atomic when one engineer can finish it in a single sitting and it touches a small, well-defined set of files.

If the total exceeds %d tasks, also propose ordered batches. Each batch MUST target at most %d tasks and name the focus areas it covers. Foundational work (types, schemas, configuration) comes first.

Return ONLY a JSON object with this exact structure (no other text):
{
  "total_tasks": 12,
  "rationale": "Why this many tasks",
  "batches": [
    {"name": "Data model", "estimated_tasks": 4, "focus_areas": ["schemas", "repositories"]}
  ]
}
Use an empty array for batches when no batching is needed.`,
		FormatSpecification(spec), opts.BatchThreshold, opts.MaxTasksPerBatch)
}

// BuildDecompositionPrompt asks for a complete, unbatched task list.
func BuildDecompositionPrompt(spec *models.TechnicalSpecification, opts Options) string {
	opts = opts.withDefaults()
	return fmt.Sprintf(`Break this specification into between %d and %d atomic implementation tasks.

%s
%s`, opts.MinTasks, opts.MaxTasks, FormatSpecification(spec), workOrderSchema)
}

// BuildBatchPrompt asks for the tasks of one batch. Only the compact summary
// of earlier tasks is included.
func BuildBatchPrompt(spec *models.TechnicalSpecification, batch models.Batch, index, total int, prior []SummaryEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "This specification is being decomposed in %d batches. Produce the tasks for batch %d of %d: %q.\n\n", total, index, total, batch.Name)
	sb.WriteString(FormatSpecification(spec))
	sb.WriteString("\n")
	if len(batch.FocusAreas) > 0 {
		fmt.Fprintf(&sb, "Focus areas for this batch: %s\n", strings.Join(batch.FocusAreas, ", "))
	}
	fmt.Fprintf(&sb, "Produce about %d tasks. Do not repeat work already covered below.\n\n", batch.EstimatedTasks)
	sb.WriteString("Tasks emitted by earlier batches (index, title, primary file, exports, dependencies):\n")
	sb.WriteString(FormatSummary(prior))
	fmt.Fprintf(&sb, "\nThe first task of this batch has index %d; number the rest consecutively. Reference earlier tasks by their index and reuse their exported names exactly.\n\n", len(prior))
	sb.WriteString(workOrderSchema)
	return sb.String()
}

// FormatSpecification renders a specification for inclusion in a prompt.
func FormatSpecification(spec *models.TechnicalSpecification) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Feature: %s\n", spec.FeatureName)
	writeList(&sb, "Objectives", spec.Objectives)
	writeList(&sb, "Constraints", spec.Constraints)
	writeList(&sb, "Acceptance criteria", spec.AcceptanceCriteria)
	if spec.BudgetEstimate != nil {
		fmt.Fprintf(&sb, "Budget estimate: $%.2f\n", *spec.BudgetEstimate)
	}
	if spec.TimeEstimate != "" {
		fmt.Fprintf(&sb, "Time estimate: %s\n", spec.TimeEstimate)
	}
	return sb.String()
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
