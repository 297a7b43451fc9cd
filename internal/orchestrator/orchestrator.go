package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/dispatch/internal/budget"
	"github.com/ShayCichocki/dispatch/internal/decompose"
	"github.com/ShayCichocki/dispatch/internal/graph"
	"github.com/ShayCichocki/dispatch/internal/metrics"
	"github.com/ShayCichocki/dispatch/internal/refine"
	"github.com/ShayCichocki/dispatch/internal/routing"
	"github.com/ShayCichocki/dispatch/internal/state"
	"github.com/ShayCichocki/dispatch/pkg/models"
)

// ErrBlockingIssues is returned when validation left unfixed errors in the
// decomposition. The report still carries the issue list.
var ErrBlockingIssues = errors.New("decomposition has blocking validation issues")

// errBudgetRefused marks a reservation the budget service declined.
var errBudgetRefused = errors.New("budget reservation refused")

// errEscalated marks a refinement call whose retries ran out.
var errEscalated = errors.New("generation escalated")

// Orchestrator drives specifications through the pipeline.
type Orchestrator struct {
	planner decompose.Generator
	gen     Generator
	router  *routing.Manager
	budget  budget.Service
	loop    *refine.Loop
	opts    orchestratorOptions
	logger  *DebugLogger
	metrics *metrics.Metrics

	// budgetMu serializes read-spend, route and reserve across workers.
	budgetMu sync.Mutex

	costMu  sync.Mutex
	runCost float64
}

// New creates an Orchestrator.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	switch {
	case req.Planner == nil:
		return nil, fmt.Errorf("planner is required")
	case req.Generator == nil:
		return nil, fmt.Errorf("generator is required")
	case req.Router == nil:
		return nil, fmt.Errorf("router is required")
	case req.Budget == nil:
		return nil, fmt.Errorf("budget service is required")
	case req.Checker == nil:
		return nil, fmt.Errorf("diagnostics checker is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxParallel < 1 {
		o.maxParallel = 1
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = routing.MaxAttempts
	}
	if o.capacity == nil {
		o.capacity = NewLocalCapacity(o.maxParallel)
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}

	loop := refine.NewLoop(req.Checker)
	loop.SetDebugLog(o.logger.Log)
	loop.SetLowImprovementThreshold(o.lowImprovement)
	req.Router.SetDebugLog(o.logger.Log)

	return &Orchestrator{
		planner: req.Planner,
		gen:     req.Generator,
		router:  req.Router,
		budget:  req.Budget,
		loop:    loop,
		opts:    o,
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// Plan estimates and decomposes spec. Estimation and batch failures are
// fatal and returned as errors.
func (o *Orchestrator) Plan(ctx context.Context, spec *models.TechnicalSpecification) (*decompose.Estimate, *decompose.Result, error) {
	o.logger.Log("[orchestrator] planning %q", spec.FeatureName)
	if err := ctx.Err(); err != nil {
		return nil, nil, context.Cause(ctx)
	}

	planner := wholeCallPlanner{o.planner}
	est, err := decompose.NewEstimator(planner, o.opts.decomposeOpts).Estimate(ctx, spec)
	if err != nil {
		return nil, nil, fmt.Errorf("estimate: %w", err)
	}
	o.logger.Log("[orchestrator] estimate: %d tasks, batching=%v, %d batches", est.TotalTasks, est.NeedsBatching, len(est.Batches))

	if err := ctx.Err(); err != nil {
		return est, nil, context.Cause(ctx)
	}

	d := decompose.New(planner, o.opts.decomposeOpts)
	d.SetDebugLog(o.logger.Log)
	result, err := d.Decompose(ctx, spec, est)
	if err != nil {
		return est, nil, fmt.Errorf("decompose: %w", err)
	}
	return est, result, nil
}

// wholeCallPlanner lets a planner call finish once started. The decomposer
// checks for cancellation between batches.
type wholeCallPlanner struct {
	decompose.Generator
}

func (p wholeCallPlanner) Complete(ctx context.Context, prompt string) (string, error) {
	return p.Generator.Complete(context.WithoutCancel(ctx), prompt)
}

// Run plans spec and executes every work order. The report is returned even
// when err is non-nil and holds whatever completed.
func (o *Orchestrator) Run(ctx context.Context, spec *models.TechnicalSpecification) (*Report, error) {
	report := &Report{
		RunID:      uuid.New().String(),
		Feature:    spec.FeatureName,
		WorkOrders: []decompose.PositionalWorkOrder{},
		Decisions:  []*models.RoutingDecision{},
		Outcomes:   []*TaskOutcome{},
		StartedAt:  time.Now(),
	}
	o.startRun(report)

	est, result, err := o.Plan(ctx, spec)
	report.Estimate = est
	if err != nil {
		o.finishRun(ctx, report, err)
		return report, err
	}

	report.WorkOrders = decompose.ToPositional(result.Tasks)
	report.Validation = result.Validation
	report.EstimatedCost = result.EstimatedCost
	report.Warnings = result.Warnings
	report.Document = result.Document
	o.emit(Event{Type: EventPlanned, Message: fmt.Sprintf("%d work orders, estimated $%.2f", len(result.Tasks), result.EstimatedCost)})

	if !result.Validation.Valid {
		err := fmt.Errorf("%w: %d unresolved", ErrBlockingIssues, len(result.Validation.Errors()))
		o.finishRun(ctx, report, err)
		return report, err
	}

	outcomes, err := o.Execute(ctx, result.Tasks)
	report.Outcomes = outcomes
	o.finishRun(ctx, report, err)
	o.emit(Event{Type: EventRunDone, Message: fmt.Sprintf("%d succeeded, %d partial", report.Totals.Succeeded, report.Totals.Partial)})
	return report, err
}

// Execute runs validated work orders in dependency order. Ready work orders
// run in parallel up to the configured limit and capacity. A work order whose
// prerequisite did not complete is skipped. Outcomes are returned in list
// order; an error is returned only for emergency-kill refusal or
// cancellation.
func (o *Orchestrator) Execute(ctx context.Context, tasks []*models.WorkOrder) ([]*TaskOutcome, error) {
	g := graph.New()
	g.SetDebugLog(o.logger.Log)
	if err := g.Build(tasks); err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}

	position := make(map[string]int, len(tasks))
	for i, t := range tasks {
		position[t.ID] = i
	}

	var mu sync.Mutex
	outcomes := make(map[string]*TaskOutcome, len(tasks))
	record := func(out *TaskOutcome) {
		mu.Lock()
		outcomes[out.TaskID] = out
		mu.Unlock()
		o.metrics.ObserveTask(out.Status)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.opts.maxParallel)
	done := make(chan struct{}, len(tasks))
	running := 0

	for {
		if gctx.Err() == nil {
			for _, t := range g.Blocked() {
				out := newOutcome(t, position[t.ID])
				out.Status = models.TaskStatusSkipped
				out.Error = "prerequisite did not complete"
				record(out)
				o.emit(Event{Type: EventTaskSkipped, TaskID: t.ID, TaskTitle: t.Title, Status: out.Status})
			}
			for _, t := range g.Ready() {
				t := t
				running++
				eg.Go(func() error {
					defer func() { done <- struct{}{} }()
					out, err := o.runTask(gctx, g, t, position[t.ID])
					record(out)
					g.MarkFinished(t.ID, out.Status)
					o.emit(Event{Type: EventTaskFinished, TaskID: t.ID, TaskTitle: t.Title, Proposer: out.Proposer, Attempt: out.Attempts, Status: out.Status, Message: out.Error})
					return err
				})
			}
		}

		if running == 0 {
			break
		}
		<-done
		running--
	}

	err := eg.Wait()
	for _, t := range g.Unstarted() {
		out := newOutcome(t, position[t.ID])
		out.Status = models.TaskStatusCancelled
		out.Error = "not started before cancellation"
		record(out)
	}

	ordered := make([]*TaskOutcome, 0, len(tasks))
	for _, t := range tasks {
		ordered = append(ordered, outcomes[t.ID])
	}

	if err == nil && ctx.Err() != nil {
		err = context.Cause(ctx)
	}
	return ordered, err
}

func newOutcome(t *models.WorkOrder, position int) *TaskOutcome {
	return &TaskOutcome{
		TaskID:    t.ID,
		Position:  position,
		Title:     t.Title,
		Status:    models.TaskStatusPending,
		Decisions: []*models.RoutingDecision{},
	}
}

func cancelledOutcome(ctx context.Context, out *TaskOutcome) (*TaskOutcome, error) {
	out.Status = models.TaskStatusCancelled
	out.Error = context.Cause(ctx).Error()
	return out, nil
}

// runTask waits for capacity and executes one work order.
func (o *Orchestrator) runTask(ctx context.Context, g *graph.DependencyGraph, task *models.WorkOrder, position int) (*TaskOutcome, error) {
	out := newOutcome(task, position)
	if err := o.opts.capacity.Acquire(ctx); err != nil {
		return cancelledOutcome(ctx, out)
	}
	defer o.opts.capacity.Release()

	var prerequisites []string
	for _, id := range g.Dependencies(task.ID) {
		if dep := g.Task(id); dep != nil {
			prerequisites = append(prerequisites, dep.Title)
		}
	}
	return o.executeTask(ctx, task, prerequisites, out)
}

// executeTask routes, generates and refines one work order, following the
// retry ladder on generation failures.
func (o *Orchestrator) executeTask(ctx context.Context, task *models.WorkOrder, prerequisites []string, out *TaskOutcome) (*TaskOutcome, error) {
	out.Status = models.TaskStatusInProgress
	o.emit(Event{Type: EventTaskStarted, TaskID: task.ID, TaskTitle: task.Title})

	attempt := 1
	forced, forcedReason, failure := "", "", ""
	for {
		if ctx.Err() != nil {
			return cancelledOutcome(ctx, out)
		}
		if attempt > o.opts.maxAttempts {
			out.Status = models.TaskStatusEscalated
			out.Error = fmt.Sprintf("attempt limit %d reached", o.opts.maxAttempts)
			return out, nil
		}

		prompt := BuildTaskPrompt(task, prerequisites, failure)
		decision, proposer, reservation, err := o.reserveAttempt(ctx, task, attempt, forced, forcedReason, prompt)
		if decision != nil {
			out.Decisions = append(out.Decisions, decision)
			out.Attempts = attempt
			out.Proposer = decision.SelectedProposer
			o.metrics.ObserveRouting(decision)
		}
		switch {
		case errors.Is(err, routing.ErrEmergencyKill):
			out.Status = models.TaskStatusBudgetRefused
			out.Error = err.Error()
			return out, fmt.Errorf("task %s: %w", task.ID, err)
		case errors.Is(err, errBudgetRefused):
			out.Status = models.TaskStatusBudgetRefused
			out.Error = err.Error()
			return out, nil
		case err != nil && ctx.Err() != nil:
			return cancelledOutcome(ctx, out)
		case err != nil:
			out.Status = models.TaskStatusEscalated
			out.Error = err.Error()
			return out, nil
		}
		o.emit(Event{Type: EventTaskRouted, TaskID: task.ID, TaskTitle: task.Title, Proposer: proposer.Name, Attempt: attempt, Message: decision.Reason})

		content, err := o.generate(ctx, proposer, prompt, reservation, out)
		if err != nil {
			if ctx.Err() != nil {
				return cancelledOutcome(ctx, out)
			}
			strategy := o.router.NextAttempt(proposer.Name, attempt, err.Error())
			out.Retries = append(out.Retries, strategy)
			if !strategy.ShouldRetry() {
				out.Status = models.TaskStatusEscalated
				out.Error = strategy.Reason
				return out, nil
			}
			o.emit(Event{Type: EventTaskRetry, TaskID: task.ID, TaskTitle: task.Title, Proposer: strategy.Proposer, Attempt: strategy.NextAttempt, Message: strategy.Reason})
			forced, forcedReason, failure = strategy.Proposer, strategy.Reason, strategy.FailureContext
			attempt = strategy.NextAttempt
			continue
		}

		current := proposer
		propose := func(ctx context.Context, prompt string) (string, error) {
			return o.regenerate(ctx, task, &current, prompt, out)
		}
		result, err := o.loop.Refine(ctx, content, task, propose, o.opts.maxCycles, o.opts.contracts)
		out.Refinement = result
		o.metrics.ObserveRefinement(result)

		switch {
		case err != nil && ctx.Err() != nil:
			return cancelledOutcome(ctx, out)
		case errors.Is(err, errEscalated):
			out.Status = models.TaskStatusEscalated
			out.Error = err.Error()
		case result.Success:
			out.Status = models.TaskStatusSucceeded
		default:
			out.Status = models.TaskStatusPartial
			if err != nil {
				out.Error = err.Error()
			}
		}
		return out, nil
	}
}

// regenerate makes one refinement call, following the retry ladder when the
// generation service fails. proposer tracks ladder switches so later cycles
// stay on the proposer that was switched to.
func (o *Orchestrator) regenerate(ctx context.Context, task *models.WorkOrder, proposer *models.ProposerProfile, prompt string, out *TaskOutcome) (string, error) {
	failure := ""
	for attempt := 1; ; {
		p := prompt
		if failure != "" {
			p = prompt + "\n## Previous attempt\n" + failure + "\n"
		}
		resID, err := o.reserve(ctx, *proposer, p, task)
		if err != nil {
			return "", err
		}
		content, err := o.generate(ctx, *proposer, p, resID, out)
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return "", err
		}

		strategy := o.router.NextAttempt(proposer.Name, attempt, err.Error())
		out.Retries = append(out.Retries, strategy)
		if !strategy.ShouldRetry() {
			return "", fmt.Errorf("%w: %s", errEscalated, strategy.Reason)
		}
		if strategy.NextAttempt > o.opts.maxAttempts {
			return "", fmt.Errorf("%w: attempt limit %d reached", errEscalated, o.opts.maxAttempts)
		}
		next, ok := o.router.Proposer(strategy.Proposer)
		if !ok {
			return "", fmt.Errorf("%w: unknown proposer %q", errEscalated, strategy.Proposer)
		}
		o.emit(Event{Type: EventTaskRetry, TaskID: task.ID, TaskTitle: task.Title, Proposer: next.Name, Attempt: strategy.NextAttempt, Message: strategy.Reason})
		o.logger.Log("[orchestrator] %s: refinement call failed on %s: %v", task.ID, proposer.Name, err)
		*proposer, failure, attempt = next, strategy.FailureContext, strategy.NextAttempt
		out.Proposer = next.Name
	}
}

// reserveAttempt reads the day's spend, routes and reserves the estimated
// cost as one serialized step. forced overrides the routed proposer on
// retries.
func (o *Orchestrator) reserveAttempt(ctx context.Context, task *models.WorkOrder, attempt int, forced, forcedReason, prompt string) (*models.RoutingDecision, models.ProposerProfile, string, error) {
	o.budgetMu.Lock()
	defer o.budgetMu.Unlock()

	spend, err := o.budget.DailySpend(ctx)
	if err != nil {
		return nil, models.ProposerProfile{}, "", fmt.Errorf("read daily spend: %w", err)
	}

	decision, err := o.router.RouteTask(task, spend)
	if err != nil {
		return nil, models.ProposerProfile{}, "", err
	}
	if forced != "" && forced != decision.SelectedProposer {
		retry := *decision
		retry.FallbackProposer = decision.SelectedProposer
		retry.SelectedProposer = forced
		retry.Reason = forcedReason
		decision = &retry
	}
	decision.TaskID = task.ID
	decision.Attempt = attempt

	proposer, ok := o.router.Proposer(decision.SelectedProposer)
	if !ok {
		return decision, proposer, "", fmt.Errorf("unknown proposer %q", decision.SelectedProposer)
	}

	resID, err := o.reserveLocked(ctx, proposer, prompt, task)
	return decision, proposer, resID, err
}

// reserve holds the estimated cost of a refinement call.
func (o *Orchestrator) reserve(ctx context.Context, proposer models.ProposerProfile, prompt string, task *models.WorkOrder) (string, error) {
	o.budgetMu.Lock()
	defer o.budgetMu.Unlock()
	return o.reserveLocked(ctx, proposer, prompt, task)
}

func (o *Orchestrator) reserveLocked(ctx context.Context, proposer models.ProposerProfile, prompt string, task *models.WorkOrder) (string, error) {
	est := EstimateAttemptCost(proposer, prompt, task)
	ok, resID, total, err := o.budget.ReserveBudget(ctx, est)
	if err != nil {
		return "", fmt.Errorf("reserve budget: %w", err)
	}
	if !ok {
		o.metrics.ObserveReservation(metrics.ReservationRefused)
		o.logger.Log("[orchestrator] reservation of $%.4f refused for %s (day total $%.2f)", est, task.ID, total)
		return "", fmt.Errorf("%w: $%.4f with $%.2f already spent or held", errBudgetRefused, est, total)
	}
	o.metrics.ObserveReservation(metrics.ReservationAccepted)
	return resID, nil
}

// generate calls the generation service and settles the reservation. Usage
// reported by a failed call is committed; the hold is cancelled only when the
// call reported none.
func (o *Orchestrator) generate(ctx context.Context, proposer models.ProposerProfile, prompt, reservationID string, out *TaskOutcome) (string, error) {
	// In-flight calls are not interrupted; cancellation is observed between
	// attempts and refinement cycles.
	settle := context.WithoutCancel(ctx)
	content, in, outUnits, err := o.gen.Generate(settle, prompt, proposer)
	if err != nil && in+outUnits == 0 {
		if cerr := o.budget.Cancel(settle, reservationID); cerr != nil {
			o.logger.Log("[orchestrator] cancel reservation %s: %v", reservationID, cerr)
		}
		o.metrics.ObserveReservation(metrics.ReservationCancelled)
		return "", err
	}

	actual := proposer.Cost(in, outUnits)
	if cerr := o.budget.Commit(settle, reservationID, actual); cerr != nil {
		o.logger.Log("[orchestrator] commit reservation %s: %v", reservationID, cerr)
	}
	o.metrics.ObserveReservation(metrics.ReservationCommitted)
	o.metrics.ObserveCommit(actual)
	o.metrics.ObserveGeneration(proposer.Name, in, outUnits)

	out.Cost += actual
	out.InputUnits += in
	out.OutputUnits += outUnits
	o.costMu.Lock()
	o.runCost += actual
	o.costMu.Unlock()
	if err != nil {
		return "", err
	}
	return content, nil
}

func (o *Orchestrator) emit(e Event) {
	if o.opts.onEvent == nil {
		return
	}
	e.Timestamp = time.Now()
	o.costMu.Lock()
	e.Cost = o.runCost
	o.costMu.Unlock()
	o.opts.onEvent(e)
}

func (o *Orchestrator) startRun(report *Report) {
	if o.opts.runs == nil {
		return
	}
	if err := o.opts.runs.CreateRun(&state.Run{
		ID:        report.RunID,
		Feature:   report.Feature,
		Status:    state.RunRunning,
		StartedAt: report.StartedAt,
	}); err != nil {
		o.logger.Log("[orchestrator] create run record: %v", err)
	}
}

// finishRun summarizes the report and persists the run outcome.
func (o *Orchestrator) finishRun(ctx context.Context, report *Report, err error) {
	report.summarize()
	report.FinishedAt = time.Now()

	status := state.RunCompleted
	switch {
	case ctx.Err() != nil:
		status = state.RunCancelled
	case err != nil:
		status = state.RunFailed
	}
	o.logger.Log("[orchestrator] run %s %s: %d tasks, $%.4f", report.RunID, status, report.Totals.Tasks, report.Totals.Cost)

	if o.opts.runs == nil {
		return
	}
	for _, out := range report.Outcomes {
		rt := &state.RunTask{
			RunID:    report.RunID,
			TaskID:   out.TaskID,
			Position: out.Position,
			Title:    out.Title,
			Status:   string(out.Status),
			Proposer: out.Proposer,
			Attempts: out.Attempts,
			Cost:     out.Cost,
		}
		if out.Refinement != nil {
			rt.RefinementCycles = out.Refinement.RefinementCount
			rt.ResidualErrors = out.Refinement.FinalErrors + len(out.Refinement.RemainingViolations)
		}
		if err := o.opts.runs.SaveRunTask(rt); err != nil {
			o.logger.Log("[orchestrator] save run task %s: %v", out.TaskID, err)
		}
	}
	if err := o.opts.runs.FinishRun(report.RunID, status, report.Totals.Tasks, report.Totals.Cost); err != nil {
		o.logger.Log("[orchestrator] finish run record: %v", err)
	}
}
