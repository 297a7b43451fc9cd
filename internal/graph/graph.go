// Package graph provides a dependency graph for releasing validated work
// orders in dependency order.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of work orders.
// Edges represent "blocked by" relationships. Iteration follows the order the
// work orders were given in, so results are deterministic.
type DependencyGraph struct {
	mu sync.RWMutex
	// order is the task IDs in list order.
	order []string
	// nodes maps task ID to the work order.
	nodes map[string]*models.WorkOrder
	// edges maps task ID to IDs of tasks it depends on.
	edges map[string][]string
	// started tracks tasks handed out by Ready.
	started map[string]bool
	// finished maps task ID to its terminal status.
	finished map[string]models.TaskStatus
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*models.WorkOrder),
		edges:    make(map[string][]string),
		started:  make(map[string]bool),
		finished: make(map[string]models.TaskStatus),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the graph from work orders.
// Returns an error if a cycle is detected or dependencies reference unknown tasks.
func (g *DependencyGraph) Build(tasks []*models.WorkOrder) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d tasks", len(tasks))

	for _, task := range tasks {
		if _, dup := g.nodes[task.ID]; dup {
			return fmt.Errorf("duplicate task id %s", task.ID)
		}
		g.order = append(g.order, task.ID)
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("task %s depends on unknown task %s", task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns task IDs in an order where all dependencies
// come before the tasks that depend on them.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool)
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Ready returns tasks whose dependencies all completed and which have not
// been handed out yet, and marks them started.
func (g *DependencyGraph) Ready() []*models.WorkOrder {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ready []*models.WorkOrder
	for _, id := range g.order {
		if g.started[id] {
			continue
		}
		satisfied := true
		for _, depID := range g.edges[id] {
			status, done := g.finished[depID]
			if !done || !status.Completed() {
				satisfied = false
				break
			}
		}
		if satisfied {
			g.started[id] = true
			ready = append(ready, g.nodes[id])
		}
	}

	g.debugLog("[graph.Ready] releasing %d tasks", len(ready))
	return ready
}

// Blocked returns tasks that can never run because a prerequisite, directly
// or transitively, finished without completing. They are marked started.
func (g *DependencyGraph) Blocked() []*models.WorkOrder {
	g.mu.Lock()
	defer g.mu.Unlock()

	var blocked []*models.WorkOrder
	changed := true
	for changed {
		changed = false
		for _, id := range g.order {
			if g.started[id] {
				continue
			}
			for _, depID := range g.edges[id] {
				status, done := g.finished[depID]
				if done && !status.Completed() {
					g.started[id] = true
					g.finished[id] = models.TaskStatusSkipped
					blocked = append(blocked, g.nodes[id])
					changed = true
					break
				}
			}
		}
	}

	if len(blocked) > 0 {
		g.debugLog("[graph.Blocked] %d tasks blocked by failed prerequisites", len(blocked))
	}
	return blocked
}

// MarkFinished records a task's terminal status.
func (g *DependencyGraph) MarkFinished(taskID string, status models.TaskStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.MarkFinished] task %s: %s", taskID, status)
	g.started[taskID] = true
	g.finished[taskID] = status
}

// Pending returns the number of tasks without a terminal status.
func (g *DependencyGraph) Pending() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order) - len(g.finished)
}

// Unstarted returns tasks never handed out, in list order.
func (g *DependencyGraph) Unstarted() []*models.WorkOrder {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*models.WorkOrder
	for _, id := range g.order {
		if !g.started[id] {
			out = append(out, g.nodes[id])
		}
	}
	return out
}

// Task returns the work order for an ID, or nil if not found.
func (g *DependencyGraph) Task(taskID string) *models.WorkOrder {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) Dependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[taskID]
}

// Dependents returns the IDs of tasks that depend on the given task, in list order.
func (g *DependencyGraph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}
