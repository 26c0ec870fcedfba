// Package parallel implements the Parallel Execution Engine: dispatching a
// branch's agents (sequentially or concurrently, bounded by a semaphore) and
// recursing over a branch tree.
package parallel

import "context"

// TaskStatus tracks a dispatched Task's lifecycle as seen by the engine.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskDispatched TaskStatus = "dispatched"
)

// Task is what the engine hands a Dispatcher: one agent's unit of work
// within a branch.
type Task struct {
	ID       string
	Content  string
	Priority uint8
	Status   TaskStatus
}

// Outcome tags the three forms a dispatch can resolve to.
type Outcome int

const (
	Accepted Outcome = iota
	Completed
	AgentBusy
)

// DispatchResult is a Dispatcher's response to one Task.
type DispatchResult struct {
	Outcome Outcome
	Output  string
}

// Dispatcher hands a Task to an agent and reports how it was received. It is
// the engine's only coupling to whatever runs the agents themselves.
//
//go:generate mockgen -package=parallel -destination=mock_dispatcher_test.go github.com/ardentforge/branchctl/pkg/parallel Dispatcher
type Dispatcher interface {
	Dispatch(ctx context.Context, agentID string, task Task) (DispatchResult, error)
}
