package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ardentforge/branchctl/pkg/branch"
	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
	"github.com/ardentforge/branchctl/pkg/telemetry"
)

const (
	// DefaultBranchTimeout is the advisory per-branch execution deadline.
	DefaultBranchTimeout = 300 * time.Second

	// maxEngineConcurrency bounds concurrent branch executions engine-wide,
	// independent of any single branch's own Parallel{max_concurrent}.
	maxEngineConcurrency = 8
)

// Engine dispatches a branch's agents through a Dispatcher and walks branch
// trees, delegating all lifecycle transitions to the Branch Manager it
// wraps. It holds no session or repository state of its own.
type Engine struct {
	branches       *branch.Manager
	dispatcher     Dispatcher
	defaultTimeout time.Duration

	treeSem *semaphore.Weighted

	mu        sync.Mutex
	cancelled map[domain.BranchId]bool
}

// NewEngine constructs an Engine. defaultTimeout <= 0 falls back to
// DefaultBranchTimeout.
func NewEngine(branches *branch.Manager, dispatcher Dispatcher, defaultTimeout time.Duration) *Engine {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultBranchTimeout
	}
	return &Engine{
		branches:       branches,
		dispatcher:     dispatcher,
		defaultTimeout: defaultTimeout,
		treeSem:        semaphore.NewWeighted(maxEngineConcurrency),
		cancelled:      make(map[domain.BranchId]bool),
	}
}

// ExecuteBranch dispatches every agent configured on a Pending branch,
// transitioning it Active then Completed. timeout <= 0 uses the engine
// default; exceeding it yields a Timeout error even though the branch is
// still marked Completed (timeouts are advisory, not cancelling).
func (e *Engine) ExecuteBranch(ctx context.Context, id domain.BranchId, timeout time.Duration) (domain.BranchResult, error) {
	return e.executeBranch(ctx, id, timeout, nil)
}

// ExecuteBranchWithProgress is ExecuteBranch with best-effort progress
// reporting: sends to progress never block the caller, so a full or
// unconsumed channel simply drops updates.
func (e *Engine) ExecuteBranchWithProgress(ctx context.Context, id domain.BranchId, timeout time.Duration, progress chan<- BranchProgress) (domain.BranchResult, error) {
	return e.executeBranch(ctx, id, timeout, progress)
}

func (e *Engine) executeBranch(ctx context.Context, id domain.BranchId, timeout time.Duration, progress chan<- BranchProgress) (domain.BranchResult, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	start := time.Now()

	b, err := e.branches.GetBranch(ctx, id)
	if err != nil {
		return domain.BranchResult{}, err
	}
	if b.Status != domain.BranchPending {
		return domain.BranchResult{}, errors.InvalidBranchState(string(domain.BranchPending), string(b.Status))
	}

	total := len(b.Config.Agents)
	send(progress, BranchProgress{BranchID: id, TotalAgents: total, Status: ProgressPending})

	if err := e.branches.UpdateStatus(ctx, id, domain.BranchActive); err != nil {
		return domain.BranchResult{}, err
	}

	var (
		results     []domain.AgentResult
		dispatchErr error
	)
	if b.Config.ExecutionStrategy.Kind == domain.ExecutionParallel {
		results, dispatchErr = e.dispatchParallel(ctx, id, b, progress)
	} else {
		results, dispatchErr = e.dispatchSequential(ctx, id, b, progress)
	}

	if dispatchErr != nil {
		send(progress, BranchProgress{
			BranchID: id, TotalAgents: total, CompletedAgents: len(results),
			Status: ProgressFailed, FailureReason: dispatchErr.Error(),
		})
		_ = e.branches.AbortBranch(ctx, id)
		return domain.BranchResult{}, dispatchErr
	}

	// TODO: derive the per-branch change set by observing its session once
	// pkg/session exposes per-session file enumeration; until then every
	// branch reports zero file changes from the engine's side.
	var changes []domain.FileChange

	elapsed := time.Since(start)
	telemetry.BranchExecutionSeconds.Observe(elapsed.Seconds())

	result := domain.BranchResult{
		BranchID:     id,
		FileChanges:  changes,
		AgentResults: results,
		Metrics: domain.BranchMetrics{
			TotalDurationMs: elapsed.Milliseconds(),
			FilesProcessed:  len(changes),
			AgentsExecuted:  len(results),
		},
	}

	if err := e.branches.CompleteBranch(ctx, id, result); err != nil {
		return domain.BranchResult{}, err
	}

	send(progress, BranchProgress{
		BranchID: id, TotalAgents: total, CompletedAgents: len(results),
		PercentComplete: 100, Status: ProgressCompleted,
	})

	if elapsed > timeout {
		return result, errors.Timeout(string(id), elapsed.Milliseconds())
	}
	return result, nil
}

func (e *Engine) dispatchSequential(ctx context.Context, id domain.BranchId, b domain.Branch, progress chan<- BranchProgress) ([]domain.AgentResult, error) {
	total := len(b.Config.Agents)
	results := make([]domain.AgentResult, 0, total)

	for i, assignment := range b.Config.Agents {
		if e.isCancelled(id) {
			break
		}
		send(progress, BranchProgress{
			BranchID: id, TotalAgents: total, CompletedAgents: i, ActiveAgents: 1,
			CurrentAgent: assignment.AgentID, PercentComplete: percentComplete(i, total),
			Status: ProgressExecuting,
		})

		result, err := e.dispatchOne(ctx, b, assignment)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) dispatchParallel(ctx context.Context, id domain.BranchId, b domain.Branch, progress chan<- BranchProgress) ([]domain.AgentResult, error) {
	total := len(b.Config.Agents)
	weight := int64(b.Config.ExecutionStrategy.Concurrency())
	if weight < 1 {
		weight = 1
	}
	if weight > maxEngineConcurrency {
		weight = maxEngineConcurrency
	}
	sem := semaphore.NewWeighted(weight)

	results := make([]domain.AgentResult, total)
	taskErrs := make([]error, total)
	var completed int32
	var wg sync.WaitGroup

	for i, assignment := range b.Config.Agents {
		if e.isCancelled(id) {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, errors.Cancelled(string(id))
		}

		wg.Add(1)
		go func(i int, assignment domain.AgentAssignment) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					taskErrs[i] = errors.AgentFailed(assignment.AgentID, fmt.Sprintf("panic: %v", r))
				}
			}()

			send(progress, BranchProgress{
				BranchID: id, TotalAgents: total, ActiveAgents: 1,
				CurrentAgent: assignment.AgentID, Status: ProgressExecuting,
			})

			result, err := e.dispatchOne(ctx, b, assignment)
			if err != nil {
				taskErrs[i] = err
				return
			}
			results[i] = result

			n := atomic.AddInt32(&completed, 1)
			send(progress, BranchProgress{
				BranchID: id, TotalAgents: total, CompletedAgents: int(n),
				PercentComplete: percentComplete(int(n), total), Status: ProgressExecuting,
			})
		}(i, assignment)
	}
	wg.Wait()

	for _, err := range taskErrs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *Engine) dispatchOne(ctx context.Context, b domain.Branch, assignment domain.AgentAssignment) (domain.AgentResult, error) {
	content := fmt.Sprintf("Execute on branch %s", b.Name)
	if assignment.TaskOverride != nil {
		content = *assignment.TaskOverride
	}
	task := Task{ID: domain.NewTaskID(), Content: content, Priority: assignment.Priority, Status: TaskPending}

	start := time.Now()
	res, err := e.dispatcher.Dispatch(ctx, assignment.AgentID, task)
	duration := time.Since(start)

	if err != nil {
		telemetry.RecordDispatch("error")
		return domain.AgentResult{}, errors.AgentFailed(assignment.AgentID, err.Error())
	}

	switch res.Outcome {
	case Accepted:
		telemetry.RecordDispatch("accepted")
	case Completed:
		telemetry.RecordDispatch("completed")
	case AgentBusy:
		telemetry.RecordDispatch("busy")
		return domain.AgentResult{}, errors.AgentFailed(assignment.AgentID, "agent busy")
	default:
		telemetry.RecordDispatch("unknown")
		return domain.AgentResult{}, errors.AgentFailed(assignment.AgentID, "unknown dispatch outcome")
	}

	output := res.Output
	return domain.AgentResult{
		AgentID:    assignment.AgentID,
		Success:    true,
		Output:     &output,
		DurationMs: duration.Milliseconds(),
	}, nil
}

// ExecuteTree executes rootID, then its children concurrently (bounded
// engine-wide by the same semaphore every ExecuteTree call shares), then
// recurses into each child's own subtree. Any failure anywhere aborts the
// whole walk. On success, a root configured with AutoMerge merges each
// direct child back into it.
func (e *Engine) ExecuteTree(ctx context.Context, rootID domain.BranchId, timeout time.Duration) error {
	root, err := e.branches.GetBranch(ctx, rootID)
	if err != nil {
		return err
	}

	if _, err := e.ExecuteBranch(ctx, rootID, timeout); err != nil {
		return err
	}

	tree, err := e.branches.GetBranchTree(ctx, rootID)
	if err != nil {
		return err
	}

	if err := e.executeChildren(ctx, tree, timeout); err != nil {
		return err
	}

	if root.Config.AutoMerge && len(tree.Children) > 0 {
		if err := e.mergeChildren(ctx, rootID, tree, root.Config.MergeStrategy); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) executeChildren(ctx context.Context, node *domain.BranchTree, timeout time.Duration) error {
	if len(node.Children) == 0 {
		return nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		firstErr error
	)

	for _, child := range node.Children {
		child := child
		if err := e.treeSem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return errors.Cancelled(string(node.Branch.ID))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.treeSem.Release(1)

			if _, err := e.ExecuteBranch(ctx, child.Branch.ID, timeout); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if err := e.executeChildren(ctx, child, timeout); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return firstErr
}

// mergeChildren folds each of root's direct children back into it via the
// Branch Manager's own request/execute/commit sequence, auto-approving and
// committing only conflict-free merges. A child left with conflicts is
// reported but does not abort the others.
func (e *Engine) mergeChildren(ctx context.Context, rootID domain.BranchId, tree *domain.BranchTree, strategy string) error {
	if strategy == "" {
		strategy = "three-way"
	}

	var mergeErr error
	for _, child := range tree.Children {
		mrID, err := e.branches.RequestMerge(ctx, child.Branch.ID, strategy, false)
		if err != nil {
			mergeErr = err
			continue
		}
		result, err := e.branches.ExecuteMerge(ctx, mrID)
		if err != nil {
			mergeErr = err
			continue
		}
		if result.HasConflicts() {
			mergeErr = errors.MergeFailed(fmt.Sprintf("branch %s produced %d conflicts merging into %s", child.Branch.ID, len(result.Conflicts), rootID))
			continue
		}
		if err := e.branches.CommitMerge(ctx, mrID); err != nil {
			mergeErr = err
		}
	}
	return mergeErr
}

// CancelExecution aborts id's branch and prevents any further agent
// dispatches for it; in-flight dispatches are left to complete and their
// results discarded. Graceful, in-progress drain of the dispatcher itself is
// out of scope.
func (e *Engine) CancelExecution(ctx context.Context, id domain.BranchId) error {
	e.mu.Lock()
	e.cancelled[id] = true
	e.mu.Unlock()

	return e.branches.AbortBranch(ctx, id)
}

func (e *Engine) isCancelled(id domain.BranchId) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[id]
}
