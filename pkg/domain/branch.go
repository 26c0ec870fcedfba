package domain

import (
	"time"

	"github.com/ardentforge/branchctl/pkg/errors"
)

// BranchStatus is the stable, lowercase-kebab wire status of a Branch.
type BranchStatus string

const (
	BranchPending   BranchStatus = "pending"
	BranchActive    BranchStatus = "active"
	BranchCompleted BranchStatus = "completed"
	BranchMerging   BranchStatus = "merging"
	BranchMerged    BranchStatus = "merged"
	BranchFailed    BranchStatus = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s BranchStatus) Terminal() bool {
	switch s {
	case BranchMerged, BranchFailed:
		return true
	default:
		return false
	}
}

// ExecutionKind tags the two forms an ExecutionStrategy can take.
type ExecutionKind string

const (
	ExecutionSequential ExecutionKind = "sequential"
	ExecutionParallel   ExecutionKind = "parallel"
)

// ExecutionStrategy controls how a branch's agents are dispatched.
// Sequential dispatches one agent at a time (concurrency limit 1).
// Parallel bounds concurrency by MaxConcurrent, which must be in 1..=8.
type ExecutionStrategy struct {
	Kind          ExecutionKind `yaml:"kind"`
	MaxConcurrent int           `yaml:"max_concurrent,omitempty"`
}

// Sequential returns the Sequential execution strategy.
func Sequential() ExecutionStrategy {
	return ExecutionStrategy{Kind: ExecutionSequential, MaxConcurrent: 1}
}

// Parallel returns a Parallel execution strategy bounded at maxConcurrent.
func Parallel(maxConcurrent int) ExecutionStrategy {
	return ExecutionStrategy{Kind: ExecutionParallel, MaxConcurrent: maxConcurrent}
}

// Concurrency returns the effective concurrency bound for this strategy.
func (e ExecutionStrategy) Concurrency() int {
	if e.Kind == ExecutionSequential {
		return 1
	}
	return e.MaxConcurrent
}

// Validate checks the strategy is well-formed per spec (Parallel max_concurrent 1..=8).
func (e ExecutionStrategy) Validate() error {
	switch e.Kind {
	case ExecutionSequential:
		return nil
	case ExecutionParallel:
		if e.MaxConcurrent < 1 || e.MaxConcurrent > 8 {
			return errors.Validation("parallel execution strategy max_concurrent must be in 1..=8")
		}
		return nil
	default:
		return errors.Validation("unknown execution strategy: " + string(e.Kind))
	}
}

// AgentAssignment binds an agent to a branch's config.
type AgentAssignment struct {
	AgentID      string  `yaml:"agent_id"`
	TaskOverride *string `yaml:"task_override,omitempty"`
	Priority     uint8   `yaml:"priority"`
}

// BranchConfig is the per-branch configuration, carried by value and
// persisted as an opaque serialized blob by the repository.
type BranchConfig struct {
	Name              string            `yaml:"name"`
	Agents            []AgentAssignment `yaml:"agents"`
	ExecutionStrategy ExecutionStrategy `yaml:"execution_strategy"`
	AutoMerge         bool              `yaml:"auto_merge"`
	MergeStrategy     string            `yaml:"merge_strategy"`
}

// SourceKind tags the three forms a BranchSource can take.
type SourceKind string

const (
	SourceBase     SourceKind = "base"
	SourceBranch   SourceKind = "branch"
	SourceSnapshot SourceKind = "snapshot"
)

// BranchSource names where a new branch's content comes from. Used only at
// create time; not persisted as part of the Branch entity itself.
type BranchSource struct {
	Kind SourceKind

	// Base
	Path string

	// Branch
	ParentBranchID BranchId

	// Snapshot
	SessionID          string
	SnapshotTimestamp   time.Time
	SnapshotDescription *string
}

// BaseSource builds a BranchSource rooted at a filesystem path.
func BaseSource(path string) BranchSource {
	return BranchSource{Kind: SourceBase, Path: path}
}

// BranchSourceFrom builds a BranchSource derived from an existing branch.
func BranchSourceFrom(parent BranchId) BranchSource {
	return BranchSource{Kind: SourceBranch, ParentBranchID: parent}
}

// SnapshotSource builds a BranchSource pinned to a session snapshot.
func SnapshotSource(sessionID string, at time.Time, description *string) BranchSource {
	return BranchSource{Kind: SourceSnapshot, SessionID: sessionID, SnapshotTimestamp: at, SnapshotDescription: description}
}

// FileChangeKind tags the three forms a FileChange can take.
type FileChangeKind string

const (
	FileAdded    FileChangeKind = "added"
	FileModified FileChangeKind = "modified"
	FileDeleted  FileChangeKind = "deleted"
)

// FileChange names a single file's change without embedding its content;
// content is resolved from the owning session on demand.
type FileChange struct {
	Kind FileChangeKind
	Path string
}

// AgentResult is the outcome of one agent's dispatch within a branch.
type AgentResult struct {
	AgentID    string
	Success    bool
	Output     *string
	Error      *string
	DurationMs int64
}

// BranchMetrics summarizes one branch execution.
type BranchMetrics struct {
	TotalDurationMs int64
	FilesProcessed  int
	AgentsExecuted  int
	PeakMemoryBytes int64
}

// BranchResult is the terminal record of a branch's execution.
type BranchResult struct {
	BranchID     BranchId
	FileChanges  []FileChange
	AgentResults []AgentResult
	Metrics      BranchMetrics
}

// Branch is the central entity: an isolated workspace plus metadata, driven
// through a validated lifecycle by the Branch Manager.
type Branch struct {
	ID       BranchId
	ParentID *BranchId

	SessionID string
	Name      string

	CreatedAt   time.Time
	CompletedAt *time.Time

	Config BranchConfig
	Status BranchStatus

	Children []BranchId

	Result        *BranchResult
	MergeResult   *MergeResult
	FailureReason *string
}

// AddChild appends a child id, deduplicating on insert.
func (b *Branch) AddChild(id BranchId) {
	for _, c := range b.Children {
		if c == id {
			return
		}
	}
	b.Children = append(b.Children, id)
}

// BranchTree is a DFS-traversable node over parent/child branch relations.
type BranchTree struct {
	Branch   Branch
	Children []*BranchTree
}

// TotalNodes returns the size of the tree rooted at this node.
func (t *BranchTree) TotalNodes() int {
	if t == nil {
		return 0
	}
	n := 1
	for _, c := range t.Children {
		n += c.TotalNodes()
	}
	return n
}
