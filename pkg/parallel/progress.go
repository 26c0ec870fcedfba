package parallel

import "github.com/ardentforge/branchctl/pkg/domain"

// ProgressStatus tags the phase a BranchProgress snapshot describes.
type ProgressStatus string

const (
	ProgressPending   ProgressStatus = "pending"
	ProgressExecuting ProgressStatus = "executing"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
)

// BranchProgress is one snapshot streamed to an optional progress channel
// while a branch executes. Status discriminates which of the remaining
// fields are meaningful: ActiveAgents only during Executing, FailureReason
// only during Failed.
type BranchProgress struct {
	BranchID        domain.BranchId
	TotalAgents     int
	CompletedAgents int
	ActiveAgents    int
	CurrentAgent    string
	PercentComplete float64
	Status          ProgressStatus
	FailureReason   string
}

func percentComplete(completed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(completed) / float64(total) * 100
}

// send delivers p to ch without blocking the caller; a full or nil channel
// silently drops the update, matching the spec's best-effort contract.
func send(ch chan<- BranchProgress, p BranchProgress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}
