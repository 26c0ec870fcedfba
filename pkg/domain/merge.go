package domain

import "time"

// ConflictKind is an informational discriminant for richer conflict
// rendering, additive over the spec's single Conflict shape.
type ConflictKind string

const (
	ConflictContent      ConflictKind = "content"
	ConflictDeleteModify ConflictKind = "delete-modify"
	ConflictAddAdd       ConflictKind = "add-add"
)

// Conflict describes an unresolved overlap between two or more branches'
// changes to the same path. LineStart == 0 denotes a file-level conflict
// with no line context.
type Conflict struct {
	Path        string
	BranchIDs   []BranchId
	Description string
	LineStart   int
	LineEnd     int
	BaseContent string
	LeftContent string
	RightContent string
	Kind        ConflictKind
}

// MergeResult is the output of a merge strategy.
type MergeResult struct {
	MergedChanges []FileChange
	Conflicts     []Conflict
	StrategyUsed  string
}

// HasConflicts reports whether the result carries unresolved conflicts.
func (m MergeResult) HasConflicts() bool { return len(m.Conflicts) > 0 }

// MergeRequestStatus is the stable, lowercase-kebab wire status of a MergeRequest.
type MergeRequestStatus string

const (
	MergeRequestPending        MergeRequestStatus = "pending"
	MergeRequestApproved       MergeRequestStatus = "approved"
	MergeRequestInProgress     MergeRequestStatus = "in-progress"
	MergeRequestHasConflicts   MergeRequestStatus = "has-conflicts"
	MergeRequestReadyToCommit  MergeRequestStatus = "ready-to-commit"
	MergeRequestCommitted      MergeRequestStatus = "committed"
	MergeRequestRejected       MergeRequestStatus = "rejected"
)

// StagedChange is a FileChange queued in a staging session, pending commit.
type StagedChange struct {
	Change FileChange
}

// MergeRequest tracks the approval and execution workflow for merging a
// branch back into its parent.
type MergeRequest struct {
	ID       MergeRequestId
	BranchID BranchId
	ParentID *BranchId

	Strategy string
	Status   MergeRequestStatus

	RequiresApproval bool
	ApprovedBy       *string
	ApprovedAt       *time.Time

	CreatedAt time.Time

	StagingSessionID *string
	StagedChanges    []StagedChange
	Conflicts        []Conflict

	StartedAt   *time.Time
	CompletedAt *time.Time

	RejectionReason *string
}
