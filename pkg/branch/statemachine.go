package branch

import "github.com/ardentforge/branchctl/pkg/domain"

// transitions is the whitelist adjacency for domain.Branch.Status:
//
//	Pending  -> Active, Failed
//	Active   -> Completed, Failed
//	Completed -> Merging, Failed
//	Merging  -> Merged, Failed
//	Merged, Failed -> (none, terminal)
var transitions = map[domain.BranchStatus][]domain.BranchStatus{
	domain.BranchPending:   {domain.BranchActive, domain.BranchFailed},
	domain.BranchActive:    {domain.BranchCompleted, domain.BranchFailed},
	domain.BranchCompleted: {domain.BranchMerging, domain.BranchFailed},
	domain.BranchMerging:   {domain.BranchMerged, domain.BranchFailed},
	domain.BranchMerged:    {},
	domain.BranchFailed:    {},
}

// canTransition reports whether the (from, to) pair is in the whitelist.
// Terminal states and self-transitions both return false.
func canTransition(from, to domain.BranchStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// mrTransitions is the whitelist for domain.MergeRequest.Status. Unlike
// branches, self-transitions are permitted (spec: "Self-transitions
// allowed").
var mrTransitions = map[domain.MergeRequestStatus][]domain.MergeRequestStatus{
	domain.MergeRequestPending:       {domain.MergeRequestPending, domain.MergeRequestApproved, domain.MergeRequestRejected},
	domain.MergeRequestApproved:      {domain.MergeRequestApproved, domain.MergeRequestInProgress, domain.MergeRequestRejected},
	domain.MergeRequestInProgress:    {domain.MergeRequestInProgress, domain.MergeRequestHasConflicts, domain.MergeRequestReadyToCommit},
	domain.MergeRequestHasConflicts:  {domain.MergeRequestHasConflicts, domain.MergeRequestReadyToCommit},
	domain.MergeRequestReadyToCommit: {domain.MergeRequestReadyToCommit, domain.MergeRequestHasConflicts, domain.MergeRequestCommitted},
	domain.MergeRequestCommitted:     {},
	domain.MergeRequestRejected:      {},
}

func canTransitionMergeRequest(from, to domain.MergeRequestStatus) bool {
	for _, allowed := range mrTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
