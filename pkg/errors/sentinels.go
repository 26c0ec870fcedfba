package errors

import "fmt"

// InvalidStatusTransition reports an illegal branch or merge-request state
// transition.
func InvalidStatusTransition(entity, from, to string) *Error {
	return New(KindStateConflict, fmt.Sprintf("invalid %s status transition: %s -> %s", entity, from, to)).
		WithContext("entity", entity).
		WithContext("from", from).
		WithContext("to", to)
}

// InvalidBranchState reports that a branch is not in the state an operation requires.
func InvalidBranchState(expected, actual string) *Error {
	return New(KindStateConflict, fmt.Sprintf("invalid branch state: expected %s, got %s", expected, actual)).
		WithContext("expected", expected).
		WithContext("actual", actual)
}

// MergeNotApproved reports that execute_merge was called before approval.
func MergeNotApproved(id string) *Error {
	return New(KindStateConflict, "merge request is not approved").WithContext("merge_request_id", id)
}

// MergeRequestNotFound reports a missing merge request during execution.
func MergeRequestNotFound(id string) *Error {
	return New(KindNotFound, "merge request not found").WithContext("merge_request_id", id)
}

// BranchNotFound reports a missing branch.
func BranchNotFound(id string) *Error {
	return New(KindNotFound, "branch not found").WithContext("branch_id", id)
}

// MaxBranchesExceeded reports that the active-branch cap was hit.
func MaxBranchesExceeded(current, limit int) *Error {
	return New(KindLimitExceeded, fmt.Sprintf("max branches exceeded: %d/%d", current, limit)).
		WithContext("current", current).
		WithContext("limit", limit)
}

// TooManyBranches reports that a merge strategy received more than 8 branches.
func TooManyBranches(n int) *Error {
	return New(KindLimitExceeded, fmt.Sprintf("too many branches for merge: %d (max 8)", n)).
		WithContext("count", n)
}

// Validation wraps an arbitrary validation failure message.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// AgentFailed reports that an agent dispatch returned AgentBusy or errored.
func AgentFailed(agentID, reason string) *Error {
	return New(KindExecutionFailed, fmt.Sprintf("agent %s failed: %s", agentID, reason)).
		WithContext("agent_id", agentID).
		WithContext("reason", reason)
}

// Timeout reports that a branch execution exceeded its deadline.
func Timeout(branchID string, durationMs int64) *Error {
	return New(KindExecutionFailed, fmt.Sprintf("branch %s timed out after %dms", branchID, durationMs)).
		WithContext("branch_id", branchID).
		WithContext("duration_ms", durationMs)
}

// Cancelled reports that an execution was cancelled.
func Cancelled(branchID string) *Error {
	return New(KindExecutionFailed, "execution cancelled").WithContext("branch_id", branchID)
}

// Storage wraps an underlying repository error, preserving its cause.
func Storage(underlying error, message string) *Error {
	return Wrap(underlying, KindStorage, message)
}

// Session wraps an underlying session-manager error, preserving its cause.
func Session(underlying error, message string) *Error {
	return Wrap(underlying, KindSession, message)
}

// MergeFailed wraps an underlying merge I/O or content error.
func MergeFailed(message string) *Error {
	return New(KindMergeFailed, message)
}

// SessionNotFound reports that a session id is unknown to the Session Manager.
func SessionNotFound(sessionID string) *Error {
	return New(KindNotFound, "session not found").WithContext("session_id", sessionID)
}

// BasePathNotFound reports that begin_session's base path does not exist.
func BasePathNotFound(path string) *Error {
	return New(KindSession, "base path not found").WithContext("path", path)
}

// PolicyViolation reports a session operation rejected by workspace policy.
func PolicyViolation(reason string) *Error {
	return New(KindSession, "session policy violation").WithContext("reason", reason)
}

// CopyFailed reports an I/O failure while materializing a session's content.
func CopyFailed(underlying error, path string) *Error {
	return Wrap(underlying, KindSession, "failed to copy session content").WithContext("path", path)
}

// DiffFailed reports an I/O failure computing a session's net changes.
func DiffFailed(underlying error, sessionID string) *Error {
	return Wrap(underlying, KindSession, "failed to diff session").WithContext("session_id", sessionID)
}

// SessionConflict reports a concurrent modification detected at commit time.
func SessionConflict(path, originalHash, currentHash string) *Error {
	return New(KindSession, "session content changed since snapshot").
		WithContext("path", path).
		WithContext("original_hash", originalHash).
		WithContext("current_hash", currentHash)
}

// SessionDirectoryLost reports that a session's working directory vanished.
func SessionDirectoryLost(sessionID string) *Error {
	return New(KindSession, "session directory lost").WithContext("session_id", sessionID)
}

// CleanupFailed reports a failure releasing a session's resources.
func CleanupFailed(underlying error, sessionID string) *Error {
	return Wrap(underlying, KindSession, "session cleanup failed").WithContext("session_id", sessionID)
}

// ReadDirectoryFailed reports a failure walking a session directory.
func ReadDirectoryFailed(underlying error, path string) *Error {
	return Wrap(underlying, KindSession, "failed to read session directory").WithContext("path", path)
}
