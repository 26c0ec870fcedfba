// Package branch implements the Branch Manager: the lifecycle state machine,
// persistence boundary, and merge-workflow driver for the branching
// orchestrator's central entity.
package branch

import (
	"context"
	"sync"
	"time"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
	"github.com/ardentforge/branchctl/pkg/merge"
	"github.com/ardentforge/branchctl/pkg/session"
	"github.com/ardentforge/branchctl/pkg/telemetry"
)

const (
	// DefaultMaxBranches is the default active-branch cap (spec §4.4).
	DefaultMaxBranches = 8
	minMaxBranches     = 1
	maxMaxBranches     = 8
)

// Manager owns the lifecycle of every branch and merge request. It holds a
// shared repository, a session manager, and an immutable merge registry;
// the session-manager calls it makes are never held across a call into
// another Manager method.
type Manager struct {
	mu sync.Mutex

	repo        Repository
	sessions    session.Manager
	registry    *merge.Registry
	maxBranches int

	observers []Observer
}

// NewManager constructs a Manager. maxBranches is clamped into 1..=8,
// defaulting to DefaultMaxBranches when 0.
func NewManager(repo Repository, sessions session.Manager, registry *merge.Registry, maxBranches int) *Manager {
	if maxBranches == 0 {
		maxBranches = DefaultMaxBranches
	}
	if maxBranches < minMaxBranches {
		maxBranches = minMaxBranches
	}
	if maxBranches > maxMaxBranches {
		maxBranches = maxMaxBranches
	}
	return &Manager{repo: repo, sessions: sessions, registry: registry, maxBranches: maxBranches}
}

// AddObserver registers o to receive subsequent events. Safe to call
// concurrently with event publication; an event already being published
// when o is added is not delivered to it.
func (m *Manager) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Manager) publish(e Event) {
	m.mu.Lock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, o := range observers {
		o.HandleBranchEvent(e)
	}
}

// CreateBranch resolves source to a base path, opens a new session atop it,
// and persists a Pending branch. If persistence fails the session is rolled
// back.
func (m *Manager) CreateBranch(ctx context.Context, source domain.BranchSource, config domain.BranchConfig) (domain.BranchId, error) {
	if err := config.ExecutionStrategy.Validate(); err != nil {
		return "", err
	}
	if len(config.Name) < 1 || len(config.Name) > 256 {
		return "", errors.Validation("branch name must be 1..=256 characters")
	}

	active, err := m.repo.CountActiveBranches(ctx)
	if err != nil {
		return "", errors.Storage(err, "failed to count active branches")
	}
	if active >= m.maxBranches {
		return "", errors.MaxBranchesExceeded(active, m.maxBranches)
	}

	var parentID *domain.BranchId
	basePath, err := m.resolveSource(ctx, source, &parentID)
	if err != nil {
		return "", err
	}

	sessionID, err := m.sessions.BeginSession(ctx, basePath)
	if err != nil {
		return "", errors.Session(err, "failed to begin session for new branch")
	}

	b := domain.Branch{
		ID:        domain.NewBranchId(),
		ParentID:  parentID,
		SessionID: sessionID,
		Name:      config.Name,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    domain.BranchPending,
	}

	if err := m.repo.CreateBranch(ctx, b); err != nil {
		_ = m.sessions.RollbackSession(ctx, sessionID)
		return "", errors.Storage(err, "failed to persist new branch")
	}

	if parentID != nil {
		if parent, err := m.repo.GetBranch(ctx, *parentID); err == nil {
			parent.AddChild(b.ID)
			_ = m.repo.UpdateBranch(ctx, parent)
		}
	}

	telemetry.RecordBranchCreated()
	m.publish(newBranchEvent(EventBranchCreated, b.ID, nil))

	return b.ID, nil
}

func (m *Manager) resolveSource(ctx context.Context, source domain.BranchSource, parentID **domain.BranchId) (string, error) {
	switch source.Kind {
	case domain.SourceBase:
		return source.Path, nil

	case domain.SourceBranch:
		parent, err := m.repo.GetBranch(ctx, source.ParentBranchID)
		if err != nil {
			return "", errors.BranchNotFound(string(source.ParentBranchID))
		}
		path, ok := m.sessions.SessionPath(ctx, parent.SessionID)
		if !ok {
			return "", errors.SessionNotFound(parent.SessionID)
		}
		id := parent.ID
		*parentID = &id
		return path, nil

	case domain.SourceSnapshot:
		return "", errors.Validation("snapshot branch source is not implemented")

	default:
		return "", errors.Validation("unknown branch source kind: " + string(source.Kind))
	}
}

// GetBranch returns a branch by id.
func (m *Manager) GetBranch(ctx context.Context, id domain.BranchId) (domain.Branch, error) {
	return m.repo.GetBranch(ctx, id)
}

// ListActiveBranches returns all non-terminal branches.
func (m *Manager) ListActiveBranches(ctx context.Context) ([]domain.Branch, error) {
	return m.repo.ListActiveBranches(ctx)
}

// ListBranchesByParent returns the direct children of parentID.
func (m *Manager) ListBranchesByParent(ctx context.Context, parentID domain.BranchId) ([]domain.Branch, error) {
	return m.repo.ListBranchesByParent(ctx, parentID)
}

// UpdateStatus validates and persists a branch status transition, stamping
// CompletedAt on entry into a terminal state.
func (m *Manager) UpdateStatus(ctx context.Context, id domain.BranchId, newStatus domain.BranchStatus) error {
	b, err := m.repo.GetBranch(ctx, id)
	if err != nil {
		return errors.BranchNotFound(string(id))
	}

	if b.Status.Terminal() || !canTransition(b.Status, newStatus) {
		return errors.InvalidStatusTransition("branch", string(b.Status), string(newStatus))
	}

	b.Status = newStatus
	if newStatus.Terminal() && b.CompletedAt == nil {
		now := time.Now()
		b.CompletedAt = &now
	}

	if err := m.repo.UpdateBranch(ctx, b); err != nil {
		return errors.Storage(err, "failed to persist branch status")
	}

	if newStatus.Terminal() {
		telemetry.RecordBranchTerminal(newStatus == domain.BranchFailed)
	}
	m.publish(newBranchEvent(EventBranchStatusChanged, id, newStatus))
	return nil
}

// CompleteBranch moves an Active branch to Completed, attaching its
// execution result. Used by the execution engine once every agent has been
// dispatched (or the branch's timeout has elapsed).
func (m *Manager) CompleteBranch(ctx context.Context, id domain.BranchId, result domain.BranchResult) error {
	b, err := m.repo.GetBranch(ctx, id)
	if err != nil {
		return errors.BranchNotFound(string(id))
	}
	if b.Status.Terminal() || !canTransition(b.Status, domain.BranchCompleted) {
		return errors.InvalidStatusTransition("branch", string(b.Status), string(domain.BranchCompleted))
	}

	b.Status = domain.BranchCompleted
	b.Result = &result
	now := time.Now()
	b.CompletedAt = &now

	if err := m.repo.UpdateBranch(ctx, b); err != nil {
		return errors.Storage(err, "failed to persist completed branch")
	}

	telemetry.RecordBranchTerminal(false)
	m.publish(newBranchEvent(EventBranchStatusChanged, id, b.Status))
	return nil
}

// RequestMerge creates a Pending merge request for a Completed branch,
// auto-approving it when requiresApproval is false.
func (m *Manager) RequestMerge(ctx context.Context, branchID domain.BranchId, strategy string, requiresApproval bool) (domain.MergeRequestId, error) {
	b, err := m.repo.GetBranch(ctx, branchID)
	if err != nil {
		return "", errors.BranchNotFound(string(branchID))
	}
	if b.Status != domain.BranchCompleted {
		return "", errors.InvalidBranchState(string(domain.BranchCompleted), string(b.Status))
	}
	if !m.registry.Has(strategy) {
		return "", errors.Validation("merge strategy not registered: " + strategy)
	}

	mr := domain.MergeRequest{
		ID:               domain.NewMergeRequestId(),
		BranchID:         branchID,
		ParentID:         b.ParentID,
		Strategy:         strategy,
		Status:           domain.MergeRequestPending,
		RequiresApproval: requiresApproval,
		CreatedAt:        time.Now(),
	}

	if !requiresApproval {
		now := time.Now()
		approver := "auto"
		mr.Status = domain.MergeRequestApproved
		mr.ApprovedBy = &approver
		mr.ApprovedAt = &now
	}

	if err := m.repo.CreateMergeRequest(ctx, mr); err != nil {
		return "", errors.Storage(err, "failed to persist merge request")
	}

	telemetry.MergeRequestsCreated.Inc()
	m.publish(newMergeRequestEvent(EventMergeRequestCreated, mr.ID, branchID, nil))

	return mr.ID, nil
}

// ApproveMerge moves a Pending merge request to Approved.
func (m *Manager) ApproveMerge(ctx context.Context, id domain.MergeRequestId, approver string) error {
	mr, err := m.repo.GetMergeRequest(ctx, id)
	if err != nil {
		return errors.MergeRequestNotFound(string(id))
	}
	if !canTransitionMergeRequest(mr.Status, domain.MergeRequestApproved) {
		return errors.InvalidStatusTransition("merge_request", string(mr.Status), string(domain.MergeRequestApproved))
	}

	now := time.Now()
	mr.Status = domain.MergeRequestApproved
	mr.ApprovedBy = &approver
	mr.ApprovedAt = &now

	if err := m.repo.UpdateMergeRequest(ctx, mr); err != nil {
		return errors.Storage(err, "failed to persist merge request approval")
	}

	m.publish(newMergeRequestEvent(EventMergeRequestStatusChanged, id, mr.BranchID, mr.Status))
	return nil
}

// RejectMerge moves a Pending or Approved merge request to Rejected,
// recording reason. Supplements the spec's explicit lifecycle with the
// original_source-derived reject_merge operation.
func (m *Manager) RejectMerge(ctx context.Context, id domain.MergeRequestId, reason string) error {
	mr, err := m.repo.GetMergeRequest(ctx, id)
	if err != nil {
		return errors.MergeRequestNotFound(string(id))
	}
	if !canTransitionMergeRequest(mr.Status, domain.MergeRequestRejected) {
		return errors.InvalidStatusTransition("merge_request", string(mr.Status), string(domain.MergeRequestRejected))
	}

	mr.Status = domain.MergeRequestRejected
	mr.RejectionReason = &reason

	if err := m.repo.UpdateMergeRequest(ctx, mr); err != nil {
		return errors.Storage(err, "failed to persist merge request rejection")
	}

	m.publish(newMergeRequestEvent(EventMergeRequestStatusChanged, id, mr.BranchID, mr.Status))
	return nil
}

// ExecuteMerge runs the merge strategy for an Approved merge request,
// staging the result without committing it to the parent.
func (m *Manager) ExecuteMerge(ctx context.Context, id domain.MergeRequestId) (domain.MergeResult, error) {
	start := time.Now()
	defer func() { telemetry.MergeDurationSeconds.Observe(time.Since(start).Seconds()) }()

	mr, err := m.repo.GetMergeRequest(ctx, id)
	if err != nil {
		return domain.MergeResult{}, errors.MergeRequestNotFound(string(id))
	}
	if mr.Status != domain.MergeRequestApproved {
		return domain.MergeResult{}, errors.MergeNotApproved(string(id))
	}

	b, err := m.repo.GetBranch(ctx, mr.BranchID)
	if err != nil {
		return domain.MergeResult{}, errors.BranchNotFound(string(mr.BranchID))
	}
	if b.Status != domain.BranchCompleted {
		return domain.MergeResult{}, errors.InvalidBranchState(string(domain.BranchCompleted), string(b.Status))
	}
	if b.ParentID == nil {
		return domain.MergeResult{}, errors.Validation("root-branch merge is not implemented")
	}

	parent, err := m.repo.GetBranch(ctx, *b.ParentID)
	if err != nil {
		return domain.MergeResult{}, errors.BranchNotFound(string(*b.ParentID))
	}
	parentPath, ok := m.sessions.SessionPath(ctx, parent.SessionID)
	if !ok {
		return domain.MergeResult{}, errors.SessionNotFound(parent.SessionID)
	}

	stagingSessionID, err := m.sessions.BeginSession(ctx, parentPath)
	if err != nil {
		return domain.MergeResult{}, errors.Session(err, "failed to begin staging session")
	}

	succeeded := false
	defer func() {
		if !succeeded {
			_ = m.sessions.RollbackSession(ctx, stagingSessionID)
		}
	}()

	branchPath, ok := m.sessions.SessionPath(ctx, b.SessionID)
	if !ok {
		return domain.MergeResult{}, errors.SessionNotFound(b.SessionID)
	}

	changes, err := collectFileChanges(branchPath)
	if err != nil {
		return domain.MergeResult{}, err
	}

	strategy, ok := m.registry.Get(mr.Strategy)
	if !ok {
		return domain.MergeResult{}, errors.Validation("merge strategy not registered: " + mr.Strategy)
	}

	result, err := strategy.Merge(ctx, parentPath, []merge.BranchChanges{
		{BranchID: b.ID, Path: branchPath, Changes: changes},
	})
	if err != nil {
		return domain.MergeResult{}, err
	}

	if len(result.Conflicts) == 0 {
		stagingPath, ok := m.sessions.SessionPath(ctx, stagingSessionID)
		if !ok {
			return domain.MergeResult{}, errors.SessionNotFound(stagingSessionID)
		}
		if err := applyMergedChanges(branchPath, stagingPath, result.MergedChanges); err != nil {
			return domain.MergeResult{}, err
		}
	}

	staged := make([]domain.StagedChange, 0, len(result.MergedChanges))
	for _, c := range result.MergedChanges {
		staged = append(staged, domain.StagedChange{Change: c})
	}

	now := time.Now()
	mr.StagingSessionID = &stagingSessionID
	mr.StagedChanges = staged
	mr.Conflicts = result.Conflicts
	mr.StartedAt = &now
	if len(result.Conflicts) > 0 {
		mr.Status = domain.MergeRequestHasConflicts
		telemetry.MergeConflictsDetected.Add(float64(len(result.Conflicts)))
	} else {
		mr.Status = domain.MergeRequestReadyToCommit
	}

	if err := m.repo.UpdateMergeRequest(ctx, mr); err != nil {
		return domain.MergeResult{}, errors.Storage(err, "failed to persist executed merge request")
	}

	b.Status = domain.BranchMerging
	if err := m.repo.UpdateBranch(ctx, b); err != nil {
		return domain.MergeResult{}, errors.Storage(err, "failed to move branch to merging")
	}

	succeeded = true
	m.publish(newMergeRequestEvent(EventMergeRequestStatusChanged, id, b.ID, mr.Status))

	return domain.MergeResult{MergedChanges: result.MergedChanges, Conflicts: result.Conflicts, StrategyUsed: result.StrategyUsed}, nil
}

// CommitMerge commits a ReadyToCommit merge request's staging session to the
// parent, marking both the merge request and the branch terminal.
func (m *Manager) CommitMerge(ctx context.Context, id domain.MergeRequestId) error {
	mr, err := m.repo.GetMergeRequest(ctx, id)
	if err != nil {
		return errors.MergeRequestNotFound(string(id))
	}
	if mr.Status != domain.MergeRequestReadyToCommit {
		return errors.InvalidStatusTransition("merge_request", string(mr.Status), string(domain.MergeRequestCommitted))
	}
	if mr.StagingSessionID == nil {
		return errors.Validation("merge request has no staging session")
	}

	if err := m.sessions.CommitSession(ctx, *mr.StagingSessionID); err != nil {
		return errors.Session(err, "failed to commit staging session")
	}

	now := time.Now()
	mr.Status = domain.MergeRequestCommitted
	mr.CompletedAt = &now
	if err := m.repo.UpdateMergeRequest(ctx, mr); err != nil {
		return errors.Storage(err, "failed to persist committed merge request")
	}

	b, err := m.repo.GetBranch(ctx, mr.BranchID)
	if err != nil {
		return errors.BranchNotFound(string(mr.BranchID))
	}
	b.Status = domain.BranchMerged
	b.CompletedAt = &now
	if err := m.repo.UpdateBranch(ctx, b); err != nil {
		return errors.Storage(err, "failed to persist merged branch")
	}

	telemetry.MergeRequestsCommitted.Inc()
	telemetry.RecordBranchTerminal(false)
	m.publish(newMergeRequestEvent(EventMergeRequestStatusChanged, id, b.ID, mr.Status))
	m.publish(newBranchEvent(EventBranchStatusChanged, b.ID, b.Status))

	return nil
}

// AbortBranch rolls back a branch's session and marks it Failed. Both steps
// are attempted regardless of the other's outcome.
func (m *Manager) AbortBranch(ctx context.Context, id domain.BranchId) error {
	b, err := m.repo.GetBranch(ctx, id)
	if err != nil {
		return errors.BranchNotFound(string(id))
	}

	sessionErr := m.sessions.RollbackSession(ctx, b.SessionID)

	b.Status = domain.BranchFailed
	now := time.Now()
	b.CompletedAt = &now
	updateErr := m.repo.UpdateBranch(ctx, b)

	telemetry.RecordBranchTerminal(true)
	m.publish(newBranchEvent(EventBranchStatusChanged, id, b.Status))

	if sessionErr != nil {
		return errors.Session(sessionErr, "failed to roll back aborted branch session")
	}
	if updateErr != nil {
		return errors.Storage(updateErr, "failed to persist aborted branch")
	}
	return nil
}

// RecoverBranches runs once at startup: branches whose session path is gone
// are marked Failed; Active branches are moved back to Pending for the
// caller to redrive. A branch whose update fails to persist is skipped and
// recovery continues with the next; the failure is not logged. The returned
// slice lists only branches successfully recovered.
func (m *Manager) RecoverBranches(ctx context.Context) ([]domain.BranchId, error) {
	active, err := m.repo.ListActiveBranches(ctx)
	if err != nil {
		return nil, errors.Storage(err, "failed to list active branches for recovery")
	}

	var recovered []domain.BranchId
	for _, b := range active {
		_, ok := m.sessions.SessionPath(ctx, b.SessionID)
		if !ok {
			b.Status = domain.BranchFailed
			now := time.Now()
			b.CompletedAt = &now
			if err := m.repo.UpdateBranch(ctx, b); err != nil {
				continue
			}
			m.publish(newBranchEvent(EventBranchStatusChanged, b.ID, b.Status))
			continue
		}

		if b.Status == domain.BranchActive {
			b.Status = domain.BranchPending
			if err := m.repo.UpdateBranch(ctx, b); err != nil {
				continue
			}
			m.publish(newBranchEvent(EventBranchStatusChanged, b.ID, b.Status))
		}

		recovered = append(recovered, b.ID)
	}

	return recovered, nil
}

// GetBranchTree returns the DFS tree rooted at rootID.
func (m *Manager) GetBranchTree(ctx context.Context, rootID domain.BranchId) (*domain.BranchTree, error) {
	root, err := m.repo.GetBranch(ctx, rootID)
	if err != nil {
		return nil, errors.BranchNotFound(string(rootID))
	}
	return m.buildTree(ctx, root)
}

func (m *Manager) buildTree(ctx context.Context, b domain.Branch) (*domain.BranchTree, error) {
	children, err := m.repo.ListBranchesByParent(ctx, b.ID)
	if err != nil {
		return nil, errors.Storage(err, "failed to list branches by parent")
	}

	node := &domain.BranchTree{Branch: b}
	for _, c := range children {
		childTree, err := m.buildTree(ctx, c)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childTree)
	}
	return node, nil
}
