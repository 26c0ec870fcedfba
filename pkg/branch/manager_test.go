package branch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
	"github.com/ardentforge/branchctl/pkg/merge"
)

func newTestManager(t *testing.T) (*Manager, *memoryRepository, *memorySessionManager, string) {
	t.Helper()
	root := t.TempDir()
	basePath := filepath.Join(root, "base")
	require.NoError(t, os.MkdirAll(basePath, 0o755))

	repo := newMemoryRepository()
	sessions := newMemorySessionManager(filepath.Join(root, "sessions"))
	registry := merge.NewRegistry(diskFileSystem{})

	mgr := NewManager(repo, sessions, registry, DefaultMaxBranches)
	return mgr, repo, sessions, basePath
}

func TestCreateBranchFromBasePath(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)

	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name:              "feature-x",
		ExecutionStrategy: domain.Sequential(),
		MergeStrategy:     "union",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	b, err := mgr.GetBranch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchPending, b.Status)
	assert.Nil(t, b.ParentID)
}

func TestCreateBranchRejectsInvalidConfig(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)

	_, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name:              "bad",
		ExecutionStrategy: domain.Parallel(9),
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestCreateBranchEnforcesMaxBranchesCap(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	mgr.maxBranches = 1

	_, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "first", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	_, err = mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "second", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindLimitExceeded, errors.GetKind(err))
}

func TestCreateBranchFromParentBranch(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)

	parentID, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "parent", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	childID, err := mgr.CreateBranch(context.Background(), domain.BranchSourceFrom(parentID), domain.BranchConfig{
		Name: "child", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	child, err := mgr.GetBranch(context.Background(), childID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parentID, *child.ParentID)

	parent, err := mgr.GetBranch(context.Background(), parentID)
	require.NoError(t, err)
	assert.Contains(t, parent.Children, childID)
}

func TestCreateBranchSnapshotSourceNotImplemented(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	_, err := mgr.CreateBranch(context.Background(), domain.SnapshotSource("s1", time.Now(), nil), domain.BranchConfig{
		Name: "snap", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestUpdateStatusFollowsWhitelist(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchCompleted))

	err = mgr.UpdateStatus(context.Background(), id, domain.BranchPending)
	require.Error(t, err)
	assert.Equal(t, errors.KindStateConflict, errors.GetKind(err))
}

func TestUpdateStatusRejectsTransitionFromTerminal(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchFailed))

	err = mgr.UpdateStatus(context.Background(), id, domain.BranchActive)
	require.Error(t, err)

	b, err := mgr.GetBranch(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b.CompletedAt)
}

func TestRequestMergeRequiresCompletedBranch(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	_, err = mgr.RequestMerge(context.Background(), id, "union", true)
	require.Error(t, err)
	assert.Equal(t, errors.KindStateConflict, errors.GetKind(err))
}

func TestRequestMergeAutoApprovesWhenNotRequired(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchCompleted))

	mrID, err := mgr.RequestMerge(context.Background(), id, "union", false)
	require.NoError(t, err)

	mr, err := mgr.repo.GetMergeRequest(context.Background(), mrID)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeRequestApproved, mr.Status)
	require.NotNil(t, mr.ApprovedBy)
	assert.Equal(t, "auto", *mr.ApprovedBy)
}

func TestRequestMergeRejectsUnregisteredStrategy(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchCompleted))

	_, err = mgr.RequestMerge(context.Background(), id, "nonexistent", true)
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestExecuteMergeRequiresApproval(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchCompleted))

	mrID, err := mgr.RequestMerge(context.Background(), id, "union", true)
	require.NoError(t, err)

	_, err = mgr.ExecuteMerge(context.Background(), mrID)
	require.Error(t, err)
	assert.Equal(t, errors.KindStateConflict, errors.GetKind(err))
}

func TestExecuteMergeRejectsRootBranch(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchCompleted))

	mrID, err := mgr.RequestMerge(context.Background(), id, "union", false)
	require.NoError(t, err)

	_, err = mgr.ExecuteMerge(context.Background(), mrID)
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestExecuteMergeAndCommitEndToEnd(t *testing.T) {
	mgr, repo, sessions, basePath := newTestManager(t)

	parentID, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "parent", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), parentID, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), parentID, domain.BranchCompleted))

	childID, err := mgr.CreateBranch(context.Background(), domain.BranchSourceFrom(parentID), domain.BranchConfig{
		Name: "child", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	child, err := mgr.GetBranch(context.Background(), childID)
	require.NoError(t, err)
	childPath, ok := sessions.SessionPath(context.Background(), child.SessionID)
	require.True(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(childPath, "new-file.txt"), []byte("hello"), 0o644))

	require.NoError(t, mgr.UpdateStatus(context.Background(), childID, domain.BranchActive))
	require.NoError(t, mgr.UpdateStatus(context.Background(), childID, domain.BranchCompleted))

	mrID, err := mgr.RequestMerge(context.Background(), childID, "union", false)
	require.NoError(t, err)

	result, err := mgr.ExecuteMerge(context.Background(), mrID)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)
	require.Len(t, result.MergedChanges, 1)

	mr, err := repo.GetMergeRequest(context.Background(), mrID)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeRequestReadyToCommit, mr.Status)
	require.NotNil(t, mr.StagingSessionID)

	branchAfterExecute, err := repo.GetBranch(context.Background(), childID)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchMerging, branchAfterExecute.Status)

	require.NoError(t, mgr.CommitMerge(context.Background(), mrID))

	mr, err = repo.GetMergeRequest(context.Background(), mrID)
	require.NoError(t, err)
	assert.Equal(t, domain.MergeRequestCommitted, mr.Status)
	require.NotNil(t, mr.CompletedAt)

	finalBranch, err := repo.GetBranch(context.Background(), childID)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchMerged, finalBranch.Status)
}

func TestAbortBranchRollsBackSessionAndMarksFailed(t *testing.T) {
	mgr, repo, _, basePath := newTestManager(t)
	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	require.NoError(t, mgr.AbortBranch(context.Background(), id))

	b, err := repo.GetBranch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchFailed, b.Status)
	require.NotNil(t, b.CompletedAt)
}

func TestRecoverBranchesFailsMissingSessionsAndResetsActive(t *testing.T) {
	mgr, repo, sessions, basePath := newTestManager(t)

	activeID, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "active", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), activeID, domain.BranchActive))

	goneID, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "gone", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	goneBranch, err := repo.GetBranch(context.Background(), goneID)
	require.NoError(t, err)
	goneSessionPath, ok := sessions.SessionPath(context.Background(), goneBranch.SessionID)
	require.True(t, ok)
	require.NoError(t, os.RemoveAll(goneSessionPath))
	delete(sessions.paths, goneBranch.SessionID)

	recovered, err := mgr.RecoverBranches(context.Background())
	require.NoError(t, err)
	assert.Contains(t, recovered, activeID)
	assert.NotContains(t, recovered, goneID)

	active, err := repo.GetBranch(context.Background(), activeID)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchPending, active.Status)

	gone, err := repo.GetBranch(context.Background(), goneID)
	require.NoError(t, err)
	assert.Equal(t, domain.BranchFailed, gone.Status)
}

func TestGetBranchTreeCountsAllNodes(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)

	rootID, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "root", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	_, err = mgr.CreateBranch(context.Background(), domain.BranchSourceFrom(rootID), domain.BranchConfig{
		Name: "child-a", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	_, err = mgr.CreateBranch(context.Background(), domain.BranchSourceFrom(rootID), domain.BranchConfig{
		Name: "child-b", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)

	tree, err := mgr.GetBranchTree(context.Background(), rootID)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.TotalNodes())
	assert.Len(t, tree.Children, 2)
}

func TestObserverReceivesLifecycleEvents(t *testing.T) {
	mgr, _, _, basePath := newTestManager(t)

	var received []EventType
	mgr.AddObserver(ObserverFunc(func(e Event) {
		received = append(received, e.Type)
	}))

	id, err := mgr.CreateBranch(context.Background(), domain.BaseSource(basePath), domain.BranchConfig{
		Name: "x", ExecutionStrategy: domain.Sequential(), MergeStrategy: "union",
	})
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateStatus(context.Background(), id, domain.BranchActive))

	assert.Contains(t, received, EventBranchCreated)
	assert.Contains(t, received, EventBranchStatusChanged)
}
