package storage

import (
	"context"
	"testing"
	"time"

	"github.com/ardentforge/branchctl/pkg/domain"
)

func testMergeRequest(id domain.MergeRequestId, branchID domain.BranchId) domain.MergeRequest {
	return domain.MergeRequest{
		ID:               id,
		BranchID:         branchID,
		Strategy:         "three-way",
		Status:           domain.MergeRequestPending,
		RequiresApproval: true,
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

func TestMergeRequestStoreLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := testBranch("branch-mr")
	if err := store.CreateBranch(ctx, b); err != nil {
		t.Fatalf("create branch: %v", err)
	}

	mr := testMergeRequest("mr-1", b.ID)
	if err := store.CreateMergeRequest(ctx, mr); err != nil {
		t.Fatalf("create merge request: %v", err)
	}

	fetched, err := store.GetMergeRequest(ctx, mr.ID)
	if err != nil {
		t.Fatalf("get merge request: %v", err)
	}
	if fetched.Status != domain.MergeRequestPending || !fetched.RequiresApproval {
		t.Fatalf("unexpected merge request: %+v", fetched)
	}

	approver := "reviewer@example.com"
	now := time.Now().UTC().Truncate(time.Second)
	fetched.Status = domain.MergeRequestApproved
	fetched.ApprovedBy = &approver
	fetched.ApprovedAt = &now
	if err := store.UpdateMergeRequest(ctx, fetched); err != nil {
		t.Fatalf("update merge request: %v", err)
	}

	reloaded, err := store.GetMergeRequest(ctx, mr.ID)
	if err != nil {
		t.Fatalf("get merge request after update: %v", err)
	}
	if reloaded.Status != domain.MergeRequestApproved {
		t.Fatalf("expected approved status, got %s", reloaded.Status)
	}
	if reloaded.ApprovedBy == nil || *reloaded.ApprovedBy != approver {
		t.Fatalf("expected approver to round-trip, got %+v", reloaded.ApprovedBy)
	}
}

func TestMergeRequestStoreConflictsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := testBranch("branch-mr-conflict")
	if err := store.CreateBranch(ctx, b); err != nil {
		t.Fatalf("create branch: %v", err)
	}

	mr := testMergeRequest("mr-conflict", b.ID)
	mr.Status = domain.MergeRequestHasConflicts
	mr.Conflicts = []domain.Conflict{
		{Path: "main.go", BranchIDs: []domain.BranchId{b.ID}, Kind: domain.ConflictContent, LineStart: 10, LineEnd: 12},
	}
	if err := store.CreateMergeRequest(ctx, mr); err != nil {
		t.Fatalf("create merge request: %v", err)
	}

	fetched, err := store.GetMergeRequest(ctx, mr.ID)
	if err != nil {
		t.Fatalf("get merge request: %v", err)
	}
	if len(fetched.Conflicts) != 1 || fetched.Conflicts[0].Path != "main.go" {
		t.Fatalf("expected conflict to round-trip, got %+v", fetched.Conflicts)
	}
}

func TestGetMergeRequestUnknownIDFails(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetMergeRequest(context.Background(), "does-not-exist"); err == nil {
		t.Fatalf("expected error for unknown merge request id")
	}
}
