package branch

import (
	"context"

	"github.com/ardentforge/branchctl/pkg/domain"
)

// Repository is the storage-agnostic persistence contract the Branch
// Manager drives every entity through. Implementations must make each
// operation atomic with respect to an observer that calls a Get* method
// after the mutating call returns.
//
//go:generate mockgen -package=branch -destination=mock_repository_test.go github.com/ardentforge/branchctl/pkg/branch Repository
type Repository interface {
	CreateBranch(ctx context.Context, b domain.Branch) error
	GetBranch(ctx context.Context, id domain.BranchId) (domain.Branch, error)
	UpdateBranch(ctx context.Context, b domain.Branch) error
	DeleteBranch(ctx context.Context, id domain.BranchId) error
	ListActiveBranches(ctx context.Context) ([]domain.Branch, error)
	ListBranchesByParent(ctx context.Context, parentID domain.BranchId) ([]domain.Branch, error)
	CountActiveBranches(ctx context.Context) (int, error)

	CreateMergeRequest(ctx context.Context, mr domain.MergeRequest) error
	GetMergeRequest(ctx context.Context, id domain.MergeRequestId) (domain.MergeRequest, error)
	UpdateMergeRequest(ctx context.Context, mr domain.MergeRequest) error
}
