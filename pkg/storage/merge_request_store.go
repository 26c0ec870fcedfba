package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
)

// CreateMergeRequest inserts a new merge request row.
func (s *Store) CreateMergeRequest(ctx context.Context, mr domain.MergeRequest) error {
	stagedJSON, err := json.Marshal(mr.StagedChanges)
	if err != nil {
		return errors.Storage(err, "marshal staged changes")
	}
	conflictsJSON, err := json.Marshal(mr.Conflicts)
	if err != nil {
		return errors.Storage(err, "marshal conflicts")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merge_requests (id, branch_id, parent_id, strategy, status, requires_approval,
			approved_by, approved_at, created_at, staging_session_id, staged_changes_json,
			conflicts_json, started_at, completed_at, rejection_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(mr.ID), string(mr.BranchID), parentIDValue(mr.ParentID), mr.Strategy, string(mr.Status),
		mr.RequiresApproval, nullableString(mr.ApprovedBy), nullableTime(mr.ApprovedAt), mr.CreatedAt,
		nullableString(mr.StagingSessionID), string(stagedJSON), string(conflictsJSON),
		nullableTime(mr.StartedAt), nullableTime(mr.CompletedAt), nullableString(mr.RejectionReason),
	)
	if err != nil {
		return errors.Storage(err, "insert merge request")
	}

	s.notify(newEvent(EventMergeRequested, "", string(mr.ID), string(mr.BranchID)))
	return nil
}

// GetMergeRequest loads a single merge request by id.
func (s *Store) GetMergeRequest(ctx context.Context, id domain.MergeRequestId) (domain.MergeRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, branch_id, parent_id, strategy, status, requires_approval, approved_by, approved_at,
			created_at, staging_session_id, staged_changes_json, conflicts_json, started_at,
			completed_at, rejection_reason
		FROM merge_requests WHERE id = ?`, string(id))

	mr, err := scanMergeRequest(row.Scan)
	if err == sql.ErrNoRows {
		return domain.MergeRequest{}, errors.MergeRequestNotFound(string(id))
	}
	if err != nil {
		return domain.MergeRequest{}, errors.Storage(err, "scan merge request")
	}
	return mr, nil
}

// UpdateMergeRequest persists a merge request's full current state.
func (s *Store) UpdateMergeRequest(ctx context.Context, mr domain.MergeRequest) error {
	stagedJSON, err := json.Marshal(mr.StagedChanges)
	if err != nil {
		return errors.Storage(err, "marshal staged changes")
	}
	conflictsJSON, err := json.Marshal(mr.Conflicts)
	if err != nil {
		return errors.Storage(err, "marshal conflicts")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE merge_requests SET branch_id = ?, parent_id = ?, strategy = ?, status = ?,
			requires_approval = ?, approved_by = ?, approved_at = ?, staging_session_id = ?,
			staged_changes_json = ?, conflicts_json = ?, started_at = ?, completed_at = ?,
			rejection_reason = ?
		WHERE id = ?`,
		string(mr.BranchID), parentIDValue(mr.ParentID), mr.Strategy, string(mr.Status),
		mr.RequiresApproval, nullableString(mr.ApprovedBy), nullableTime(mr.ApprovedAt),
		nullableString(mr.StagingSessionID), string(stagedJSON), string(conflictsJSON),
		nullableTime(mr.StartedAt), nullableTime(mr.CompletedAt), nullableString(mr.RejectionReason),
		string(mr.ID),
	)
	if err != nil {
		return errors.Storage(err, "update merge request")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.MergeRequestNotFound(string(mr.ID))
	}

	s.notify(newEvent(EventMergeStatusChanged, "", string(mr.ID), string(mr.Status)))
	return nil
}

func scanMergeRequest(scan rowScanner) (domain.MergeRequest, error) {
	var (
		id, branchID, strategy, status string
		parentID                       sql.NullString
		requiresApproval                bool
		approvedBy                      sql.NullString
		approvedAt                      sql.NullTime
		createdAt                       time.Time
		stagingSessionID                sql.NullString
		stagedJSON, conflictsJSON       string
		startedAt, completedAt          sql.NullTime
		rejectionReason                 sql.NullString
	)

	if err := scan(&id, &branchID, &parentID, &strategy, &status, &requiresApproval, &approvedBy,
		&approvedAt, &createdAt, &stagingSessionID, &stagedJSON, &conflictsJSON, &startedAt,
		&completedAt, &rejectionReason); err != nil {
		return domain.MergeRequest{}, err
	}

	var staged []domain.StagedChange
	if err := json.Unmarshal([]byte(stagedJSON), &staged); err != nil {
		return domain.MergeRequest{}, err
	}
	var conflicts []domain.Conflict
	if err := json.Unmarshal([]byte(conflictsJSON), &conflicts); err != nil {
		return domain.MergeRequest{}, err
	}

	mr := domain.MergeRequest{
		ID:               domain.MergeRequestId(id),
		BranchID:         domain.BranchId(branchID),
		Strategy:         strategy,
		Status:           domain.MergeRequestStatus(status),
		RequiresApproval: requiresApproval,
		CreatedAt:        createdAt,
		StagedChanges:    staged,
		Conflicts:        conflicts,
	}
	if parentID.Valid {
		pid := domain.BranchId(parentID.String)
		mr.ParentID = &pid
	}
	if approvedBy.Valid {
		v := approvedBy.String
		mr.ApprovedBy = &v
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		mr.ApprovedAt = &t
	}
	if stagingSessionID.Valid {
		v := stagingSessionID.String
		mr.StagingSessionID = &v
	}
	if startedAt.Valid {
		t := startedAt.Time
		mr.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		mr.CompletedAt = &t
	}
	if rejectionReason.Valid {
		v := rejectionReason.String
		mr.RejectionReason = &v
	}

	return mr, nil
}
