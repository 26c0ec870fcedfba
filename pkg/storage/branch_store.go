package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ardentforge/branchctl/pkg/domain"
	"github.com/ardentforge/branchctl/pkg/errors"
)

// CreateBranch inserts a new branch row.
func (s *Store) CreateBranch(ctx context.Context, b domain.Branch) error {
	configJSON, err := json.Marshal(b.Config)
	if err != nil {
		return errors.Storage(err, "marshal branch config")
	}
	childrenJSON, err := json.Marshal(b.Children)
	if err != nil {
		return errors.Storage(err, "marshal branch children")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO branches (id, parent_id, session_id, name, status, created_at, completed_at,
			config_json, children_json, result_json, merge_result_json, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(b.ID), parentIDValue(b.ParentID), b.SessionID, b.Name, string(b.Status),
		b.CreatedAt, nullableTime(b.CompletedAt),
		string(configJSON), string(childrenJSON), nil, nil, nullableString(b.FailureReason),
	)
	if err != nil {
		return errors.Storage(err, "insert branch")
	}

	s.notify(newEvent(EventBranchCreated, b.SessionID, string(b.ID), nil))
	return nil
}

// GetBranch loads a single branch by id.
func (s *Store) GetBranch(ctx context.Context, id domain.BranchId) (domain.Branch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, session_id, name, status, created_at, completed_at,
			config_json, children_json, result_json, merge_result_json, failure_reason
		FROM branches WHERE id = ?`, string(id))

	b, err := scanBranch(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Branch{}, errors.BranchNotFound(string(id))
	}
	if err != nil {
		return domain.Branch{}, errors.Storage(err, "scan branch")
	}
	return b, nil
}

// UpdateBranch persists a branch's full current state.
func (s *Store) UpdateBranch(ctx context.Context, b domain.Branch) error {
	configJSON, err := json.Marshal(b.Config)
	if err != nil {
		return errors.Storage(err, "marshal branch config")
	}
	childrenJSON, err := json.Marshal(b.Children)
	if err != nil {
		return errors.Storage(err, "marshal branch children")
	}
	resultJSON, err := marshalOptional(b.Result)
	if err != nil {
		return errors.Storage(err, "marshal branch result")
	}
	mergeResultJSON, err := marshalOptional(b.MergeResult)
	if err != nil {
		return errors.Storage(err, "marshal branch merge result")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE branches SET parent_id = ?, session_id = ?, name = ?, status = ?, completed_at = ?,
			config_json = ?, children_json = ?, result_json = ?, merge_result_json = ?, failure_reason = ?
		WHERE id = ?`,
		parentIDValue(b.ParentID), b.SessionID, b.Name, string(b.Status), nullableTime(b.CompletedAt),
		string(configJSON), string(childrenJSON), resultJSON, mergeResultJSON, nullableString(b.FailureReason),
		string(b.ID),
	)
	if err != nil {
		return errors.Storage(err, "update branch")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.BranchNotFound(string(b.ID))
	}

	s.notify(newEvent(EventBranchUpdated, b.SessionID, string(b.ID), b.Status))
	return nil
}

// DeleteBranch removes a branch row.
func (s *Store) DeleteBranch(ctx context.Context, id domain.BranchId) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM branches WHERE id = ?`, string(id))
	if err != nil {
		return errors.Storage(err, "delete branch")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.BranchNotFound(string(id))
	}

	s.notify(newEvent(EventBranchDeleted, "", string(id), nil))
	return nil
}

// ListActiveBranches returns every branch not in a terminal status.
func (s *Store) ListActiveBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, session_id, name, status, created_at, completed_at,
			config_json, children_json, result_json, merge_result_json, failure_reason
		FROM branches WHERE status NOT IN (?, ?) ORDER BY created_at`,
		string(domain.BranchMerged), string(domain.BranchFailed),
	)
	if err != nil {
		return nil, errors.Storage(err, "list active branches")
	}
	defer rows.Close()
	return scanBranches(rows)
}

// ListBranchesByParent returns every direct child of parentID.
func (s *Store) ListBranchesByParent(ctx context.Context, parentID domain.BranchId) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parent_id, session_id, name, status, created_at, completed_at,
			config_json, children_json, result_json, merge_result_json, failure_reason
		FROM branches WHERE parent_id = ? ORDER BY created_at`, string(parentID),
	)
	if err != nil {
		return nil, errors.Storage(err, "list branches by parent")
	}
	defer rows.Close()
	return scanBranches(rows)
}

// CountActiveBranches counts branches not in a terminal status.
func (s *Store) CountActiveBranches(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM branches WHERE status NOT IN (?, ?)`,
		string(domain.BranchMerged), string(domain.BranchFailed),
	).Scan(&n)
	if err != nil {
		return 0, errors.Storage(err, "count active branches")
	}
	return n, nil
}

type rowScanner func(dest ...any) error

func scanBranch(scan rowScanner) (domain.Branch, error) {
	var (
		id, sessionID, name, status  string
		parentID                     sql.NullString
		createdAt                    time.Time
		completedAt                  sql.NullTime
		configJSON, childrenJSON     string
		resultJSON, mergeResultJSON  sql.NullString
		failureReason                sql.NullString
	)

	if err := scan(&id, &parentID, &sessionID, &name, &status, &createdAt, &completedAt,
		&configJSON, &childrenJSON, &resultJSON, &mergeResultJSON, &failureReason); err != nil {
		return domain.Branch{}, err
	}

	var config domain.BranchConfig
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		return domain.Branch{}, err
	}
	var children []domain.BranchId
	if err := json.Unmarshal([]byte(childrenJSON), &children); err != nil {
		return domain.Branch{}, err
	}

	b := domain.Branch{
		ID:        domain.BranchId(id),
		SessionID: sessionID,
		Name:      name,
		Status:    domain.BranchStatus(status),
		CreatedAt: createdAt,
		Config:    config,
		Children:  children,
	}
	if parentID.Valid {
		pid := domain.BranchId(parentID.String)
		b.ParentID = &pid
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	if failureReason.Valid {
		r := failureReason.String
		b.FailureReason = &r
	}
	if resultJSON.Valid {
		var result domain.BranchResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return domain.Branch{}, err
		}
		b.Result = &result
	}
	if mergeResultJSON.Valid {
		var mr domain.MergeResult
		if err := json.Unmarshal([]byte(mergeResultJSON.String), &mr); err != nil {
			return domain.Branch{}, err
		}
		b.MergeResult = &mr
	}

	return b, nil
}

func scanBranches(rows *sql.Rows) ([]domain.Branch, error) {
	var out []domain.Branch
	for rows.Next() {
		b, err := scanBranch(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func parentIDValue(id *domain.BranchId) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func marshalOptional(v any) (any, error) {
	switch val := v.(type) {
	case *domain.BranchResult:
		if val == nil {
			return nil, nil
		}
		b, err := json.Marshal(val)
		return string(b), err
	case *domain.MergeResult:
		if val == nil {
			return nil, nil
		}
		b, err := json.Marshal(val)
		return string(b), err
	default:
		return nil, nil
	}
}
