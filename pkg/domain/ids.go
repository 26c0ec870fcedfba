// Package domain defines the data model shared by the branch manager,
// parallel execution engine, and merge engine: branches, merge requests,
// and the value types that flow between them.
package domain

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// BranchId is an opaque, stringifiable 128-bit identifier for a Branch.
type BranchId string

// MergeRequestId is an opaque, stringifiable 128-bit identifier for a MergeRequest.
type MergeRequestId string

// NewBranchId mints a new time-sortable, monotonic BranchId.
func NewBranchId() BranchId {
	return BranchId(newULID())
}

// NewMergeRequestId mints a new time-sortable, monotonic MergeRequestId.
func NewMergeRequestId() MergeRequestId {
	return MergeRequestId(newULID())
}

// NewTaskID mints a new time-sortable, monotonic id for a dispatched Task.
func NewTaskID() string {
	return newULID()
}

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// ulid.New only fails if the entropy source errors; crypto/rand
		// practically never does. Fall back to a degenerate but unique id
		// rather than panicking a caller mid-transaction.
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return id.String()
}

func (b BranchId) String() string { return string(b) }

func (m MergeRequestId) String() string { return string(m) }
