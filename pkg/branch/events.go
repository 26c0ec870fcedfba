package branch

import (
	"time"

	"github.com/ardentforge/branchctl/pkg/domain"
)

// EventType names a branch-lifecycle or merge-request-lifecycle event.
type EventType string

const (
	EventBranchCreated            EventType = "branch.created"
	EventBranchStatusChanged      EventType = "branch.status_changed"
	EventMergeRequestCreated      EventType = "merge_request.created"
	EventMergeRequestStatusChanged EventType = "merge_request.status_changed"
)

// Event is a change inside the Branch Manager that other subsystems
// (loggers, SSE/WebSocket bridges, metrics sinks) can react to.
type Event struct {
	Type           EventType
	BranchID       domain.BranchId
	MergeRequestID domain.MergeRequestId
	Data           any
	Timestamp      time.Time
}

// Observer reacts to Branch Manager events.
//
//go:generate mockgen -package=branch -destination=mock_observer_test.go github.com/ardentforge/branchctl/pkg/branch Observer
type Observer interface {
	HandleBranchEvent(Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) HandleBranchEvent(e Event) { f(e) }

func newBranchEvent(eventType EventType, branchID domain.BranchId, data any) Event {
	return Event{Type: eventType, BranchID: branchID, Data: data, Timestamp: time.Now()}
}

func newMergeRequestEvent(eventType EventType, mrID domain.MergeRequestId, branchID domain.BranchId, data any) Event {
	return Event{Type: eventType, BranchID: branchID, MergeRequestID: mrID, Data: data, Timestamp: time.Now()}
}
