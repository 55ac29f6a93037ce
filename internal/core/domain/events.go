package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// EventKind defines the type of real-time change notification.
type EventKind string

const (
	EventEntityCreated   EventKind = "entity_created"
	EventEntityUpdated   EventKind = "entity_updated"
	EventEntityDeleted   EventKind = "entity_deleted"
	EventMessageAppended EventKind = "message_appended"
)

// ScopeKeys carries the routing attributes of an envelope. The server
// fan-out ignores them (delivery is broadcast-to-all); clients evaluate
// them against their view membership predicates.
type ScopeKeys struct {
	DepartmentID        uuid.UUID   `json:"departmentId"`
	CreatorID           uuid.UUID   `json:"creatorId"`
	ExecutorID          *uuid.UUID  `json:"executorId"`
	AssignedExecutorIDs []uuid.UUID `json:"assignedExecutorIds,omitempty"`
}

// Envelope is a single change notification pushed to every connected
// client. Envelopes are immutable once constructed; the broadcaster
// serializes them exactly once and never mutates a sent envelope.
type Envelope struct {
	Kind      EventKind        `json:"kind"`
	EntityID  uuid.UUID        `json:"entityId"`
	ScopeKeys ScopeKeys        `json:"scopeKeys"`
	Appeal    *AppealSnapshot  `json:"appeal,omitempty"`
	Message   *MessageSnapshot `json:"message,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// EventFactory builds envelopes with strictly increasing emission times.
// The composition root owns one instance and shares it with every
// publishing service; time.Now alone can repeat under coarse clock
// resolution, so repeats are bumped by a nanosecond.
type EventFactory struct {
	mu    sync.Mutex
	clock clockwork.Clock
	last  time.Time
}

// NewEventFactory creates an event factory over the given clock.
func NewEventFactory(clock clockwork.Clock) *EventFactory {
	return &EventFactory{clock: clock}
}

func (f *EventFactory) next() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now().UTC()
	if !now.After(f.last) {
		now = f.last.Add(time.Nanosecond)
	}
	f.last = now
	return now
}

// AppealEnvelope builds an envelope for an appeal lifecycle change,
// using the appeal's post-commit values.
func (f *EventFactory) AppealEnvelope(kind EventKind, appeal *Appeal) Envelope {
	snapshot := NewAppealSnapshot(appeal)
	return Envelope{
		Kind:     kind,
		EntityID: appeal.ID,
		ScopeKeys: ScopeKeys{
			DepartmentID:        appeal.DepartmentID,
			CreatorID:           appeal.CreatorID,
			ExecutorID:          appeal.ExecutorID,
			AssignedExecutorIDs: appeal.AssignedExecutorIDs,
		},
		Appeal:    &snapshot,
		Timestamp: f.next(),
	}
}

// MessageEnvelope builds an envelope for a message appended to an
// appeal. The scope keys come from the owning appeal so clients can route
// the message without a lookup.
func (f *EventFactory) MessageEnvelope(appeal *Appeal, message *Message) Envelope {
	snapshot := NewMessageSnapshot(message)
	return Envelope{
		Kind:     EventMessageAppended,
		EntityID: appeal.ID,
		ScopeKeys: ScopeKeys{
			DepartmentID:        appeal.DepartmentID,
			CreatorID:           appeal.CreatorID,
			ExecutorID:          appeal.ExecutorID,
			AssignedExecutorIDs: appeal.AssignedExecutorIDs,
		},
		Message:   &snapshot,
		Timestamp: f.next(),
	}
}
