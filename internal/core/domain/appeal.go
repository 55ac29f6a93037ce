package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
)

// Field length limits shared by domain validation and request validation.
const (
	MaxSubjectLength     = 255
	MaxDescriptionLength = 4000
)

// AppealStatus represents the lifecycle state of an appeal.
type AppealStatus string

const (
	StatusPending        AppealStatus = "PENDING"
	StatusInProgress     AppealStatus = "IN_PROGRESS"
	StatusInConfirmation AppealStatus = "IN_CONFIRMATION"
	StatusCompleted      AppealStatus = "COMPLETED"
	StatusRejected       AppealStatus = "REJECTED"
)

// validTransitions defines the allowed status transitions.
// COMPLETED is terminal.
var validTransitions = map[AppealStatus][]AppealStatus{
	StatusPending:        {StatusInProgress, StatusRejected},
	StatusInProgress:     {StatusInConfirmation, StatusCompleted, StatusRejected},
	StatusInConfirmation: {StatusInProgress, StatusCompleted, StatusRejected},
	StatusRejected:       {StatusInProgress},
	StatusCompleted:      {},
}

// IsValidStatus reports whether s is one of the known appeal statuses.
func IsValidStatus(s AppealStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// IsOpenStatus reports whether an executor still has work on an appeal
// in this status. COMPLETED and REJECTED drop it from the executor's queue.
func IsOpenStatus(s AppealStatus) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusInConfirmation
}

// OpenStatuses returns every status IsOpenStatus accepts, for queries
// that filter to in-flight appeals.
func OpenStatuses() []AppealStatus {
	var open []AppealStatus
	for s := range validTransitions {
		if IsOpenStatus(s) {
			open = append(open, s)
		}
	}
	return open
}

// Appeal is the core domain entity: a support request routed to a department.
type Appeal struct {
	ID                  uuid.UUID
	Number              int64
	Subject             string
	Description         string
	Status              AppealStatus
	DepartmentID        uuid.UUID
	CreatorID           uuid.UUID
	ExecutorID          *uuid.UUID
	AssignedExecutorIDs []uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           *time.Time
}

// AppealParams holds validated input for creating a new appeal.
type AppealParams struct {
	Subject      string
	Description  string
	DepartmentID uuid.UUID
	CreatorID    uuid.UUID
	ExecutorID   *uuid.UUID
}

// NewAppeal is a factory function to create a valid new appeal.
func NewAppeal(params AppealParams) (*Appeal, error) {
	if params.Subject == "" {
		return nil, apperrors.ErrSubjectRequired
	}
	if len(params.Subject) > MaxSubjectLength {
		return nil, apperrors.ErrSubjectTooLong
	}
	if len(params.Description) > MaxDescriptionLength {
		return nil, apperrors.ErrDescriptionTooLong
	}
	if params.DepartmentID == uuid.Nil {
		return nil, apperrors.ErrDepartmentRequired
	}
	if params.CreatorID == uuid.Nil {
		return nil, apperrors.ErrCreatorRequired
	}

	return &Appeal{
		ID:           uuid.New(),
		Subject:      params.Subject,
		Description:  params.Description,
		Status:       StatusPending,
		DepartmentID: params.DepartmentID,
		CreatorID:    params.CreatorID,
		ExecutorID:   params.ExecutorID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// UpdateStatus changes the appeal's status, enforcing the transition table.
// Accepting a PENDING appeal claims it for the actor; rejecting releases
// the executor so the appeal returns to the department queue.
func (a *Appeal) UpdateStatus(newStatus AppealStatus, actorID uuid.UUID) error {
	if !IsValidStatus(newStatus) {
		return apperrors.ErrInvalidStatus
	}

	allowed := validTransitions[a.Status]
	for _, s := range allowed {
		if s != newStatus {
			continue
		}

		if a.Status == StatusPending && newStatus == StatusInProgress {
			actor := actorID
			a.ExecutorID = &actor
		}
		if newStatus == StatusRejected {
			a.ExecutorID = nil
		}

		a.Status = newStatus
		a.touch()
		return nil
	}

	return apperrors.ErrInvalidStatusTransition
}

// Assign sets or changes the primary executor of the appeal.
func (a *Appeal) Assign(executorID uuid.UUID) error {
	if a.Status == StatusCompleted {
		return apperrors.ErrAppealCompleted
	}
	a.ExecutorID = &executorID
	a.touch()
	return nil
}

// AddExecutor adds a user to the set of assigned executors. Adding an
// already-present executor is a no-op.
func (a *Appeal) AddExecutor(executorID uuid.UUID) error {
	if a.Status == StatusCompleted {
		return apperrors.ErrAppealCompleted
	}
	for _, id := range a.AssignedExecutorIDs {
		if id == executorID {
			return nil
		}
	}
	a.AssignedExecutorIDs = append(a.AssignedExecutorIDs, executorID)
	a.touch()
	return nil
}

// Edit updates the mutable descriptive fields.
func (a *Appeal) Edit(subject, description string) error {
	if subject == "" {
		return apperrors.ErrSubjectRequired
	}
	if len(subject) > MaxSubjectLength {
		return apperrors.ErrSubjectTooLong
	}
	if len(description) > MaxDescriptionLength {
		return apperrors.ErrDescriptionTooLong
	}
	a.Subject = subject
	a.Description = description
	a.touch()
	return nil
}

// IsCreatedBy checks if the user created this appeal.
func (a *Appeal) IsCreatedBy(userID uuid.UUID) bool {
	return a.CreatorID == userID
}

// IsExecutedBy checks if the user is the primary executor or one of the
// assigned executors.
func (a *Appeal) IsExecutedBy(userID uuid.UUID) bool {
	if a.ExecutorID != nil && *a.ExecutorID == userID {
		return true
	}
	for _, id := range a.AssignedExecutorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (a *Appeal) touch() {
	now := time.Now().UTC()
	a.UpdatedAt = &now
}
