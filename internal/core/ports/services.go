package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

// EventBroadcaster is the port between the mutation path and the
// real-time fan-out core. Publishing is best-effort: it never returns an
// error to the caller and never blocks on a slow client.
type EventBroadcaster interface {
	Publish(envelope domain.Envelope)
}

// CreateAppealParams defines the required input for creating an appeal.
type CreateAppealParams struct {
	Subject      string
	Description  string
	DepartmentID uuid.UUID
	CreatorID    uuid.UUID
	ExecutorID   *uuid.UUID
}

// UpdateStatusParams defines the input for changing an appeal's status.
type UpdateStatusParams struct {
	AppealID uuid.UUID
	Status   domain.AppealStatus
	ActorID  uuid.UUID
}

// AssignAppealParams defines the input for assigning an appeal.
type AssignAppealParams struct {
	AppealID   uuid.UUID
	ExecutorID uuid.UUID
	ActorID    uuid.UUID
}

// EditAppealParams defines the input for editing an appeal's fields.
type EditAppealParams struct {
	AppealID    uuid.UUID
	Subject     string
	Description string
	ActorID     uuid.UUID
}

// ListAppealsParams defines the input for listing appeals.
type ListAppealsParams struct {
	ViewerID     uuid.UUID
	CreatorID    uuid.UUID
	DepartmentID uuid.UUID
	ExecutorID   uuid.UUID
	Status       *domain.AppealStatus
	OpenOnly     bool
}

// AppendMessageParams defines the input for appending a message.
type AppendMessageParams struct {
	AppealID uuid.UUID
	SenderID uuid.UUID
	Content  *string
	FileURL  *string
	FileSize *int64
	FileType *string
}

// NotificationParams defines the input for sending a notification.
type NotificationParams struct {
	RecipientUserID uuid.UUID
	Subject         string
	Message         string
	AppealID        uuid.UUID
}

// AppealService defines the core business operations for managing appeals.
type AppealService interface {
	CreateAppeal(ctx context.Context, params CreateAppealParams) (*domain.Appeal, error)
	GetAppeal(ctx context.Context, appealID, viewerID uuid.UUID) (*domain.Appeal, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*domain.Appeal, error)
	AssignAppeal(ctx context.Context, params AssignAppealParams) (*domain.Appeal, error)
	EditAppeal(ctx context.Context, params EditAppealParams) (*domain.Appeal, error)
	DeleteAppeal(ctx context.Context, appealID, actorID uuid.UUID) error
	ListAppeals(ctx context.Context, params ListAppealsParams) ([]*domain.Appeal, error)
	Shutdown()
}

// MessageService defines the port for appeal message business logic.
type MessageService interface {
	AppendMessage(ctx context.Context, params AppendMessageParams) (*domain.Message, error)
	ListMessages(ctx context.Context, appealID, viewerID uuid.UUID) ([]*domain.Message, error)
}

// AuthService defines the port for Telegram-identity authentication.
type AuthService interface {
	Login(ctx context.Context, initData string) (*domain.User, error)
	Register(ctx context.Context, initData, fullName string, departmentID uuid.UUID) (*domain.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// DirectoryService defines the port for department and user lookups.
type DirectoryService interface {
	ListDepartments(ctx context.Context) ([]*domain.Department, error)
	UpdateUserRole(ctx context.Context, actorID, userID uuid.UUID, role domain.Role) error
}

// Notifier defines the port for sending asynchronous notifications.
type Notifier interface {
	Notify(ctx context.Context, params NotificationParams)
}
