package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

// Repository-level sentinel errors. Repositories translate driver
// not-found conditions into these.
var (
	ErrAppealNotFound     = errors.New("appeal not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrDepartmentNotFound = errors.New("department not found")
)

// ListAppealsFilter narrows an appeal listing to one role scope. Zero
// values mean "no constraint".
type ListAppealsFilter struct {
	CreatorID    uuid.UUID
	DepartmentID uuid.UUID
	ExecutorID   uuid.UUID
	Status       *domain.AppealStatus
	// OpenOnly keeps only appeals whose status is still open, so an
	// executor's task list drops completed and rejected work.
	OpenOnly bool
}

// AppealRepository is the port for appeal persistence.
type AppealRepository interface {
	Create(ctx context.Context, appeal *domain.Appeal) (*domain.Appeal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Appeal, error)
	Update(ctx context.Context, appeal *domain.Appeal) (*domain.Appeal, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListAppealsFilter) ([]*domain.Appeal, error)
}

// MessageRepository is the port for appeal message persistence.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
	ListByAppealID(ctx context.Context, appealID uuid.UUID) ([]*domain.Message, error)
}

// UserRepository is the port for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error
}

// DepartmentRepository is the port for department lookups.
type DepartmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error)
	List(ctx context.Context) ([]*domain.Department, error)
}
