package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// DirectoryService implements department and user directory lookups.
type DirectoryService struct {
	userRepo       ports.UserRepository
	departmentRepo ports.DepartmentRepository
}

var _ ports.DirectoryService = (*DirectoryService)(nil)

// NewDirectoryService creates a new directory service.
func NewDirectoryService(userRepo ports.UserRepository, departmentRepo ports.DepartmentRepository) *DirectoryService {
	return &DirectoryService{
		userRepo:       userRepo,
		departmentRepo: departmentRepo,
	}
}

// ListDepartments returns all departments appeals can be routed to.
func (s *DirectoryService) ListDepartments(ctx context.Context) ([]*domain.Department, error) {
	return s.departmentRepo.List(ctx)
}

// UpdateUserRole changes a user's role. Admin only.
func (s *DirectoryService) UpdateUserRole(ctx context.Context, actorID, userID uuid.UUID, role domain.Role) error {
	if !domain.IsValidRole(role) {
		return apperrors.ErrInvalidRole
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleAdmin {
		return apperrors.ErrForbidden
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}

	return s.userRepo.UpdateRole(ctx, userID, role)
}
