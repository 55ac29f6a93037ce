package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/extectick/appeals-backend/internal/auth"
	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// InitDataValidator verifies a Telegram WebApp init data blob.
type InitDataValidator interface {
	Validate(initData string) (*auth.TelegramInitData, error)
}

// AuthService implements Telegram-identity authentication: the init data
// signature proves who the caller is, the user table decides whether they
// have an account.
type AuthService struct {
	userRepo       ports.UserRepository
	departmentRepo ports.DepartmentRepository
	validator      InitDataValidator
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo ports.UserRepository,
	departmentRepo ports.DepartmentRepository,
	validator InitDataValidator,
) *AuthService {
	return &AuthService{
		userRepo:       userRepo,
		departmentRepo: departmentRepo,
		validator:      validator,
	}
}

// Login validates init data and resolves the existing account bound to
// the Telegram identity.
func (s *AuthService) Login(ctx context.Context, initData string) (*domain.User, error) {
	identity, err := s.validator.Validate(initData)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByTelegramID(ctx, identity.User.ID)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Register validates init data and creates an account for a Telegram
// identity that does not have one yet.
func (s *AuthService) Register(ctx context.Context, initData, fullName string, departmentID uuid.UUID) (*domain.User, error) {
	identity, err := s.validator.Validate(initData)
	if err != nil {
		return nil, err
	}

	if _, err := s.userRepo.GetByTelegramID(ctx, identity.User.ID); err == nil {
		return nil, apperrors.ErrUserExists
	} else if !errors.Is(err, ports.ErrUserNotFound) {
		return nil, err
	}

	if _, err := s.departmentRepo.GetByID(ctx, departmentID); err != nil {
		if errors.Is(err, ports.ErrDepartmentNotFound) {
			return nil, apperrors.ErrDepartmentNotFound
		}
		return nil, err
	}

	if fullName == "" {
		fullName = identity.User.FullName()
	}

	user, err := domain.NewUser(domain.UserRegistrationParams{
		TelegramID:   identity.User.ID,
		FullName:     fullName,
		DepartmentID: departmentID,
	})
	if err != nil {
		return nil, err
	}

	return s.userRepo.Create(ctx, user)
}

// GetProfile returns the account for an authenticated user id.
func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
