package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
)

const MaxFullNameLength = 255

// Role represents the access level of a user.
type Role string

const (
	RoleUser           Role = "USER"
	RoleDepartmentHead Role = "DEPARTMENT_HEAD"
	RoleAdmin          Role = "ADMIN"
)

// IsValidRole reports whether r is one of the known roles.
func IsValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleDepartmentHead, RoleAdmin:
		return true
	}
	return false
}

// User is an account bound to a Telegram identity.
type User struct {
	ID           uuid.UUID
	TelegramID   int64
	FullName     string
	Role         Role
	DepartmentID uuid.UUID
	CreatedAt    time.Time
}

// UserRegistrationParams holds parameters for user registration.
type UserRegistrationParams struct {
	TelegramID   int64
	FullName     string
	DepartmentID uuid.UUID
}

// Validate validates user registration parameters.
func (p *UserRegistrationParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	if p.TelegramID == 0 {
		errs.Add("telegramId", "Telegram ID is required")
	}

	if p.FullName == "" {
		errs.Add("fullName", "Full name is required")
	} else if len(p.FullName) > MaxFullNameLength {
		errs.Add("fullName", "Full name must be 255 characters or less")
	}

	if p.DepartmentID == uuid.Nil {
		errs.Add("departmentId", "Department is required")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// NewUser creates a new user with validated parameters.
func NewUser(params UserRegistrationParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &User{
		ID:           uuid.New(),
		TelegramID:   params.TelegramID,
		FullName:     params.FullName,
		Role:         RoleUser,
		DepartmentID: params.DepartmentID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Department groups users and receives appeals.
type Department struct {
	ID   uuid.UUID
	Name string
}
