package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/extectick/appeals-backend/internal/adapters/primary/http/middleware"
	"github.com/extectick/appeals-backend/internal/adapters/primary/validation"
	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// DepartmentHandler handles department directory and role administration.
type DepartmentHandler struct {
	directoryService ports.DirectoryService
	errorHandler     *ErrorHandler
	logger           *slog.Logger
}

// NewDepartmentHandler creates a new department handler
func NewDepartmentHandler(directoryService ports.DirectoryService, errorHandler *ErrorHandler, logger *slog.Logger) *DepartmentHandler {
	return &DepartmentHandler{
		directoryService: directoryService,
		errorHandler:     errorHandler,
		logger:           logger.With("handler", "department"),
	}
}

// RegisterRoutes sets up department and role routes.
func (h *DepartmentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/departments", h.HandleListDepartments)
	r.Patch("/users/{userID}/role", h.HandleUpdateUserRole)
}

// DepartmentDTO defines the JSON response for departments
type DepartmentDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UpdateRoleRequest defines the expected JSON body for role updates
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// Validate validates the update role request
func (r *UpdateRoleRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("role", r.Role).
		OneOf("role", r.Role, []string{
			string(domain.RoleUser),
			string(domain.RoleDepartmentHead),
			string(domain.RoleAdmin),
		})

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// HandleListDepartments handles GET /departments
func (h *DepartmentHandler) HandleListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.directoryService.ListDepartments(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]DepartmentDTO, 0, len(departments))
	for _, d := range departments {
		response = append(response, DepartmentDTO{ID: d.ID.String(), Name: d.Name})
	}
	WriteList(w, response)
}

// HandleUpdateUserRole handles PATCH /users/{userID}/role
func (h *DepartmentHandler) HandleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid user ID"))
		return
	}

	req, err := validation.DecodeAndValidate[UpdateRoleRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := h.directoryService.UpdateUserRole(r.Context(), claims.UserID, userID, domain.Role(req.Role)); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}
