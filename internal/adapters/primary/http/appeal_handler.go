package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/extectick/appeals-backend/internal/adapters/primary/http/middleware"
	"github.com/extectick/appeals-backend/internal/adapters/primary/validation"
	"github.com/extectick/appeals-backend/internal/auth"
	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

var appealStatusNames = []string{
	string(domain.StatusPending),
	string(domain.StatusInProgress),
	string(domain.StatusInConfirmation),
	string(domain.StatusCompleted),
	string(domain.StatusRejected),
}

// AppealHandler handles HTTP requests for appeals
type AppealHandler struct {
	appealService  ports.AppealService
	messageHandler *MessageHandler
	errorHandler   *ErrorHandler
	logger         *slog.Logger
}

// NewAppealHandler creates a new appeal handler
func NewAppealHandler(
	appealService ports.AppealService,
	messageHandler *MessageHandler,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *AppealHandler {
	return &AppealHandler{
		appealService:  appealService,
		messageHandler: messageHandler,
		errorHandler:   errorHandler,
		logger:         logger.With("handler", "appeal"),
	}
}

// Router sets up a new chi Router for all appeal-related routes.
func (h *AppealHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all appeal endpoints.
func (h *AppealHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListAppeals)
	r.Post("/", h.HandleCreateAppeal)

	r.Route("/{appealID}", func(r chi.Router) {
		r.Get("/", h.HandleGetAppeal)
		r.Patch("/", h.HandlePatchAppeal)
		r.Put("/", h.HandleEditAppeal)
		r.Delete("/", h.HandleDeleteAppeal)

		if h.messageHandler != nil {
			r.Mount("/messages", h.messageHandler.Router())
		}
	})
}

// --- Request/Response DTOs ---

// CreateAppealRequest defines the expected JSON body for creating an appeal
type CreateAppealRequest struct {
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	DepartmentID string `json:"departmentId"`
}

// Validate validates the create appeal request
func (r *CreateAppealRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("subject", r.Subject).
		MaxLength("subject", r.Subject, domain.MaxSubjectLength)

	v.MaxLength("description", r.Description, domain.MaxDescriptionLength)

	v.Required("departmentId", r.DepartmentID).
		UUID("departmentId", r.DepartmentID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// PatchAppealRequest defines the body for status and/or executor changes
type PatchAppealRequest struct {
	Status     string `json:"status,omitempty"`
	ExecutorID string `json:"executorId,omitempty"`
}

// Validate validates the patch appeal request
func (r *PatchAppealRequest) Validate() error {
	v := validation.NewValidator()

	v.Custom("status", r.Status != "" || r.ExecutorID != "", "Either status or executorId is required")
	v.OneOf("status", r.Status, appealStatusNames)
	v.UUID("executorId", r.ExecutorID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// EditAppealRequest defines the body for subject/description updates
type EditAppealRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// Validate validates the edit appeal request
func (r *EditAppealRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("subject", r.Subject).
		MaxLength("subject", r.Subject, domain.MaxSubjectLength)

	v.MaxLength("description", r.Description, domain.MaxDescriptionLength)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// AppealDTO defines the JSON response for appeals. Field names match the
// event payload so push updates merge cleanly into fetched state.
type AppealDTO struct {
	ID           string   `json:"id"`
	Number       int64    `json:"number"`
	Subject      string   `json:"subject"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	DepartmentID string   `json:"departmentId"`
	CreatorID    string   `json:"creatorId"`
	ExecutorID   *string  `json:"executorId"`
	ExecutorIDs  []string `json:"assignedExecutorIds,omitempty"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    *string  `json:"updatedAt"`
}

func toAppealDTO(appeal *domain.Appeal) AppealDTO {
	var executorID *string
	if appeal.ExecutorID != nil {
		value := appeal.ExecutorID.String()
		executorID = &value
	}

	var executorIDs []string
	for _, id := range appeal.AssignedExecutorIDs {
		executorIDs = append(executorIDs, id.String())
	}

	var updatedAt *string
	if appeal.UpdatedAt != nil {
		value := appeal.UpdatedAt.Format(time.RFC3339)
		updatedAt = &value
	}

	return AppealDTO{
		ID:           appeal.ID.String(),
		Number:       appeal.Number,
		Subject:      appeal.Subject,
		Description:  appeal.Description,
		Status:       string(appeal.Status),
		DepartmentID: appeal.DepartmentID.String(),
		CreatorID:    appeal.CreatorID.String(),
		ExecutorID:   executorID,
		ExecutorIDs:  executorIDs,
		CreatedAt:    appeal.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    updatedAt,
	}
}

func toAppealDTOs(appeals []*domain.Appeal) []AppealDTO {
	response := make([]AppealDTO, 0, len(appeals))
	for _, appeal := range appeals {
		response = append(response, toAppealDTO(appeal))
	}
	return response
}

// --- Handlers ---

// HandleListAppeals handles GET /appeals
func (h *AppealHandler) HandleListAppeals(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	v := validation.NewValidator()
	params := ports.ListAppealsParams{ViewerID: claims.UserID}

	parseScope := func(field string, dst *uuid.UUID) {
		value := r.URL.Query().Get(field)
		if value == "" {
			return
		}
		parsed, err := uuid.Parse(value)
		if err != nil {
			v.Custom(field, false, "Must be a valid UUID")
			return
		}
		*dst = parsed
	}
	parseScope("creatorId", &params.CreatorID)
	parseScope("departmentId", &params.DepartmentID)
	parseScope("executorId", &params.ExecutorID)

	if statusStr := validation.ParseStringQueryParam(r, "status"); statusStr != nil {
		v.OneOf("status", *statusStr, appealStatusNames)
		status := domain.AppealStatus(*statusStr)
		params.Status = &status
	}

	if openStr := r.URL.Query().Get("open"); openStr != "" {
		open, err := strconv.ParseBool(openStr)
		if err != nil {
			v.Custom("open", false, "Must be a boolean")
		}
		params.OpenOnly = open
	}

	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	appeals, err := h.appealService.ListAppeals(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toAppealDTOs(appeals))
}

// HandleCreateAppeal handles POST /appeals
func (h *AppealHandler) HandleCreateAppeal(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[CreateAppealRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	departmentID, err := uuid.Parse(req.DepartmentID)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid department ID"))
		return
	}

	appeal, err := h.appealService.CreateAppeal(r.Context(), ports.CreateAppealParams{
		Subject:      req.Subject,
		Description:  req.Description,
		DepartmentID: departmentID,
		CreatorID:    claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toAppealDTO(appeal))
}

// HandleGetAppeal handles GET /appeals/{appealID}
func (h *AppealHandler) HandleGetAppeal(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	appealID, ok := h.parseAppealID(w, r)
	if !ok {
		return
	}

	appeal, err := h.appealService.GetAppeal(r.Context(), appealID, claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, toAppealDTO(appeal))
}

// HandlePatchAppeal handles PATCH /appeals/{appealID}: status change,
// executor assignment, or both.
func (h *AppealHandler) HandlePatchAppeal(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	appealID, ok := h.parseAppealID(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[PatchAppealRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	var appeal *domain.Appeal

	if req.ExecutorID != "" {
		executorID, err := uuid.Parse(req.ExecutorID)
		if err != nil {
			h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid executor ID"))
			return
		}
		appeal, err = h.appealService.AssignAppeal(r.Context(), ports.AssignAppealParams{
			AppealID:   appealID,
			ExecutorID: executorID,
			ActorID:    claims.UserID,
		})
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
	}

	if req.Status != "" {
		appeal, err = h.appealService.UpdateStatus(r.Context(), ports.UpdateStatusParams{
			AppealID: appealID,
			Status:   domain.AppealStatus(req.Status),
			ActorID:  claims.UserID,
		})
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
	}

	WriteSuccess(w, toAppealDTO(appeal))
}

// HandleEditAppeal handles PUT /appeals/{appealID}
func (h *AppealHandler) HandleEditAppeal(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	appealID, ok := h.parseAppealID(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeAndValidate[EditAppealRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	appeal, err := h.appealService.EditAppeal(r.Context(), ports.EditAppealParams{
		AppealID:    appealID,
		Subject:     req.Subject,
		Description: req.Description,
		ActorID:     claims.UserID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, toAppealDTO(appeal))
}

// HandleDeleteAppeal handles DELETE /appeals/{appealID}
func (h *AppealHandler) HandleDeleteAppeal(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	appealID, ok := h.parseAppealID(w, r)
	if !ok {
		return
	}

	if err := h.appealService.DeleteAppeal(r.Context(), appealID, claims.UserID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}

// --- Helpers ---

func (h *AppealHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return nil, false
	}
	return claims, true
}

func (h *AppealHandler) parseAppealID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	appealID, err := uuid.Parse(chi.URLParam(r, "appealID"))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid appeal ID"))
		return uuid.Nil, false
	}
	return appealID, true
}
