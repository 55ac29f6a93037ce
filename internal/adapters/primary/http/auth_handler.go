package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/extectick/appeals-backend/internal/adapters/primary/http/middleware"
	"github.com/extectick/appeals-backend/internal/adapters/primary/validation"
	"github.com/extectick/appeals-backend/internal/auth"
	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// AuthHandler handles login, registration and profile requests.
type AuthHandler struct {
	authService  ports.AuthService
	tokenManager *auth.TokenManager
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService ports.AuthService,
	tokenManager *auth.TokenManager,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenManager: tokenManager,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "auth"),
	}
}

// PublicRouter returns the routes that do not require a JWT.
func (h *AuthHandler) PublicRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.HandleLogin)
	r.Post("/register", h.HandleRegister)
	return r
}

// RegisterProtectedRoutes sets up routes that require a JWT.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/auth/me", h.HandleMe)
}

// --- Request/Response DTOs ---

// LoginRequest defines the expected JSON body for login
type LoginRequest struct {
	InitData string `json:"initData"`
}

// RegisterRequest defines the expected JSON body for registration
type RegisterRequest struct {
	InitData     string `json:"initData"`
	FullName     string `json:"fullName"`
	DepartmentID string `json:"departmentId"`
}

// Validate validates the register request
func (r *RegisterRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("initData", r.InitData)
	v.MaxLength("fullName", r.FullName, domain.MaxFullNameLength)
	v.Required("departmentId", r.DepartmentID).
		UUID("departmentId", r.DepartmentID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// UserDTO defines the JSON response for user profiles
type UserDTO struct {
	ID           string `json:"id"`
	TelegramID   int64  `json:"telegramId"`
	FullName     string `json:"fullName"`
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId"`
}

// SessionResponse is the login/register response: a token plus the profile
type SessionResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

func toUserDTO(user *domain.User) UserDTO {
	return UserDTO{
		ID:           user.ID.String(),
		TelegramID:   user.TelegramID,
		FullName:     user.FullName,
		Role:         string(user.Role),
		DepartmentID: user.DepartmentID.String(),
	}
}

// --- Handlers ---

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[LoginRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	user, err := h.authService.Login(r.Context(), req.InitData)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.writeSession(w, r, user)
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[RegisterRequest](r)
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

	user, err := h.authService.Register(r.Context(), req.InitData, req.FullName, departmentID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.writeSession(w, r, user)
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	user, err := h.authService.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, toUserDTO(user))
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, user *domain.User) {
	token, err := h.tokenManager.GenerateToken(user.ID, user.DepartmentID)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewInternalError(err))
		return
	}

	WriteSuccess(w, SessionResponse{
		Token: token,
		User:  toUserDTO(user),
	})
}
