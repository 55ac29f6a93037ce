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

// MessageHandler handles HTTP requests for appeal message threads.
// It is mounted under /appeals/{appealID}/messages.
type MessageHandler struct {
	messageService ports.MessageService
	errorHandler   *ErrorHandler
	logger         *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService ports.MessageService, errorHandler *ErrorHandler, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		errorHandler:   errorHandler,
		logger:         logger.With("handler", "message"),
	}
}

// Router sets up a new chi Router for message routes.
func (h *MessageHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.HandleListMessages)
	r.Post("/", h.HandleAppendMessage)
	return r
}

// AppendMessageRequest defines the expected JSON body for posting a message
type AppendMessageRequest struct {
	Content  *string `json:"content,omitempty"`
	FileURL  *string `json:"fileUrl,omitempty"`
	FileSize *int64  `json:"fileSize,omitempty"`
	FileType *string `json:"fileType,omitempty"`
}

// Validate validates the append message request
func (r *AppendMessageRequest) Validate() error {
	v := validation.NewValidator()

	hasContent := r.Content != nil && *r.Content != ""
	hasFile := r.FileURL != nil && *r.FileURL != ""
	v.Custom("content", hasContent || hasFile, "Message needs text content or a file attachment")

	if hasContent {
		v.MaxLength("content", *r.Content, domain.MaxMessageLength)
	}
	if r.FileType != nil {
		v.OneOf("fileType", *r.FileType, domain.AllowedFileTypes)
	}
	if r.FileSize != nil {
		v.Custom("fileSize", *r.FileSize <= domain.MaxFileSize, "File exceeds maximum size")
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// MessageDTO defines the JSON response for messages. Field names match
// the message_appended event payload.
type MessageDTO struct {
	ID        string  `json:"id"`
	AppealID  string  `json:"appealId"`
	SenderID  string  `json:"senderId"`
	Content   *string `json:"content,omitempty"`
	FileURL   *string `json:"fileUrl,omitempty"`
	FileSize  *int64  `json:"fileSize,omitempty"`
	FileType  *string `json:"fileType,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

func toMessageDTO(message *domain.Message) MessageDTO {
	snapshot := domain.NewMessageSnapshot(message)
	return MessageDTO{
		ID:        snapshot.ID,
		AppealID:  snapshot.AppealID,
		SenderID:  snapshot.SenderID,
		Content:   snapshot.Content,
		FileURL:   snapshot.FileURL,
		FileSize:  snapshot.FileSize,
		FileType:  snapshot.FileType,
		CreatedAt: snapshot.CreatedAt,
	}
}

// HandleListMessages handles GET /appeals/{appealID}/messages
func (h *MessageHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	appealID, err := uuid.Parse(chi.URLParam(r, "appealID"))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid appeal ID"))
		return
	}

	messages, err := h.messageService.ListMessages(r.Context(), appealID, claims.UserID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]MessageDTO, 0, len(messages))
	for _, message := range messages {
		response = append(response, toMessageDTO(message))
	}
	WriteList(w, response)
}

// HandleAppendMessage handles POST /appeals/{appealID}/messages
func (h *MessageHandler) HandleAppendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	appealID, err := uuid.Parse(chi.URLParam(r, "appealID"))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid appeal ID"))
		return
	}

	req, err := validation.DecodeAndValidate[AppendMessageRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	message, err := h.messageService.AppendMessage(r.Context(), ports.AppendMessageParams{
		AppealID: appealID,
		SenderID: claims.UserID,
		Content:  req.Content,
		FileURL:  req.FileURL,
		FileSize: req.FileSize,
		FileType: req.FileType,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, toMessageDTO(message))
}
