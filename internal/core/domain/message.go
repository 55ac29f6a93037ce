package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
)

// Attachment limits mirror what the upload endpoint accepts.
const (
	MaxMessageLength = 4000
	MaxFileSize      = 10 << 20 // 10MB
)

// AllowedFileTypes lists the MIME types accepted as attachments.
var AllowedFileTypes = []string{
	"image/jpeg",
	"image/png",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Message is a chat entry attached to an appeal: text, a file, or both.
type Message struct {
	ID        uuid.UUID
	AppealID  uuid.UUID
	SenderID  uuid.UUID
	Content   *string
	FileURL   *string
	FileSize  *int64
	FileType  *string
	CreatedAt time.Time
}

// MessageParams holds validated input for appending a message.
type MessageParams struct {
	AppealID uuid.UUID
	SenderID uuid.UUID
	Content  *string
	FileURL  *string
	FileSize *int64
	FileType *string
}

// NewMessage is a factory function to create a valid new message.
func NewMessage(params MessageParams) (*Message, error) {
	if params.AppealID == uuid.Nil {
		return nil, apperrors.ErrAppealIDRequired
	}
	if params.SenderID == uuid.Nil {
		return nil, apperrors.ErrSenderIDRequired
	}

	hasContent := params.Content != nil && *params.Content != ""
	hasFile := params.FileURL != nil && *params.FileURL != ""
	if !hasContent && !hasFile {
		return nil, apperrors.ErrMessageEmpty
	}
	if hasContent && len(*params.Content) > MaxMessageLength {
		return nil, apperrors.ErrMessageTooLong
	}

	if hasFile {
		if params.FileSize != nil && *params.FileSize > MaxFileSize {
			return nil, apperrors.ErrFileTooLarge
		}
		if params.FileType != nil && !isAllowedFileType(*params.FileType) {
			return nil, apperrors.ErrFileTypeNotAllowed
		}
	}

	return &Message{
		ID:        uuid.New(),
		AppealID:  params.AppealID,
		SenderID:  params.SenderID,
		Content:   params.Content,
		FileURL:   params.FileURL,
		FileSize:  params.FileSize,
		FileType:  params.FileType,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func isAllowedFileType(mimeType string) bool {
	for _, t := range AllowedFileTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}
