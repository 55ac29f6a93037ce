package domain

import (
	"time"
)

// AppealSnapshot matches the API response shape for appeals. Fields are
// pointers so an envelope may carry a partial snapshot; clients merge
// only the fields that are present.
type AppealSnapshot struct {
	ID           string   `json:"id"`
	Number       *int64   `json:"number,omitempty"`
	Subject      *string  `json:"subject,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Status       *string  `json:"status,omitempty"`
	DepartmentID *string  `json:"departmentId,omitempty"`
	CreatorID    *string  `json:"creatorId,omitempty"`
	ExecutorID   *string  `json:"executorId,omitempty"`
	ExecutorIDs  []string `json:"assignedExecutorIds,omitempty"`
	CreatedAt    *string  `json:"createdAt,omitempty"`
	UpdatedAt    *string  `json:"updatedAt,omitempty"`
}

// MessageSnapshot matches the API response shape for appeal messages.
type MessageSnapshot struct {
	ID        string  `json:"id"`
	AppealID  string  `json:"appealId"`
	SenderID  string  `json:"senderId"`
	Content   *string `json:"content,omitempty"`
	FileURL   *string `json:"fileUrl,omitempty"`
	FileSize  *int64  `json:"fileSize,omitempty"`
	FileType  *string `json:"fileType,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

// NewAppealSnapshot builds a full snapshot from a domain appeal.
func NewAppealSnapshot(appeal *Appeal) AppealSnapshot {
	number := appeal.Number
	subject := appeal.Subject
	description := appeal.Description
	status := string(appeal.Status)
	departmentID := appeal.DepartmentID.String()
	creatorID := appeal.CreatorID.String()
	createdAt := appeal.CreatedAt.UTC().Format(time.RFC3339)

	snapshot := AppealSnapshot{
		ID:           appeal.ID.String(),
		Number:       &number,
		Subject:      &subject,
		Description:  &description,
		Status:       &status,
		DepartmentID: &departmentID,
		CreatorID:    &creatorID,
		CreatedAt:    &createdAt,
	}

	if appeal.ExecutorID != nil {
		value := appeal.ExecutorID.String()
		snapshot.ExecutorID = &value
	}
	for _, id := range appeal.AssignedExecutorIDs {
		snapshot.ExecutorIDs = append(snapshot.ExecutorIDs, id.String())
	}
	if appeal.UpdatedAt != nil {
		value := appeal.UpdatedAt.UTC().Format(time.RFC3339)
		snapshot.UpdatedAt = &value
	}

	return snapshot
}

// NewMessageSnapshot builds a snapshot from a domain message.
func NewMessageSnapshot(message *Message) MessageSnapshot {
	return MessageSnapshot{
		ID:        message.ID.String(),
		AppealID:  message.AppealID.String(),
		SenderID:  message.SenderID.String(),
		Content:   message.Content,
		FileURL:   message.FileURL,
		FileSize:  message.FileSize,
		FileType:  message.FileType,
		CreatedAt: message.CreatedAt.UTC().Format(time.RFC3339),
	}
}
