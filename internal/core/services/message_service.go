package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// MessageService implements business logic for appeal messages.
type MessageService struct {
	messageRepo ports.MessageRepository
	appealRepo  ports.AppealRepository
	userRepo    ports.UserRepository
	broadcaster ports.EventBroadcaster
	events      *domain.EventFactory
}

var _ ports.MessageService = (*MessageService)(nil)

// NewMessageService creates a new message service.
func NewMessageService(
	messageRepo ports.MessageRepository,
	appealRepo ports.AppealRepository,
	userRepo ports.UserRepository,
	broadcaster ports.EventBroadcaster,
	events *domain.EventFactory,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		appealRepo:  appealRepo,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		events:      events,
	}
}

// AppendMessage adds a message to an appeal's thread.
func (s *MessageService) AppendMessage(ctx context.Context, params ports.AppendMessageParams) (*domain.Message, error) {
	appeal, err := s.appealRepo.GetByID(ctx, params.AppealID)
	if err != nil {
		return nil, err
	}

	sender, err := s.userRepo.GetByID(ctx, params.SenderID)
	if err != nil {
		return nil, err
	}

	if !canViewAppeal(appeal, sender) {
		return nil, apperrors.ErrForbidden
	}

	message, err := domain.NewMessage(domain.MessageParams{
		AppealID: params.AppealID,
		SenderID: params.SenderID,
		Content:  params.Content,
		FileURL:  params.FileURL,
		FileSize: params.FileSize,
		FileType: params.FileType,
	})
	if err != nil {
		return nil, err
	}

	created, err := s.messageRepo.Create(ctx, message)
	if err != nil {
		return nil, err
	}

	// Scope keys come from the owning appeal so clients can route the
	// message without a lookup.
	s.broadcaster.Publish(s.events.MessageEnvelope(appeal, created))

	return created, nil
}

// ListMessages returns the message thread of an appeal, oldest first.
func (s *MessageService) ListMessages(ctx context.Context, appealID, viewerID uuid.UUID) ([]*domain.Message, error) {
	appeal, err := s.appealRepo.GetByID(ctx, appealID)
	if err != nil {
		return nil, err
	}

	viewer, err := s.userRepo.GetByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	if !canViewAppeal(appeal, viewer) {
		return nil, apperrors.ErrForbidden
	}

	return s.messageRepo.ListByAppealID(ctx, appealID)
}
