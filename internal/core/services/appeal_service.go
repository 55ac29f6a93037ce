package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// AppealService implements business logic for appeal management.
type AppealService struct {
	appealRepo  ports.AppealRepository
	userRepo    ports.UserRepository
	notifier    ports.Notifier
	broadcaster ports.EventBroadcaster
	events      *domain.EventFactory
	wg          sync.WaitGroup
}

var _ ports.AppealService = (*AppealService)(nil)

// NewAppealService creates a new appeal service.
func NewAppealService(
	appealRepo ports.AppealRepository,
	userRepo ports.UserRepository,
	notifier ports.Notifier,
	broadcaster ports.EventBroadcaster,
	events *domain.EventFactory,
) *AppealService {
	return &AppealService{
		appealRepo:  appealRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		broadcaster: broadcaster,
		events:      events,
	}
}

// CreateAppeal handles the use case for submitting a new appeal.
func (s *AppealService) CreateAppeal(ctx context.Context, params ports.CreateAppealParams) (*domain.Appeal, error) {
	// 1. Create domain entity with validation
	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      params.Subject,
		Description:  params.Description,
		DepartmentID: params.DepartmentID,
		CreatorID:    params.CreatorID,
		ExecutorID:   params.ExecutorID,
	})
	if err != nil {
		return nil, err
	}

	// 2. Persist the appeal (the store assigns the sequential number)
	created, err := s.appealRepo.Create(ctx, appeal)
	if err != nil {
		return nil, err
	}

	// 3. Broadcast with post-commit values; never affects the result
	s.broadcaster.Publish(s.events.AppealEnvelope(domain.EventEntityCreated, created))

	return created, nil
}

// GetAppeal retrieves a specific appeal with authorization.
func (s *AppealService) GetAppeal(ctx context.Context, appealID, viewerID uuid.UUID) (*domain.Appeal, error) {
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
	return appeal, nil
}

// UpdateStatus changes an appeal's status with business rule enforcement.
func (s *AppealService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Appeal, error) {
	appeal, err := s.appealRepo.GetByID(ctx, params.AppealID)
	if err != nil {
		return nil, err
	}

	actor, err := s.userRepo.GetByID(ctx, params.ActorID)
	if err != nil {
		return nil, err
	}

	// Accepting a pending appeal is open to anyone in the receiving
	// department; every other transition requires being involved.
	accepting := appeal.Status == domain.StatusPending && params.Status == domain.StatusInProgress
	if accepting {
		if actor.Role != domain.RoleAdmin && actor.DepartmentID != appeal.DepartmentID {
			return nil, apperrors.ErrForbidden
		}
	} else if !canActOnAppeal(appeal, actor) {
		return nil, apperrors.ErrForbidden
	}

	// Apply the status change (domain validates the transition)
	if err := appeal.UpdateStatus(params.Status, params.ActorID); err != nil {
		return nil, err
	}

	updated, err := s.appealRepo.Update(ctx, appeal)
	if err != nil {
		return nil, err
	}

	// Notify the creator about changes made by someone else (async)
	if updated.CreatorID != params.ActorID {
		s.notifyStatusUpdate(updated)
	}

	s.broadcaster.Publish(s.events.AppealEnvelope(domain.EventEntityUpdated, updated))

	return updated, nil
}

// AssignAppeal sets the primary executor or adds an assigned executor.
func (s *AppealService) AssignAppeal(ctx context.Context, params ports.AssignAppealParams) (*domain.Appeal, error) {
	actor, err := s.userRepo.GetByID(ctx, params.ActorID)
	if err != nil {
		return nil, err
	}

	appeal, err := s.appealRepo.GetByID(ctx, params.AppealID)
	if err != nil {
		return nil, err
	}

	// Only a head of the receiving department or an admin may assign.
	isHead := actor.Role == domain.RoleDepartmentHead && actor.DepartmentID == appeal.DepartmentID
	if !isHead && actor.Role != domain.RoleAdmin {
		return nil, apperrors.ErrForbidden
	}

	if appeal.ExecutorID == nil {
		err = appeal.Assign(params.ExecutorID)
	} else {
		err = appeal.AddExecutor(params.ExecutorID)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.appealRepo.Update(ctx, appeal)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(s.events.AppealEnvelope(domain.EventEntityUpdated, updated))

	return updated, nil
}

// EditAppeal updates the subject and description of an appeal.
func (s *AppealService) EditAppeal(ctx context.Context, params ports.EditAppealParams) (*domain.Appeal, error) {
	appeal, err := s.appealRepo.GetByID(ctx, params.AppealID)
	if err != nil {
		return nil, err
	}

	actor, err := s.userRepo.GetByID(ctx, params.ActorID)
	if err != nil {
		return nil, err
	}

	if !appeal.IsCreatedBy(params.ActorID) && actor.Role != domain.RoleAdmin {
		return nil, apperrors.ErrForbidden
	}

	if err := appeal.Edit(params.Subject, params.Description); err != nil {
		return nil, err
	}

	updated, err := s.appealRepo.Update(ctx, appeal)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Publish(s.events.AppealEnvelope(domain.EventEntityUpdated, updated))

	return updated, nil
}

// DeleteAppeal removes an appeal. Creators may delete their own pending
// appeals; admins may delete any appeal.
func (s *AppealService) DeleteAppeal(ctx context.Context, appealID, actorID uuid.UUID) error {
	appeal, err := s.appealRepo.GetByID(ctx, appealID)
	if err != nil {
		return err
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return err
	}

	if actor.Role != domain.RoleAdmin {
		if !appeal.IsCreatedBy(actorID) || appeal.Status != domain.StatusPending {
			return apperrors.ErrForbidden
		}
	}

	if err := s.appealRepo.Delete(ctx, appealID); err != nil {
		return err
	}

	s.broadcaster.Publish(s.events.AppealEnvelope(domain.EventEntityDeleted, appeal))

	return nil
}

// ListAppeals retrieves appeals visible to the viewer through the given
// filter. Non-admins may only scope queries to themselves or their own
// department.
func (s *AppealService) ListAppeals(ctx context.Context, params ports.ListAppealsParams) ([]*domain.Appeal, error) {
	viewer, err := s.userRepo.GetByID(ctx, params.ViewerID)
	if err != nil {
		return nil, err
	}

	if viewer.Role != domain.RoleAdmin {
		if params.CreatorID != uuid.Nil && params.CreatorID != viewer.ID {
			return nil, apperrors.ErrForbidden
		}
		if params.ExecutorID != uuid.Nil && params.ExecutorID != viewer.ID {
			return nil, apperrors.ErrForbidden
		}
		if params.DepartmentID != uuid.Nil && params.DepartmentID != viewer.DepartmentID {
			return nil, apperrors.ErrForbidden
		}
	}

	return s.appealRepo.List(ctx, ports.ListAppealsFilter{
		CreatorID:    params.CreatorID,
		DepartmentID: params.DepartmentID,
		ExecutorID:   params.ExecutorID,
		Status:       params.Status,
		OpenOnly:     params.OpenOnly,
	})
}

// notifyStatusUpdate sends a notification to the creator in the background.
func (s *AppealService) notifyStatusUpdate(appeal *domain.Appeal) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Background context: the HTTP request may already be done
		ctx := context.Background()

		s.notifier.Notify(ctx, ports.NotificationParams{
			RecipientUserID: appeal.CreatorID,
			Subject:         fmt.Sprintf("Appeal #%d status updated", appeal.Number),
			Message:         fmt.Sprintf("The status of your appeal '%s' was changed to %s.", appeal.Subject, appeal.Status),
			AppealID:        appeal.ID,
		})
	}()
}

// Shutdown waits for in-flight background notifications to finish.
func (s *AppealService) Shutdown() {
	s.wg.Wait()
}

// canViewAppeal reports whether the viewer may read the appeal: its
// creator, any of its executors, anyone in the receiving department, or
// an admin.
func canViewAppeal(appeal *domain.Appeal, viewer *domain.User) bool {
	if viewer.Role == domain.RoleAdmin {
		return true
	}
	return appeal.IsCreatedBy(viewer.ID) ||
		appeal.IsExecutedBy(viewer.ID) ||
		appeal.DepartmentID == viewer.DepartmentID
}

// canActOnAppeal reports whether the actor may mutate the appeal's
// status outside the accept path.
func canActOnAppeal(appeal *domain.Appeal, actor *domain.User) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if actor.Role == domain.RoleDepartmentHead && actor.DepartmentID == appeal.DepartmentID {
		return true
	}
	return appeal.IsCreatedBy(actor.ID) || appeal.IsExecutedBy(actor.ID)
}
