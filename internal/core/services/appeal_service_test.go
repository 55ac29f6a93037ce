package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/extectick/appeals-backend/internal/core/domain"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
	"github.com/extectick/appeals-backend/internal/core/mocks"
	"github.com/extectick/appeals-backend/internal/core/ports"
	"github.com/extectick/appeals-backend/internal/core/services"
)

type appealServiceMocks struct {
	appealRepo  *mocks.MockAppealRepository
	userRepo    *mocks.MockUserRepository
	notifier    *mocks.MockNotifier
	broadcaster *mocks.MockEventBroadcaster
}

func newAppealService() (*services.AppealService, appealServiceMocks) {
	m := appealServiceMocks{
		appealRepo:  mocks.NewMockAppealRepository(),
		userRepo:    mocks.NewMockUserRepository(),
		notifier:    mocks.NewMockNotifier(),
		broadcaster: mocks.NewMockEventBroadcaster(),
	}
	svc := services.NewAppealService(m.appealRepo, m.userRepo, m.notifier, m.broadcaster, domain.NewEventFactory(clockwork.NewRealClock()))
	return svc, m
}

func envelopeOfKind(kind domain.EventKind) interface{} {
	return mock.MatchedBy(func(e domain.Envelope) bool {
		return e.Kind == kind
	})
}

func TestAppealService_CreateAppeal(t *testing.T) {
	ctx := context.Background()
	departmentID := uuid.New()
	creatorID := uuid.New()

	t.Run("success broadcasts entity_created", func(t *testing.T) {
		svc, m := newAppealService()

		m.appealRepo.On("Create", ctx, mock.AnythingOfType("*domain.Appeal")).
			Return(&domain.Appeal{
				ID:           uuid.New(),
				Number:       42,
				Subject:      "Broken printer",
				Status:       domain.StatusPending,
				DepartmentID: departmentID,
				CreatorID:    creatorID,
			}, nil)
		m.broadcaster.On("Publish", envelopeOfKind(domain.EventEntityCreated)).Return()

		appeal, err := svc.CreateAppeal(ctx, ports.CreateAppealParams{
			Subject:      "Broken printer",
			Description:  "Jams on every job",
			DepartmentID: departmentID,
			CreatorID:    creatorID,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(42), appeal.Number)
		assert.Equal(t, domain.StatusPending, appeal.Status)
		m.appealRepo.AssertExpectations(t)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("validation error for empty subject", func(t *testing.T) {
		svc, m := newAppealService()

		appeal, err := svc.CreateAppeal(ctx, ports.CreateAppealParams{
			Subject:      "",
			DepartmentID: departmentID,
			CreatorID:    creatorID,
		})

		assert.Nil(t, appeal)
		assert.ErrorIs(t, err, apperrors.ErrSubjectRequired)
		m.appealRepo.AssertNotCalled(t, "Create")
		m.broadcaster.AssertNotCalled(t, "Publish")
	})

	t.Run("no broadcast when persistence fails", func(t *testing.T) {
		svc, m := newAppealService()

		m.appealRepo.On("Create", ctx, mock.AnythingOfType("*domain.Appeal")).
			Return(nil, assert.AnError)

		appeal, err := svc.CreateAppeal(ctx, ports.CreateAppealParams{
			Subject:      "Broken printer",
			DepartmentID: departmentID,
			CreatorID:    creatorID,
		})

		assert.Nil(t, appeal)
		assert.Error(t, err)
		m.broadcaster.AssertNotCalled(t, "Publish")
	})
}

func TestAppealService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	departmentID := uuid.New()
	creatorID := uuid.New()

	pendingAppeal := func() *domain.Appeal {
		return &domain.Appeal{
			ID:           uuid.New(),
			Number:       7,
			Subject:      "No network on floor 2",
			Status:       domain.StatusPending,
			DepartmentID: departmentID,
			CreatorID:    creatorID,
		}
	}

	t.Run("department member accepts and becomes executor", func(t *testing.T) {
		svc, m := newAppealService()
		appeal := pendingAppeal()
		actorID := uuid.New()

		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.userRepo.On("GetByID", ctx, actorID).Return(&domain.User{
			ID:           actorID,
			Role:         domain.RoleUser,
			DepartmentID: departmentID,
		}, nil)
		m.appealRepo.On("Update", ctx, appeal).Return(appeal, nil)
		m.notifier.On("Notify", mock.Anything, mock.AnythingOfType("ports.NotificationParams")).Return()
		m.broadcaster.On("Publish", envelopeOfKind(domain.EventEntityUpdated)).Return()

		updated, err := svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			AppealID: appeal.ID,
			Status:   domain.StatusInProgress,
			ActorID:  actorID,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, updated.Status)
		require.NotNil(t, updated.ExecutorID)
		assert.Equal(t, actorID, *updated.ExecutorID)

		svc.Shutdown()
		m.notifier.AssertExpectations(t)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("forbidden for member of another department", func(t *testing.T) {
		svc, m := newAppealService()
		appeal := pendingAppeal()
		actorID := uuid.New()

		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.userRepo.On("GetByID", ctx, actorID).Return(&domain.User{
			ID:           actorID,
			Role:         domain.RoleUser,
			DepartmentID: uuid.New(),
		}, nil)

		updated, err := svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			AppealID: appeal.ID,
			Status:   domain.StatusInProgress,
			ActorID:  actorID,
		})

		assert.Nil(t, updated)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		m.appealRepo.AssertNotCalled(t, "Update")
		m.broadcaster.AssertNotCalled(t, "Publish")
	})

	t.Run("invalid transition is rejected", func(t *testing.T) {
		svc, m := newAppealService()
		appeal := pendingAppeal()

		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.userRepo.On("GetByID", ctx, creatorID).Return(&domain.User{
			ID:           creatorID,
			Role:         domain.RoleUser,
			DepartmentID: uuid.New(),
		}, nil)

		updated, err := svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			AppealID: appeal.ID,
			Status:   domain.StatusCompleted,
			ActorID:  creatorID,
		})

		assert.Nil(t, updated)
		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		m.broadcaster.AssertNotCalled(t, "Publish")
	})

	t.Run("no notification when actor is the creator", func(t *testing.T) {
		svc, m := newAppealService()
		appeal := pendingAppeal()
		appeal.Status = domain.StatusInConfirmation
		executorID := uuid.New()
		appeal.ExecutorID = &executorID

		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.userRepo.On("GetByID", ctx, creatorID).Return(&domain.User{
			ID:           creatorID,
			Role:         domain.RoleUser,
			DepartmentID: uuid.New(),
		}, nil)
		m.appealRepo.On("Update", ctx, appeal).Return(appeal, nil)
		m.broadcaster.On("Publish", envelopeOfKind(domain.EventEntityUpdated)).Return()

		updated, err := svc.UpdateStatus(ctx, ports.UpdateStatusParams{
			AppealID: appeal.ID,
			Status:   domain.StatusCompleted,
			ActorID:  creatorID,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, updated.Status)

		svc.Shutdown()
		m.notifier.AssertNotCalled(t, "Notify")
	})
}

func TestAppealService_AssignAppeal(t *testing.T) {
	ctx := context.Background()
	departmentID := uuid.New()

	appeal := &domain.Appeal{
		ID:           uuid.New(),
		Subject:      "VPN access",
		Status:       domain.StatusPending,
		DepartmentID: departmentID,
		CreatorID:    uuid.New(),
	}

	t.Run("department head assigns executor", func(t *testing.T) {
		svc, m := newAppealService()
		headID := uuid.New()
		executorID := uuid.New()

		m.userRepo.On("GetByID", ctx, headID).Return(&domain.User{
			ID:           headID,
			Role:         domain.RoleDepartmentHead,
			DepartmentID: departmentID,
		}, nil)
		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.appealRepo.On("Update", ctx, appeal).Return(appeal, nil)
		m.broadcaster.On("Publish", envelopeOfKind(domain.EventEntityUpdated)).Return()

		updated, err := svc.AssignAppeal(ctx, ports.AssignAppealParams{
			AppealID:   appeal.ID,
			ExecutorID: executorID,
			ActorID:    headID,
		})

		require.NoError(t, err)
		require.NotNil(t, updated.ExecutorID)
		assert.Equal(t, executorID, *updated.ExecutorID)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("regular user cannot assign", func(t *testing.T) {
		svc, m := newAppealService()
		actorID := uuid.New()

		m.userRepo.On("GetByID", ctx, actorID).Return(&domain.User{
			ID:           actorID,
			Role:         domain.RoleUser,
			DepartmentID: departmentID,
		}, nil)
		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)

		updated, err := svc.AssignAppeal(ctx, ports.AssignAppealParams{
			AppealID:   appeal.ID,
			ExecutorID: uuid.New(),
			ActorID:    actorID,
		})

		assert.Nil(t, updated)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		m.appealRepo.AssertNotCalled(t, "Update")
	})
}

func TestAppealService_DeleteAppeal(t *testing.T) {
	ctx := context.Background()
	creatorID := uuid.New()

	t.Run("creator deletes own pending appeal", func(t *testing.T) {
		svc, m := newAppealService()
		appeal := &domain.Appeal{
			ID:           uuid.New(),
			Status:       domain.StatusPending,
			DepartmentID: uuid.New(),
			CreatorID:    creatorID,
		}

		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.userRepo.On("GetByID", ctx, creatorID).Return(&domain.User{
			ID:   creatorID,
			Role: domain.RoleUser,
		}, nil)
		m.appealRepo.On("Delete", ctx, appeal.ID).Return(nil)
		m.broadcaster.On("Publish", envelopeOfKind(domain.EventEntityDeleted)).Return()

		err := svc.DeleteAppeal(ctx, appeal.ID, creatorID)

		require.NoError(t, err)
		m.appealRepo.AssertExpectations(t)
		m.broadcaster.AssertExpectations(t)
	})

	t.Run("creator cannot delete an accepted appeal", func(t *testing.T) {
		svc, m := newAppealService()
		appeal := &domain.Appeal{
			ID:           uuid.New(),
			Status:       domain.StatusInProgress,
			DepartmentID: uuid.New(),
			CreatorID:    creatorID,
		}

		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.userRepo.On("GetByID", ctx, creatorID).Return(&domain.User{
			ID:   creatorID,
			Role: domain.RoleUser,
		}, nil)

		err := svc.DeleteAppeal(ctx, appeal.ID, creatorID)

		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		m.appealRepo.AssertNotCalled(t, "Delete")
	})

	t.Run("admin deletes any appeal", func(t *testing.T) {
		svc, m := newAppealService()
		adminID := uuid.New()
		appeal := &domain.Appeal{
			ID:           uuid.New(),
			Status:       domain.StatusCompleted,
			DepartmentID: uuid.New(),
			CreatorID:    creatorID,
		}

		m.appealRepo.On("GetByID", ctx, appeal.ID).Return(appeal, nil)
		m.userRepo.On("GetByID", ctx, adminID).Return(&domain.User{
			ID:   adminID,
			Role: domain.RoleAdmin,
		}, nil)
		m.appealRepo.On("Delete", ctx, appeal.ID).Return(nil)
		m.broadcaster.On("Publish", envelopeOfKind(domain.EventEntityDeleted)).Return()

		require.NoError(t, svc.DeleteAppeal(ctx, appeal.ID, adminID))
	})
}

func TestAppealService_ListAppeals(t *testing.T) {
	ctx := context.Background()
	departmentID := uuid.New()
	viewerID := uuid.New()

	viewer := &domain.User{
		ID:           viewerID,
		Role:         domain.RoleUser,
		DepartmentID: departmentID,
	}

	t.Run("viewer lists own department queue", func(t *testing.T) {
		svc, m := newAppealService()

		m.userRepo.On("GetByID", ctx, viewerID).Return(viewer, nil)
		m.appealRepo.On("List", ctx, ports.ListAppealsFilter{DepartmentID: departmentID}).
			Return([]*domain.Appeal{{ID: uuid.New()}}, nil)

		appeals, err := svc.ListAppeals(ctx, ports.ListAppealsParams{
			ViewerID:     viewerID,
			DepartmentID: departmentID,
		})

		require.NoError(t, err)
		assert.Len(t, appeals, 1)
	})

	t.Run("viewer cannot list another department", func(t *testing.T) {
		svc, m := newAppealService()

		m.userRepo.On("GetByID", ctx, viewerID).Return(viewer, nil)

		appeals, err := svc.ListAppeals(ctx, ports.ListAppealsParams{
			ViewerID:     viewerID,
			DepartmentID: uuid.New(),
		})

		assert.Nil(t, appeals)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		m.appealRepo.AssertNotCalled(t, "List")
	})

	t.Run("viewer cannot impersonate another creator", func(t *testing.T) {
		svc, m := newAppealService()

		m.userRepo.On("GetByID", ctx, viewerID).Return(viewer, nil)

		_, err := svc.ListAppeals(ctx, ports.ListAppealsParams{
			ViewerID:  viewerID,
			CreatorID: uuid.New(),
		})

		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}
