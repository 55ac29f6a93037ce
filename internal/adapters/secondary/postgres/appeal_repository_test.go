package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extectick/appeals-backend/internal/core/domain"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// seedDepartment inserts a department fixture.
func seedDepartment(t *testing.T, name string) uuid.UUID {
	t.Helper()
	require.NotNil(t, testPool, "testPool is nil. TestMain may not have run.")

	id := uuid.New()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO departments (id, name) VALUES ($1, $2)`, id, name)
	require.NoError(t, err)
	return id
}

// seedUser inserts a user fixture bound to a fresh telegram id.
func seedUser(t *testing.T, departmentID uuid.UUID, role domain.Role) *domain.User {
	t.Helper()

	user := &domain.User{
		ID:           uuid.New(),
		TelegramID:   time.Now().UnixNano(),
		FullName:     "Fixture User",
		Role:         role,
		DepartmentID: departmentID,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO users (id, telegram_id, full_name, role, department_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.TelegramID, user.FullName, user.Role, user.DepartmentID, user.CreatedAt)
	require.NoError(t, err)
	return user
}

func newAppealRepo() *AppealRepository {
	return NewAppealRepository(testPool, NewTransactionManager(testPool))
}

func TestAppealRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := newAppealRepo()

	departmentID := seedDepartment(t, "IT-"+uuid.NewString())
	creator := seedUser(t, departmentID, domain.RoleUser)

	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Laptop will not boot",
		Description:  "Black screen after the last update",
		DepartmentID: departmentID,
		CreatorID:    creator.ID,
	})
	require.NoError(t, err)

	created, err := repo.Create(ctx, appeal)
	require.NoError(t, err)
	assert.Positive(t, created.Number, "number must be assigned by the database")

	found, err := repo.GetByID(ctx, appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Number, found.Number)
	assert.Equal(t, "Laptop will not boot", found.Subject)
	assert.Equal(t, domain.StatusPending, found.Status)
	assert.Nil(t, found.ExecutorID)
	assert.Empty(t, found.AssignedExecutorIDs)
}

func TestAppealRepository_GetByID_NotFound(t *testing.T) {
	repo := newAppealRepo()

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ports.ErrAppealNotFound)
}

func TestAppealRepository_UpdateWithExecutors(t *testing.T) {
	ctx := context.Background()
	repo := newAppealRepo()

	departmentID := seedDepartment(t, "HR-"+uuid.NewString())
	creator := seedUser(t, departmentID, domain.RoleUser)
	executor := seedUser(t, departmentID, domain.RoleUser)
	helper := seedUser(t, departmentID, domain.RoleUser)

	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Vacation days missing",
		DepartmentID: departmentID,
		CreatorID:    creator.ID,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, appeal)
	require.NoError(t, err)

	require.NoError(t, appeal.UpdateStatus(domain.StatusInProgress, executor.ID))
	require.NoError(t, appeal.AddExecutor(helper.ID))

	_, err = repo.Update(ctx, appeal)
	require.NoError(t, err)

	found, err := repo.GetByID(ctx, appeal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, found.Status)
	require.NotNil(t, found.ExecutorID)
	assert.Equal(t, executor.ID, *found.ExecutorID)
	assert.Equal(t, []uuid.UUID{helper.ID}, found.AssignedExecutorIDs)
	assert.NotNil(t, found.UpdatedAt)
}

func TestAppealRepository_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := newAppealRepo()

	departmentID := seedDepartment(t, "Ops-"+uuid.NewString())
	otherDepartmentID := seedDepartment(t, "Sec-"+uuid.NewString())
	creator := seedUser(t, departmentID, domain.RoleUser)
	executor := seedUser(t, departmentID, domain.RoleUser)

	makeAppeal := func(deptID uuid.UUID, subject string) *domain.Appeal {
		appeal, err := domain.NewAppeal(domain.AppealParams{
			Subject:      subject,
			DepartmentID: deptID,
			CreatorID:    creator.ID,
		})
		require.NoError(t, err)
		_, err = repo.Create(ctx, appeal)
		require.NoError(t, err)
		return appeal
	}

	first := makeAppeal(departmentID, "First")
	second := makeAppeal(departmentID, "Second")
	makeAppeal(otherDepartmentID, "Elsewhere")

	require.NoError(t, second.UpdateStatus(domain.StatusInProgress, executor.ID))
	_, err := repo.Update(ctx, second)
	require.NoError(t, err)

	t.Run("by department, most recent first", func(t *testing.T) {
		appeals, err := repo.List(ctx, ports.ListAppealsFilter{DepartmentID: departmentID})
		require.NoError(t, err)
		require.Len(t, appeals, 2)
		assert.Equal(t, second.ID, appeals[0].ID)
		assert.Equal(t, first.ID, appeals[1].ID)
	})

	t.Run("by executor", func(t *testing.T) {
		appeals, err := repo.List(ctx, ports.ListAppealsFilter{ExecutorID: executor.ID})
		require.NoError(t, err)
		require.Len(t, appeals, 1)
		assert.Equal(t, second.ID, appeals[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		status := domain.StatusPending
		appeals, err := repo.List(ctx, ports.ListAppealsFilter{
			DepartmentID: departmentID,
			Status:       &status,
		})
		require.NoError(t, err)
		require.Len(t, appeals, 1)
		assert.Equal(t, first.ID, appeals[0].ID)
	})

	t.Run("open only drops completed work", func(t *testing.T) {
		require.NoError(t, second.UpdateStatus(domain.StatusCompleted, executor.ID))
		_, err := repo.Update(ctx, second)
		require.NoError(t, err)

		// The executor keeps the row without the filter.
		appeals, err := repo.List(ctx, ports.ListAppealsFilter{ExecutorID: executor.ID})
		require.NoError(t, err)
		require.Len(t, appeals, 1)

		appeals, err = repo.List(ctx, ports.ListAppealsFilter{
			ExecutorID: executor.ID,
			OpenOnly:   true,
		})
		require.NoError(t, err)
		assert.Empty(t, appeals)

		// Open appeals in the department still come back.
		appeals, err = repo.List(ctx, ports.ListAppealsFilter{
			DepartmentID: departmentID,
			OpenOnly:     true,
		})
		require.NoError(t, err)
		require.Len(t, appeals, 1)
		assert.Equal(t, first.ID, appeals[0].ID)
	})
}

func TestAppealRepository_DeleteCascadesMessages(t *testing.T) {
	ctx := context.Background()
	repo := newAppealRepo()
	messageRepo := NewMessageRepository(testPool)

	departmentID := seedDepartment(t, "Fin-"+uuid.NewString())
	creator := seedUser(t, departmentID, domain.RoleUser)

	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Expense report stuck",
		DepartmentID: departmentID,
		CreatorID:    creator.ID,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, appeal)
	require.NoError(t, err)

	content := "Any update?"
	message, err := domain.NewMessage(domain.MessageParams{
		AppealID: appeal.ID,
		SenderID: creator.ID,
		Content:  &content,
	})
	require.NoError(t, err)
	_, err = messageRepo.Create(ctx, message)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, appeal.ID))

	_, err = repo.GetByID(ctx, appeal.ID)
	assert.ErrorIs(t, err, ports.ErrAppealNotFound)

	messages, err := messageRepo.ListByAppealID(ctx, appeal.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMessageRepository_CreateList(t *testing.T) {
	ctx := context.Background()
	repo := newAppealRepo()
	messageRepo := NewMessageRepository(testPool)

	departmentID := seedDepartment(t, "Log-"+uuid.NewString())
	creator := seedUser(t, departmentID, domain.RoleUser)

	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Badge reader offline",
		DepartmentID: departmentID,
		CreatorID:    creator.ID,
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, appeal)
	require.NoError(t, err)

	for _, text := range []string{"first", "second"} {
		content := text
		message, err := domain.NewMessage(domain.MessageParams{
			AppealID: appeal.ID,
			SenderID: creator.ID,
			Content:  &content,
		})
		require.NoError(t, err)
		// Keep created_at strictly increasing for the ordering check.
		message.CreatedAt = message.CreatedAt.Add(time.Duration(len(text)) * time.Millisecond)
		_, err = messageRepo.Create(ctx, message)
		require.NoError(t, err)
	}

	messages, err := messageRepo.ListByAppealID(ctx, appeal.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", *messages[0].Content)
	assert.Equal(t, "second", *messages[1].Content)
}
