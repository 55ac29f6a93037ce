package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

func TestEventFactory_TimestampsStrictlyIncreaseUnderFrozenClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	factory := domain.NewEventFactory(clock)

	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Door badge not working",
		DepartmentID: uuid.New(),
		CreatorID:    uuid.New(),
	})
	require.NoError(t, err)

	// The fake clock never advances, so every increase must come from
	// the factory's own bump.
	prev := factory.AppealEnvelope(domain.EventEntityCreated, appeal).Timestamp
	for i := 0; i < 10; i++ {
		next := factory.AppealEnvelope(domain.EventEntityUpdated, appeal).Timestamp
		assert.True(t, next.After(prev), "timestamp %v not after %v", next, prev)
		prev = next
	}
}

func TestEventFactory_FollowsAdvancingClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	factory := domain.NewEventFactory(clock)

	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Replace keyboard",
		DepartmentID: uuid.New(),
		CreatorID:    uuid.New(),
	})
	require.NoError(t, err)

	first := factory.AppealEnvelope(domain.EventEntityCreated, appeal).Timestamp

	clock.Advance(time.Second)
	second := factory.AppealEnvelope(domain.EventEntityUpdated, appeal).Timestamp

	assert.Equal(t, time.Second, second.Sub(first))
}

func TestEventFactory_AppealEnvelopeCarriesScopeKeys(t *testing.T) {
	factory := domain.NewEventFactory(clockwork.NewFakeClock())

	executorID := uuid.New()
	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Printer out of toner",
		DepartmentID: uuid.New(),
		CreatorID:    uuid.New(),
	})
	require.NoError(t, err)
	appeal.ExecutorID = &executorID
	appeal.AssignedExecutorIDs = []uuid.UUID{executorID}

	env := factory.AppealEnvelope(domain.EventEntityUpdated, appeal)

	assert.Equal(t, domain.EventEntityUpdated, env.Kind)
	assert.Equal(t, appeal.ID, env.EntityID)
	assert.Equal(t, appeal.DepartmentID, env.ScopeKeys.DepartmentID)
	assert.Equal(t, appeal.CreatorID, env.ScopeKeys.CreatorID)
	require.NotNil(t, env.ScopeKeys.ExecutorID)
	assert.Equal(t, executorID, *env.ScopeKeys.ExecutorID)
	assert.Equal(t, []uuid.UUID{executorID}, env.ScopeKeys.AssignedExecutorIDs)
	require.NotNil(t, env.Appeal)
	assert.Nil(t, env.Message)
}
