package stream

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	registry := NewRegistry(testLogger())

	conn := NewConnection(ConnectionConfig{Logger: testLogger()})
	registry.Register(conn)
	require.Equal(t, 1, registry.Len())

	registry.Unregister(conn.ID())
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryDuplicateRegisterIsNoop(t *testing.T) {
	registry := NewRegistry(testLogger())

	conn := NewConnection(ConnectionConfig{Logger: testLogger()})
	registry.Register(conn)
	registry.Register(conn)

	assert.Equal(t, 1, registry.Len())
}

func TestRegistryUnregisterAbsentIsNoop(t *testing.T) {
	registry := NewRegistry(testLogger())

	require.NotPanics(t, func() {
		registry.Unregister(uuid.New())
	})
	assert.Equal(t, 0, registry.Len())
}

func TestRegistrySnapshotIsPointInTimeCopy(t *testing.T) {
	registry := NewRegistry(testLogger())

	first := NewConnection(ConnectionConfig{Logger: testLogger()})
	second := NewConnection(ConnectionConfig{Logger: testLogger()})
	registry.Register(first)
	registry.Register(second)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)

	// Mutating the registry afterwards must not change the snapshot.
	registry.Unregister(first.ID())
	registry.Unregister(second.ID())
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 0, registry.Len())
}
