package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

var testEvents = domain.NewEventFactory(clockwork.NewRealClock())

func testAppeal(t *testing.T) *domain.Appeal {
	t.Helper()
	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "Broken printer",
		Description:  "Third floor printer jams on every job",
		DepartmentID: uuid.New(),
		CreatorID:    uuid.New(),
	})
	require.NoError(t, err)
	return appeal
}

func decodeFrame(t *testing.T, frame []byte) domain.Envelope {
	t.Helper()
	require.True(t, bytes.HasPrefix(frame, framePrefix))
	require.True(t, bytes.HasSuffix(frame, frameSuffix))

	payload := frame[len(framePrefix) : len(frame)-len(frameSuffix)]
	var envelope domain.Envelope
	require.NoError(t, json.Unmarshal(payload, &envelope))
	return envelope
}

func TestBroadcasterPublishWithNoConnections(t *testing.T) {
	broadcaster := NewBroadcaster(NewRegistry(testLogger()), testLogger())

	require.NotPanics(t, func() {
		broadcaster.Publish(testEvents.AppealEnvelope(domain.EventEntityCreated, testAppeal(t)))
	})
}

func TestBroadcasterFansOutToEveryConnection(t *testing.T) {
	registry := NewRegistry(testLogger())
	broadcaster := NewBroadcaster(registry, testLogger())

	writers := make([]*chanWriter, 0, 3)
	for i := 0; i < 3; i++ {
		writer := newChanWriter()
		writers = append(writers, writer)

		conn := NewConnection(ConnectionConfig{
			Clock:    clockwork.NewFakeClock(),
			OnClosed: func(c *Connection) { registry.Unregister(c.ID()) },
			Logger:   testLogger(),
		})
		registry.Register(conn)
		go func() { _ = conn.Serve(context.Background(), writer) }()
		require.Equal(t, FrameConnected, writer.next(t))
	}

	appeal := testAppeal(t)
	broadcaster.Publish(testEvents.AppealEnvelope(domain.EventEntityCreated, appeal))

	for _, writer := range writers {
		envelope := decodeFrame(t, writer.next(t))
		assert.Equal(t, domain.EventEntityCreated, envelope.Kind)
		assert.Equal(t, appeal.ID, envelope.EntityID)
		assert.Equal(t, appeal.DepartmentID, envelope.ScopeKeys.DepartmentID)
	}
}

func TestBroadcasterDeliversInPublishOrderPerConnection(t *testing.T) {
	registry := NewRegistry(testLogger())
	broadcaster := NewBroadcaster(registry, testLogger())

	writer := newChanWriter()
	conn := NewConnection(ConnectionConfig{
		Clock:  clockwork.NewFakeClock(),
		Logger: testLogger(),
	})
	registry.Register(conn)
	go func() { _ = conn.Serve(context.Background(), writer) }()
	require.Equal(t, FrameConnected, writer.next(t))

	appeal := testAppeal(t)
	broadcaster.Publish(testEvents.AppealEnvelope(domain.EventEntityCreated, appeal))
	broadcaster.Publish(testEvents.AppealEnvelope(domain.EventEntityUpdated, appeal))
	broadcaster.Publish(testEvents.AppealEnvelope(domain.EventEntityDeleted, appeal))

	var last time.Time
	for _, want := range []domain.EventKind{
		domain.EventEntityCreated,
		domain.EventEntityUpdated,
		domain.EventEntityDeleted,
	} {
		envelope := decodeFrame(t, writer.next(t))
		assert.Equal(t, want, envelope.Kind)
		assert.True(t, envelope.Timestamp.After(last))
		last = envelope.Timestamp
	}
}

func TestBroadcasterIsolatesFailedConnection(t *testing.T) {
	registry := NewRegistry(testLogger())
	broadcaster := NewBroadcaster(registry, testLogger())

	// Healthy connection with a running serve loop.
	healthyWriter := newChanWriter()
	healthy := NewConnection(ConnectionConfig{
		Clock:    clockwork.NewFakeClock(),
		OnClosed: func(c *Connection) { registry.Unregister(c.ID()) },
		Logger:   testLogger(),
	})
	registry.Register(healthy)
	go func() { _ = healthy.Serve(context.Background(), healthyWriter) }()
	require.Equal(t, FrameConnected, healthyWriter.next(t))

	// Stalled connection: no serve loop, tiny buffer already full.
	stalled := NewConnection(ConnectionConfig{
		SendBufferSize: 1,
		OnClosed:       func(c *Connection) { registry.Unregister(c.ID()) },
		Logger:         testLogger(),
	})
	registry.Register(stalled)
	require.True(t, stalled.TrySend([]byte("backlog")))
	require.Equal(t, 2, registry.Len())

	appeal := testAppeal(t)
	broadcaster.Publish(testEvents.AppealEnvelope(domain.EventEntityUpdated, appeal))

	// The healthy connection still received the frame.
	envelope := decodeFrame(t, healthyWriter.next(t))
	assert.Equal(t, domain.EventEntityUpdated, envelope.Kind)

	// The stalled one was closed and pruned; no dead entry remains.
	assert.Equal(t, StateClosed, stalled.State())
	assert.Equal(t, 1, registry.Len())

	// A later publish is unaffected by the earlier failure.
	broadcaster.Publish(testEvents.AppealEnvelope(domain.EventEntityDeleted, appeal))
	envelope = decodeFrame(t, healthyWriter.next(t))
	assert.Equal(t, domain.EventEntityDeleted, envelope.Kind)
}
