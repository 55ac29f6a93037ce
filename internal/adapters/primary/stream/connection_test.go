package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanWriter hands every written frame to the test goroutine, which also
// synchronizes the serve loop with the test's clock advances.
type chanWriter struct {
	frames chan []byte
}

func newChanWriter() *chanWriter {
	return &chanWriter{frames: make(chan []byte, 16)}
}

func (w *chanWriter) Write(p []byte) (int, error) {
	frame := make([]byte, len(p))
	copy(frame, p)
	w.frames <- frame
	return len(p), nil
}

func (w *chanWriter) next(t *testing.T) []byte {
	t.Helper()
	select {
	case frame := <-w.frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestConnectionServeEmitsConnectedThenQueuedFrames(t *testing.T) {
	writer := newChanWriter()
	conn := NewConnection(ConnectionConfig{
		Clock:  clockwork.NewFakeClock(),
		Logger: testLogger(),
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- conn.Serve(context.Background(), writer)
	}()

	assert.Equal(t, FrameConnected, writer.next(t))

	frame := []byte("data: {\"kind\":\"entity_created\"}\n\n")
	require.True(t, conn.TrySend(frame))
	assert.Equal(t, frame, writer.next(t))

	conn.Close()
	require.NoError(t, <-serveErr)
	assert.Equal(t, StateClosed, conn.State())
}

func TestConnectionKeepaliveKeepsIdleConnectionRegistered(t *testing.T) {
	clock := clockwork.NewFakeClock()
	interval := 25 * time.Second

	registry := NewRegistry(testLogger())
	conn := NewConnection(ConnectionConfig{
		KeepaliveInterval: interval,
		Clock:             clock,
		OnClosed:          func(c *Connection) { registry.Unregister(c.ID()) },
		Logger:            testLogger(),
	})
	registry.Register(conn)

	writer := newChanWriter()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- conn.Serve(context.Background(), writer)
	}()

	require.Equal(t, FrameConnected, writer.next(t))

	// Three keepalive intervals with no data frames: the connection must
	// stay open and registered the whole time.
	clock.BlockUntil(1)
	for i := 0; i < 3; i++ {
		clock.Advance(interval)
		assert.Equal(t, FrameKeepalive, writer.next(t))
	}

	assert.Equal(t, StateOpen, conn.State())
	assert.Equal(t, 1, registry.Len())

	conn.Close()
	require.NoError(t, <-serveErr)
	assert.Equal(t, 0, registry.Len())
}

func TestConnectionTrySendFullBufferClosesConnection(t *testing.T) {
	closedCount := 0

	conn := NewConnection(ConnectionConfig{
		SendBufferSize: 1,
		Logger:         testLogger(),
		OnClosed: func(*Connection) {
			closedCount++
		},
	})

	// No serve loop draining the queue: the second frame overflows.
	require.True(t, conn.TrySend([]byte("first")))
	require.False(t, conn.TrySend([]byte("second")))

	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, 1, closedCount)
}

func TestConnectionTrySendAfterCloseReturnsFalse(t *testing.T) {
	conn := NewConnection(ConnectionConfig{Logger: testLogger()})
	conn.Close()

	assert.False(t, conn.TrySend([]byte("late")))
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	conn := NewConnection(ConnectionConfig{
		Logger: testLogger(),
		OnClosed: func(*Connection) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, conn.State())
}

func TestConnectionServeStopsOnWriteError(t *testing.T) {
	registry := NewRegistry(testLogger())
	conn := NewConnection(ConnectionConfig{
		Clock:    clockwork.NewFakeClock(),
		OnClosed: func(c *Connection) { registry.Unregister(c.ID()) },
		Logger:   testLogger(),
	})
	registry.Register(conn)

	err := conn.Serve(context.Background(), failingWriter{})

	require.Error(t, err)
	assert.Equal(t, StateClosed, conn.State())
	assert.Equal(t, 0, registry.Len())
}

func TestConnectionServeStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	writer := newChanWriter()
	conn := NewConnection(ConnectionConfig{
		Clock:  clockwork.NewFakeClock(),
		Logger: testLogger(),
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- conn.Serve(ctx, writer)
	}()
	require.Equal(t, FrameConnected, writer.next(t))

	cancel()

	require.ErrorIs(t, <-serveErr, context.Canceled)
	assert.Equal(t, StateClosed, conn.State())
}
