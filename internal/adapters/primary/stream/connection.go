package stream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// State is the lifecycle state of a connection. Transitions are
// monotonic: open -> closing -> closed, with no way back to open. A hard
// write failure may collapse open -> closed in one step.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Connection owns the lifecycle of one open event stream: the outbound
// frame queue, the keepalive timer, and the terminal cleanup. The
// registry holds it only as a non-owning reference for broadcast.
type Connection struct {
	id    uuid.UUID
	out   chan []byte
	done  chan struct{}
	state atomic.Int32

	clock     clockwork.Clock
	keepalive time.Duration

	// closeOnce guarantees the close path runs exactly once even when
	// keepalive and broadcast failures race.
	closeOnce sync.Once
	onClosed  func(*Connection)

	mu           sync.Mutex
	lastActivity time.Time

	logger *slog.Logger
}

// ConnectionConfig holds construction parameters for a Connection.
type ConnectionConfig struct {
	ID                uuid.UUID
	KeepaliveInterval time.Duration
	SendBufferSize    int
	Clock             clockwork.Clock
	OnClosed          func(*Connection)
	Logger            *slog.Logger
}

// NewConnection creates a connection in the open state.
func NewConnection(cfg ConnectionConfig) *Connection {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = 25 * time.Second
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Connection{
		id:        cfg.ID,
		out:       make(chan []byte, cfg.SendBufferSize),
		done:      make(chan struct{}),
		clock:     cfg.Clock,
		keepalive: cfg.KeepaliveInterval,
		onClosed:  cfg.OnClosed,
		logger:    cfg.Logger.With("connection_id", cfg.ID.String()),
	}
	c.lastActivity = cfg.Clock.Now()
	return c
}

// ID returns the opaque handle of this connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// LastActivity returns the time of the last successful write.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// TrySend queues one frame for delivery without blocking. A full buffer
// means the client cannot keep up; that counts as a delivery failure and
// closes the connection, exactly like a failed write. Returns false when
// the frame was not queued.
func (c *Connection) TrySend(frame []byte) bool {
	if c.State() != StateOpen {
		return false
	}

	select {
	case c.out <- frame:
		return true
	default:
		c.logger.Warn("send buffer full, closing connection")
		c.Close()
		return false
	}
}

// Close transitions the connection to its terminal state. It is
// idempotent: concurrent triggers (keepalive failure, broadcast failure,
// client disconnect) all converge on one cleanup that stops the writer
// loop, removes the connection from the registry, and marks it closed.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))

		// Stops the serve loop and its keepalive ticker.
		close(c.done)

		// Registry removal is synchronous with the closed transition so
		// no broadcast observes a dead entry it has not pruned.
		if c.onClosed != nil {
			c.onClosed(c)
		}

		c.state.Store(int32(StateClosed))
		c.logger.Debug("connection closed")
	})
}

// Serve runs the write loop on the caller's goroutine until the client
// disconnects, the connection is closed, or a write fails. It emits the
// connected sentinel first, then interleaves queued frames with
// keepalives. The caller owns w for the duration of the call.
func (c *Connection) Serve(ctx context.Context, w io.Writer) error {
	defer c.Close()

	if err := c.write(w, FrameConnected); err != nil {
		return err
	}

	ticker := c.clock.NewTicker(c.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client went away; cleanup happens in the deferred Close.
			return ctx.Err()

		case <-c.done:
			return nil

		case frame := <-c.out:
			if err := c.write(w, frame); err != nil {
				return err
			}

		case <-ticker.Chan():
			if err := c.write(w, FrameKeepalive); err != nil {
				return err
			}
		}
	}
}

// write pushes one frame and flushes it through any buffering layer.
func (c *Connection) write(w io.Writer, frame []byte) error {
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	c.mu.Lock()
	c.lastActivity = c.clock.Now()
	c.mu.Unlock()
	return nil
}
