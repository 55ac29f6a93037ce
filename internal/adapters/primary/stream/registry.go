package stream

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks every currently-open connection. It is owned by the
// composition root and shared by reference with the stream handler
// (which registers connections) and the broadcaster (which iterates
// them); it is never a package-level singleton.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*Connection
	logger *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]*Connection),
		logger: logger.With("component", "stream_registry"),
	}
}

// Register adds a connection. Registering the same id twice is a no-op;
// it indicates a lifecycle bug elsewhere, so it is logged.
func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		r.logger.Warn("connection already registered",
			"connection_id", conn.ID(),
		)
		return
	}

	r.conns[conn.ID()] = conn
	r.logger.Info("connection registered",
		"connection_id", conn.ID(),
		"total_connections", len(r.conns),
	)
}

// Unregister removes a connection by id. Removing an absent id is a
// benign no-op: close paths may race and both try to prune.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[id]; !exists {
		return
	}

	delete(r.conns, id)
	r.logger.Info("connection unregistered",
		"connection_id", id,
		"total_connections", len(r.conns),
	)
}

// Snapshot returns a point-in-time copy of the registered connections,
// safe to traverse while other goroutines register and unregister. The
// lock is never held across a write to any connection.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// CloseAll closes every registered connection. Used on shutdown; each
// Close unregisters the connection through its OnClosed callback.
func (r *Registry) CloseAll() {
	for _, conn := range r.Snapshot() {
		conn.Close()
	}
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
