package stream

import (
	"log/slog"

	"github.com/extectick/appeals-backend/internal/core/domain"
	"github.com/extectick/appeals-backend/internal/core/ports"
)

// Broadcaster fans one envelope out to every registered connection.
// Delivery is best-effort and at-most-once per connection: a failure on
// one connection closes only that connection and never reaches the
// publisher or delays the others.
type Broadcaster struct {
	registry *Registry
	logger   *slog.Logger
}

// Ensure Broadcaster implements the EventBroadcaster port.
var _ ports.EventBroadcaster = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger.With("component", "broadcaster"),
	}
}

// Publish delivers the envelope to every live connection. For a single
// producer, frames reach each individual connection in publish order;
// no ordering is promised across connections.
func (b *Broadcaster) Publish(envelope domain.Envelope) {
	// Nobody listening: skip serialization entirely.
	if b.registry.Len() == 0 {
		return
	}

	frame, err := EncodeEnvelope(envelope)
	if err != nil {
		b.logger.Error("failed to encode envelope",
			"kind", envelope.Kind,
			"entity_id", envelope.EntityID,
			"error", err,
		)
		return
	}

	conns := b.registry.Snapshot()

	b.logger.Debug("broadcasting event",
		"kind", envelope.Kind,
		"entity_id", envelope.EntityID,
		"connection_count", len(conns),
	)

	for _, conn := range conns {
		// TrySend closes and unregisters the connection on failure.
		if !conn.TrySend(frame) {
			b.logger.Debug("dropped frame for dead connection",
				"connection_id", conn.ID(),
				"kind", envelope.Kind,
			)
		}
	}
}
