package http

import (
	"log/slog"
	"net/http"
	"time"

	mw "github.com/extectick/appeals-backend/internal/adapters/primary/http/middleware"
	"github.com/extectick/appeals-backend/internal/adapters/primary/stream"
	apperrors "github.com/extectick/appeals-backend/internal/core/errors"
)

// StreamHandler exposes the event push stream over SSE.
type StreamHandler struct {
	registry          *stream.Registry
	keepaliveInterval time.Duration
	sendBufferSize    int
	errorHandler      *ErrorHandler
	logger            *slog.Logger
}

// NewStreamHandler creates a new stream handler over the shared registry.
func NewStreamHandler(
	registry *stream.Registry,
	keepaliveInterval time.Duration,
	sendBufferSize int,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *StreamHandler {
	return &StreamHandler{
		registry:          registry,
		keepaliveInterval: keepaliveInterval,
		sendBufferSize:    sendBufferSize,
		errorHandler:      errorHandler,
		logger:            logger.With("handler", "stream"),
	}
}

// HandleEvents handles GET /events. The JWT middleware has already
// authenticated the request (header or `token` query parameter). The
// handler blocks for the lifetime of the stream.
func (h *StreamHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	if _, ok := w.(http.Flusher); !ok {
		h.errorHandler.Handle(w, r, apperrors.NewInternalError(apperrors.ErrInternal))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	conn := stream.NewConnection(stream.ConnectionConfig{
		KeepaliveInterval: h.keepaliveInterval,
		SendBufferSize:    h.sendBufferSize,
		OnClosed:          func(c *stream.Connection) { h.registry.Unregister(c.ID()) },
		Logger:            h.logger,
	})
	h.registry.Register(conn)

	h.logger.Info("event stream opened",
		"connection_id", conn.ID(),
		"user_id", claims.UserID,
	)

	if err := conn.Serve(r.Context(), w); err != nil {
		// Client disconnects end up here; nothing to report to the peer.
		h.logger.Debug("event stream closed",
			"connection_id", conn.ID(),
			"user_id", claims.UserID,
			"reason", err,
		)
	}
}
