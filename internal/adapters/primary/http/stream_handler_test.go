package http

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/extectick/appeals-backend/internal/adapters/primary/http/middleware"
	"github.com/extectick/appeals-backend/internal/adapters/primary/stream"
	"github.com/extectick/appeals-backend/internal/auth"
	"github.com/extectick/appeals-backend/internal/core/domain"
)

func newStreamTestServer(t *testing.T) (*httptest.Server, *stream.Registry, *stream.Broadcaster, *auth.TokenManager) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokenManager := auth.NewTokenManager("test-secret", time.Hour)

	registry := stream.NewRegistry(logger)
	broadcaster := stream.NewBroadcaster(registry, logger)
	handler := NewStreamHandler(registry, 25*time.Second, 64, NewErrorHandler(logger), logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mw.JWTMiddleware(tokenManager))
		r.Get("/events", handler.HandleEvents)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(registry.CloseAll)

	return srv, registry, broadcaster, tokenManager
}

// readFrame reads one non-empty SSE payload off the stream.
func readFrame(t *testing.T, reader *bufio.Reader) string {
	t.Helper()

	deadline := time.After(5 * time.Second)
	result := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if line == "\n" {
				continue
			}
			result <- line
			return
		}
	}()

	select {
	case line := <-result:
		require.True(t, len(line) > len("data: \n"), "unexpected frame %q", line)
		return line[len("data: ") : len(line)-1]
	case <-deadline:
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func TestStreamHandler_RequiresAuthentication(t *testing.T) {
	srv, _, _, _ := newStreamTestServer(t)

	resp, err := stdhttp.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
}

func TestStreamHandler_AcceptsTokenQueryParam(t *testing.T) {
	srv, registry, broadcaster, tokenManager := newStreamTestServer(t)

	token, err := tokenManager.GenerateToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	resp, err := stdhttp.Get(srv.URL + "/events?token=" + token)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "connected", readFrame(t, reader))

	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	appeal, err := domain.NewAppeal(domain.AppealParams{
		Subject:      "VPN access",
		DepartmentID: uuid.New(),
		CreatorID:    uuid.New(),
	})
	require.NoError(t, err)
	broadcaster.Publish(domain.NewEventFactory(clockwork.NewRealClock()).AppealEnvelope(domain.EventEntityCreated, appeal))

	var env domain.Envelope
	require.NoError(t, json.Unmarshal([]byte(readFrame(t, reader)), &env))
	assert.Equal(t, domain.EventEntityCreated, env.Kind)
	assert.Equal(t, appeal.ID, env.EntityID)
}

func TestStreamHandler_ClientDisconnectUnregisters(t *testing.T) {
	srv, registry, _, tokenManager := newStreamTestServer(t)

	token, err := tokenManager.GenerateToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	resp, err := stdhttp.Get(srv.URL + "/events?token=" + token)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp.Body.Close()

	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHandler_RejectsInvalidToken(t *testing.T) {
	srv, _, _, _ := newStreamTestServer(t)

	resp, err := stdhttp.Get(srv.URL + "/events?token=not-a-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
}
