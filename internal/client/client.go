package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/extectick/appeals-backend/internal/core/domain"
)

// ViewFetcher performs the bulk fetch that seeds and resyncs the views.
type ViewFetcher interface {
	FetchViews(ctx context.Context) (*ViewData, error)
}

// StreamOpener opens the long-lived event stream.
type StreamOpener interface {
	OpenStream(ctx context.Context) (io.ReadCloser, error)
}

// State is the client's connection state.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	// StateFailed is reached when reconnect attempts exhaust the retry
	// budget. The client stays here until Retry is called.
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds client tuning knobs.
type Config struct {
	// BackoffInterval is the constant delay between reconnect attempts.
	BackoffInterval time.Duration
	// MaxRetries is the number of consecutive failed attempts tolerated
	// before the client gives up and surfaces StateFailed.
	MaxRetries int
	// Clock is swapped for a fake in tests.
	Clock clockwork.Clock
}

// DefaultConfig returns the default reconnect policy.
func DefaultConfig() Config {
	return Config{
		BackoffInterval: 3 * time.Second,
		MaxRetries:      5,
		Clock:           clockwork.NewRealClock(),
	}
}

// Client follows the event stream and keeps a Reconciler in sync with
// the server. On stream errors it reconnects with constant backoff and
// performs a full resync; after MaxRetries consecutive failures it
// parks in StateFailed until Retry is called.
type Client struct {
	fetcher    ViewFetcher
	streams    StreamOpener
	reconciler *Reconciler
	logger     *slog.Logger
	clock      clockwork.Clock

	backoffInterval time.Duration
	maxRetries      int

	state    atomic.Int32
	retryCh  chan struct{}
	onChange func([]Change)
}

// NewClient creates a client over the given fetcher and stream opener.
func NewClient(fetcher ViewFetcher, streams StreamOpener, reconciler *Reconciler, cfg Config, logger *slog.Logger) *Client {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Client{
		fetcher:         fetcher,
		streams:         streams,
		reconciler:      reconciler,
		logger:          logger.With("component", "stream_client"),
		clock:           cfg.Clock,
		backoffInterval: cfg.BackoffInterval,
		maxRetries:      cfg.MaxRetries,
		retryCh:         make(chan struct{}, 1),
	}
}

// OnChange registers a callback invoked with the changes produced by
// each applied envelope. Must be set before Run.
func (c *Client) OnChange(fn func([]Change)) {
	c.onChange = fn
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Retry requests a new round of connection attempts after the client
// has entered StateFailed. Safe to call from any goroutine; calls in
// other states are ignored.
func (c *Client) Retry() {
	if c.State() != StateFailed {
		return
	}
	select {
	case c.retryCh <- struct{}{}:
	default:
	}
}

// Run drives the connect/consume/reconnect loop until the context is
// cancelled. It blocks for the lifetime of the client.
func (c *Client) Run(ctx context.Context) error {
	wait := backoff.NewConstantBackOff(c.backoffInterval)
	failures := 0

	for {
		if ctx.Err() != nil {
			c.state.Store(int32(StateStopped))
			return ctx.Err()
		}

		established, err := c.session(ctx)
		if ctx.Err() != nil {
			c.state.Store(int32(StateStopped))
			return ctx.Err()
		}
		if established {
			// The stream ran; transient drop, start a fresh budget.
			failures = 0
		}
		failures++
		c.logger.Warn("stream session ended",
			"error", err,
			"consecutive_failures", failures,
		)

		if failures > c.maxRetries {
			c.state.Store(int32(StateFailed))
			c.logger.Error("reconnect attempts exhausted, waiting for manual retry")
			select {
			case <-c.retryCh:
				failures = 0
				continue
			case <-ctx.Done():
				c.state.Store(int32(StateStopped))
				return ctx.Err()
			}
		}

		c.state.Store(int32(StateReconnecting))
		select {
		case <-c.clock.After(wait.NextBackOff()):
		case <-ctx.Done():
			c.state.Store(int32(StateStopped))
			return ctx.Err()
		}
	}
}

// session performs one full connect cycle: resync the views, open the
// stream and consume it until it breaks. The returned flag reports
// whether the stream was successfully established.
func (c *Client) session(ctx context.Context) (bool, error) {
	c.state.Store(int32(StateConnecting))

	data, err := c.fetcher.FetchViews(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch views: %w", err)
	}
	c.reconciler.Reset(*data)

	stream, err := c.streams.OpenStream(ctx)
	if err != nil {
		return false, fmt.Errorf("open stream: %w", err)
	}

	c.state.Store(int32(StateConnected))
	c.logger.Info("stream established",
		"my_appeals", len(data.MyAppeals),
		"department_queue", len(data.DepartmentQueue),
		"my_tasks", len(data.MyTasks),
	)

	return true, c.consume(ctx, stream)
}

// consume reads frames off the stream until it errors or the context is
// cancelled. Sentinels are acknowledged only for connection health;
// malformed frames are logged and skipped, they never kill the stream.
func (c *Client) consume(ctx context.Context, stream io.ReadCloser) error {
	defer stream.Close()

	// Unblock the reader when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			// Blank frame separators and any unknown lines.
			continue
		}

		switch payload {
		case "connected", "keepalive":
			continue
		}

		if !strings.HasPrefix(payload, "{") {
			c.logger.Warn("discarding malformed frame", "payload", payload)
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			c.logger.Warn("discarding malformed frame", "error", err)
			continue
		}

		changes := c.reconciler.Apply(env)
		if c.onChange != nil && len(changes) > 0 {
			c.onChange(changes)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return io.EOF
}

// --- HTTP API client ---

// APIClient talks to the server's REST and stream endpoints. It
// implements ViewFetcher and StreamOpener over a base URL once Login
// has established a session.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
	viewer     Viewer
}

var (
	_ ViewFetcher  = (*APIClient)(nil)
	_ StreamOpener = (*APIClient)(nil)
)

// NewAPIClient creates an API client for the given base URL, e.g.
// "http://localhost:8080".
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Viewer returns the identity established by Login.
func (c *APIClient) Viewer() Viewer {
	return c.viewer
}

type sessionEnvelope struct {
	Data struct {
		Token string `json:"token"`
		User  struct {
			ID           string `json:"id"`
			DepartmentID string `json:"departmentId"`
			FullName     string `json:"fullName"`
			Role         string `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

// Login exchanges Telegram init data for a session token and records
// the viewer identity for subsequent fetches.
func (c *APIClient) Login(ctx context.Context, initData string) (Viewer, error) {
	body, err := json.Marshal(map[string]string{"initData": initData})
	if err != nil {
		return Viewer{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return Viewer{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Viewer{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Viewer{}, fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var session sessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Viewer{}, fmt.Errorf("decode login response: %w", err)
	}

	userID, err := uuid.Parse(session.Data.User.ID)
	if err != nil {
		return Viewer{}, fmt.Errorf("parse user id: %w", err)
	}
	departmentID, err := uuid.Parse(session.Data.User.DepartmentID)
	if err != nil {
		return Viewer{}, fmt.Errorf("parse department id: %w", err)
	}

	c.token = session.Data.Token
	c.viewer = Viewer{ID: userID, DepartmentID: departmentID}
	return c.viewer, nil
}

// FetchViews bulk-fetches the three role-scoped appeal lists.
func (c *APIClient) FetchViews(ctx context.Context) (*ViewData, error) {
	myAppeals, err := c.fetchAppeals(ctx, url.Values{"creatorId": {c.viewer.ID.String()}})
	if err != nil {
		return nil, err
	}
	departmentQueue, err := c.fetchAppeals(ctx, url.Values{"departmentId": {c.viewer.DepartmentID.String()}})
	if err != nil {
		return nil, err
	}
	// Only open work belongs in the task list; completed and rejected
	// appeals are history for the creator and department views.
	myTasks, err := c.fetchAppeals(ctx, url.Values{"executorId": {c.viewer.ID.String()}, "open": {"true"}})
	if err != nil {
		return nil, err
	}

	return &ViewData{
		MyAppeals:       myAppeals,
		DepartmentQueue: departmentQueue,
		MyTasks:         myTasks,
	}, nil
}

func (c *APIClient) fetchAppeals(ctx context.Context, query url.Values) ([]domain.AppealSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/appeals?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch appeals: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch appeals: status %d", resp.StatusCode)
	}

	// The list payload uses the same JSON keys as envelope snapshots,
	// so both sides of the reconciler speak one shape.
	var list struct {
		Data []domain.AppealSnapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode appeals: %w", err)
	}
	return list.Data, nil
}

// OpenStream opens the SSE event stream. The token travels as a query
// parameter because EventSource-style clients cannot set headers.
func (c *APIClient) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	streamURL := c.baseURL + "/api/v1/events?token=" + url.QueryEscape(c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
