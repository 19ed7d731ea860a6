// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package streamclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/sequence"
)

// State is the connection state of a Client.
type State string

const (
	StateConnecting     State = "connecting"
	StateConnected      State = "connected"
	StateError          State = "error"
	StateFailed         State = "failed"
	StateServerShutdown State = "server_shutdown"
	StateDisconnected   State = "disconnected"
	StateClosed         State = "closed"
)

// Terminal reports whether the client stays in s without outside action.
func (s State) Terminal() bool {
	switch s {
	case StateFailed, StateServerShutdown, StateDisconnected, StateClosed:
		return true
	}
	return false
}

const (
	DefaultOpenTimeout      = 5 * time.Second
	DefaultBaseDelay        = time.Second
	DefaultMaxDelay         = 30 * time.Second
	DefaultMaxAttempts      = 10
	DefaultSubscribeRetries = 3
	DefaultMaxFrameSize     = 8 << 20

	streamPath      = "/api/v1/stream"
	subscribePath   = "/api/v1/stream/subscribe"
	unsubscribePath = "/api/v1/stream/unsubscribe"
)

var (
	// ErrTerminal is returned for calls that need a live stream after the
	// client reached a terminal state.
	ErrTerminal = errors.New("streamclient: stream ended and will not reconnect")
	// ErrNoSession means no init has arrived yet. Topics passed to Subscribe
	// are still tracked and sent once it does.
	ErrNoSession = errors.New("streamclient: no session yet")
	ErrClosed    = errors.New("streamclient: client closed")
	// ErrOpenTimeout is the error of an open that exceeded OpenTimeout.
	ErrOpenTimeout = errors.New("streamclient: open timed out")

	errStreamEnded = errors.New("streamclient: stream ended")
)

// Handler receives every frame that survives filtering. It runs on the
// client's reader goroutine and must not block for long.
type Handler func(msg *models.RawMessage)

// Config configures a Client. Zero durations and counts take the defaults.
type Config struct {
	// BaseURL is the server root, e.g. https://relay.example.com.
	BaseURL string
	// Token is sent as a bearer token on every request.
	Token string
	// HTTPClient must not set a Timeout; the stream is long-lived.
	HTTPClient *http.Client

	OpenTimeout time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int

	// SubscribeRetries bounds retries of one subscribe or unsubscribe call.
	SubscribeRetries int
	// DedupWindow caps remembered sequences per topic. Zero keeps all.
	DedupWindow int
	// MaxFrameSize bounds one SSE data line in bytes. The init snapshot is
	// the largest frame a server sends; an open whose frames exceed this
	// fails and is retried like any other failed open.
	MaxFrameSize int

	Handler       Handler
	OnStateChange func(State)
}

// Client keeps one event stream open and reconnects with backoff.
type Client struct {
	cfg       Config
	base      *url.URL
	http      *http.Client
	dedup     *sequence.Dedup
	reconnect backoff.BackOff // run goroutine only
	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup

	mu         sync.Mutex
	state      State
	live       bool
	sessionID  string
	epoch      string
	hasInitial bool
	attempts   int
	topics     map[string]struct{}
	closeConn  context.CancelFunc
	cancel     context.CancelFunc
	closed     bool
}

// New validates cfg and creates a client. Call Start to connect.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("streamclient: invalid base URL %q", cfg.BaseURL)
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.SubscribeRetries <= 0 {
		cfg.SubscribeRetries = DefaultSubscribeRetries
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		cfg:       cfg,
		base:      base,
		http:      httpClient,
		dedup:     sequence.NewDedup(cfg.DedupWindow),
		reconnect: newReconnectBackOff(cfg.BaseDelay, cfg.MaxDelay, cfg.MaxAttempts),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		state:     StateConnecting,
		topics:    make(map[string]struct{}),
	}, nil
}

// newReconnectBackOff yields min(base*2^n, max) for n = 0..attempts-1 and
// then backoff.Stop.
func newReconnectBackOff(base, max time.Duration, attempts int) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(attempts))
}

// Start connects in the background. The client runs until ctx ends, Close
// is called, or a terminal state other than failed is reached.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cancel != nil {
		return errors.New("streamclient: already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
	return nil
}

// Done is closed when the connection loop exits.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close tears the client down synchronously: the transport is closed, pending
// retries are abandoned, and no goroutine is left running when it returns.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, closeConn := c.cancel, c.closeConn
	c.mu.Unlock()

	if closeConn != nil {
		closeConn()
	}
	if cancel != nil {
		cancel()
		<-c.done
	}
	c.wg.Wait()
	c.setState(StateClosed)
	return nil
}

// Wake reconnects now instead of waiting for the next scheduled attempt, and
// retries a failed client with a fresh attempt budget. It does nothing while
// a live connection or an attempt exists, or after server_shutdown,
// disconnected or Close. It reports whether a reconnect was requested.
func (c *Client) Wake() bool {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	if st != StateError && st != StateFailed {
		return false
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return true
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id from the latest init, or "" while disconnected.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// HasInitialData reports whether any init has been received. It stays true
// across reconnects.
func (c *Client) HasInitialData() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasInitial
}

// Attempts returns the number of reconnects scheduled since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s || (c.closed && s != StateClosed) {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = s
	c.mu.Unlock()

	logging.Debug().Str("component", "streamclient").Str("from", string(prev)).Str("to", string(s)).Msg("state changed")
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

// run is the only goroutine that opens transports, so attempts never overlap.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		c.setState(StateConnecting)
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if st := c.State(); st == StateServerShutdown || st == StateDisconnected {
			return
		}

		c.setState(StateError)
		delay := c.reconnect.NextBackOff()
		if delay == backoff.Stop {
			logging.Warn().Err(err).Str("component", "streamclient").Int("attempts", c.Attempts()).Msg("giving up on the stream")
			c.setState(StateFailed)
			if !c.waitWake(ctx) {
				return
			}
			c.reconnect.Reset()
			c.mu.Lock()
			c.attempts = 0
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()
		logging.Info().Err(err).Str("component", "streamclient").Int("attempt", attempt).Dur("delay", delay).Msg("stream lost, reconnecting")

		if !c.sleep(ctx, delay) {
			return
		}
	}
}

// sleep waits for d or a Wake. It returns false when ctx ends.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-c.wake:
		return true
	}
}

func (c *Client) waitWake(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.wake:
		return true
	}
}

// connect opens one transport and reads it until it closes. A nil error
// means a frame ended the session.
func (c *Client) connect(ctx context.Context) error {
	connCtx, closeConn := context.WithCancel(ctx)
	defer closeConn()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, c.endpoint(streamPath), http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	timer := time.AfterFunc(c.cfg.OpenTimeout, closeConn)
	resp, err := c.http.Do(req)
	if !timer.Stop() {
		if resp != nil {
			resp.Body.Close()
		}
		return ErrOpenTimeout
	}
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: %w", &StatusError{Path: streamPath, Code: resp.StatusCode})
	}

	c.reconnect.Reset()
	c.mu.Lock()
	c.attempts = 0
	c.live = true
	c.closeConn = closeConn
	c.mu.Unlock()
	select {
	case <-c.wake:
	default:
	}
	c.setState(StateConnected)

	defer func() {
		c.mu.Lock()
		c.live = false
		c.closeConn = nil
		c.sessionID = ""
		c.mu.Unlock()
	}()

	reader := newSSEReader(resp.Body, c.cfg.MaxFrameSize)
	for {
		data, ok := reader.Next()
		if !ok {
			err := reader.Err()
			if errors.Is(err, bufio.ErrTooLong) {
				logging.Warn().Str("component", "streamclient").Int("max_frame_size", c.cfg.MaxFrameSize).Msg("frame exceeds MaxFrameSize, dropping connection")
			}
			if err != nil {
				return fmt.Errorf("read stream: %w", err)
			}
			return errStreamEnded
		}
		if c.handle(ctx, []byte(data)) {
			return nil
		}
	}
}

// handle applies one frame and reports whether it ended the session.
func (c *Client) handle(ctx context.Context, frame []byte) bool {
	msg, err := models.DecodeRaw(frame)
	if err != nil || msg.Type == "" {
		logging.Warn().Err(err).Str("component", "streamclient").Int("bytes", len(frame)).Msg("dropping unparseable frame")
		return false
	}

	switch msg.Type {
	case models.MessageTypeHeartbeat, models.MessageTypeConnection:
		return false

	case models.MessageTypeInit:
		c.mu.Lock()
		// A new epoch means the server numbers topics afresh.
		if msg.Epoch != "" && c.epoch != "" && msg.Epoch != c.epoch {
			c.dedup.Clear()
			logging.Info().Str("component", "streamclient").Str("epoch", msg.Epoch).Msg("server epoch changed, sequence history dropped")
		}
		if msg.Epoch != "" {
			c.epoch = msg.Epoch
		}
		c.sessionID = msg.SessionID
		c.hasInitial = true
		topics := c.trackedLocked()
		c.mu.Unlock()
		if len(topics) > 0 && msg.SessionID != "" {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.resubscribe(ctx, msg.SessionID, topics)
			}()
		}

	case models.MessageTypeSessionInvalidated:
		next := StateDisconnected
		if msg.Reason == models.InvalidationServerShutdown {
			next = StateServerShutdown
		}
		logging.Info().Str("component", "streamclient").Str("reason", msg.Reason).Msg("session invalidated by server")
		c.setState(next)
		c.emit(msg)
		return true

	case models.MessageTypeLog:
		var data models.LogData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.TopicID == "" {
			logging.Warn().Err(err).Str("component", "streamclient").Msg("dropping malformed log frame")
			return false
		}
		if !c.dedup.Accept(data.TopicID, data.Log.Sequence) {
			logging.Debug().Str("component", "streamclient").Str("topic", data.TopicID).Uint64("sequence", data.Log.Sequence).Msg("duplicate log dropped")
			return false
		}

	case models.MessageTypeLogsCleared:
		var data models.LogsClearedData
		if err := json.Unmarshal(msg.Data, &data); err == nil && data.TopicID != "" {
			c.dedup.Reset(data.TopicID)
		}
	}

	c.emit(msg)
	return false
}

func (c *Client) emit(msg *models.RawMessage) {
	if c.cfg.Handler != nil {
		c.cfg.Handler(msg)
	}
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}
