// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package streamclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
)

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Path, e.Code)
}

// Subscribe tracks topics and asks the server to route them to this
// session. It returns the topics the server accepted, which may be fewer
// than requested. Tracked topics are re-sent after every new init.
func (c *Client) Subscribe(ctx context.Context, topics ...string) ([]string, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	for _, t := range topics {
		c.topics[t] = struct{}{}
	}
	sessionID, st := c.sessionID, c.state
	c.mu.Unlock()

	if st.Terminal() && st != StateFailed {
		return nil, ErrTerminal
	}
	if sessionID == "" {
		return nil, ErrNoSession
	}

	var resp models.SubscribeResponse
	if err := c.call(ctx, subscribePath, sessionID, topics, &resp); err != nil {
		return nil, err
	}
	return resp.Subscribed, nil
}

// Unsubscribe stops tracking topics and tells the server. With no session
// only the local tracking changes.
func (c *Client) Unsubscribe(ctx context.Context, topics ...string) ([]string, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	for _, t := range topics {
		delete(c.topics, t)
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	if sessionID == "" {
		return nil, nil
	}

	var resp models.UnsubscribeResponse
	if err := c.call(ctx, unsubscribePath, sessionID, topics, &resp); err != nil {
		return nil, err
	}
	return resp.Unsubscribed, nil
}

// Topics returns the tracked topics, sorted.
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trackedLocked()
}

func (c *Client) trackedLocked() []string {
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (c *Client) resubscribe(ctx context.Context, sessionID string, topics []string) {
	var resp models.SubscribeResponse
	if err := c.call(ctx, subscribePath, sessionID, topics, &resp); err != nil {
		if ctx.Err() == nil {
			logging.Warn().Err(err).Str("component", "streamclient").Strs("topics", topics).Msg("re-subscribe failed")
		}
		return
	}
	logging.Debug().Str("component", "streamclient").Strs("subscribed", resp.Subscribed).Msg("re-subscribed after init")
}

// call posts a subscribe-style request, retrying transport errors, 429 and
// 5xx. Other statuses fail immediately.
func (c *Client) call(ctx context.Context, path, sessionID string, topics []string, out interface{}) error {
	body, err := json.Marshal(models.SubscribeRequest{SessionID: sessionID, Topics: topics})
	if err != nil {
		return err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return &StatusError{Path: path, Code: resp.StatusCode}
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(&StatusError{Path: path, Code: resp.StatusCode})
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("%s: decode response: %w", path, err))
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(c.requestBackOff(), uint64(c.cfg.SubscribeRetries)), ctx))
}

func (c *Client) requestBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}
