// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultSendBuffer is the per-connection queue length.
	DefaultSendBuffer = 256

	sseWriteWait = 10 * time.Second
)

// queue is the non-blocking send buffer shared by both transports.
type queue struct {
	mu       sync.Mutex
	send     chan []byte
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

func (q *queue) init(size int) {
	if size <= 0 {
		size = DefaultSendBuffer
	}
	q.send = make(chan []byte, size)
	q.done = make(chan struct{})
}

// Send enqueues frame without blocking.
func (q *queue) Send(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrConnClosed
	}
	select {
	case q.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close stops accepting frames. Frames already queued are still written.
func (q *queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.send)
	}
	return nil
}

// Done is closed once the writer has exited.
func (q *queue) Done() <-chan struct{} { return q.done }

func (q *queue) finish() {
	_ = q.Close()
	q.doneOnce.Do(func() { close(q.done) })
}

// SSEConn streams frames as Server-Sent Events, one "data:" line per frame.
type SSEConn struct {
	queue
}

// NewSSEConn creates an SSE handle with the given send buffer.
func NewSSEConn(buffer int) *SSEConn {
	c := &SSEConn{}
	c.init(buffer)
	return c
}

// Transport implements Conn.
func (c *SSEConn) Transport() string { return "sse" }

// Serve writes queued frames to w until the handle is closed, the request
// context ends or a write fails. keepAlive > 0 emits SSE comment lines so
// idle proxies keep the connection open.
func (c *SSEConn) Serve(ctx context.Context, w http.ResponseWriter, keepAlive time.Duration) error {
	defer c.finish()

	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("realtime: response writer does not support flushing")
	}
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var tick <-chan time.Time
	if keepAlive > 0 {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	write := func(chunks ...[]byte) error {
		_ = rc.SetWriteDeadline(time.Now().Add(sseWriteWait))
		for _, b := range chunks {
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
		flusher.Flush()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-c.send:
			if !ok {
				return nil
			}
			if err := write([]byte("data: "), frame, []byte("\n\n")); err != nil {
				return err
			}
		case <-tick:
			if err := write([]byte(": keepalive\n\n")); err != nil {
				return err
			}
		}
	}
}
