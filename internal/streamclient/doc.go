// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package streamclient is the client side of the Relay event stream.

A Client owns one SSE connection to /api/v1/stream and keeps it open:

	connecting -> connected -> error -> connecting ... -> failed
	connected -> server_shutdown
	connected -> disconnected (session revoked)
	any -> closed (Close)

Failed, server_shutdown and disconnected are terminal: nothing reconnects on
its own. Wake retries a failed client with a fresh attempt budget and cuts
short a scheduled wait in error; the other two terminal states stay put
because the server ended the session on purpose.

Reconnect delays follow min(BaseDelay*2^n, MaxDelay) with no jitter. The
attempt counter resets only when a connection opens. Opening includes the
dial and the response headers and is bounded by OpenTimeout.

Frames are filtered before reaching the handler:

  - heartbeat and connection are dropped
  - init records the session id, sets HasInitialData and re-subscribes
    every tracked topic
  - sessionInvalidated moves to server_shutdown or disconnected, then is
    forwarded
  - log frames whose sequence was already seen for that topic are dropped;
    logsCleared forgets the topic's sequences
  - frames that do not parse are logged and dropped without closing the
    stream

One data line may be at most MaxFrameSize bytes (8 MiB by default). The
server does not split frames, and the init snapshot grows with the number of
analyses a session can see, so deployments with very large directories must
raise the limit. A longer line drops the connection, which then reconnects
with backoff like any lost stream.

Sequence numbers are scoped to the server epoch carried by init. When a
reconnect lands on a different epoch (a restarted server without a durable
sequence store) every topic's dedup history is dropped, so numbering that
starts again at 1 is delivered rather than discarded.

Usage:

	c, err := streamclient.New(streamclient.Config{
	    BaseURL: "https://relay.example.com",
	    Token:   token,
	    Handler: func(msg *models.RawMessage) { fmt.Println(string(msg.Raw)) },
	})
	if err != nil {
	    return err
	}
	if err := c.Start(ctx); err != nil {
	    return err
	}
	defer c.Close()

	// Tracked even before init; re-sent on every new session.
	c.Subscribe(ctx, "job-42")
*/
package streamclient
