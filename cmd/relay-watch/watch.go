// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/models"
	"github.com/tomtom215/relay/internal/streamclient"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type watchOptions struct {
	url         string
	token       string
	topics      []string
	format      string
	logLevel    string
	maxAttempts int
	openTimeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &watchOptions{}

	rootCmd := &cobra.Command{
		Use:   "relay-watch",
		Short: "Follow a Relay event stream",
		Long: `relay-watch keeps a stream to a Relay server open and prints its events.

Log lines are de-duplicated per topic across reconnects. Heartbeats are not
printed. Send SIGCONT to reconnect right away, including after the client
gave up.

Examples:
  relay-watch --url http://localhost:8787
  relay-watch --topics job-42,job-43 --format json
  RELAY_TOKEN=... relay-watch --url https://relay.example.com`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("invalid --format %q: want text or json", opts.format)
			}
			logging.Init(logging.Config{Level: opts.logLevel, Format: "console", Output: cmd.ErrOrStderr()})
			return watch(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.url, "url", envOr("RELAY_URL", "http://localhost:8787"), "Relay server base URL (RELAY_URL)")
	flags.StringVar(&opts.token, "token", os.Getenv("RELAY_TOKEN"), "Bearer token (RELAY_TOKEN)")
	flags.StringSliceVar(&opts.topics, "topics", nil, "Topics to subscribe to, comma separated")
	flags.StringVar(&opts.format, "format", "text", "Output format: text or json")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Client log level")
	flags.IntVar(&opts.maxAttempts, "max-attempts", streamclient.DefaultMaxAttempts, "Reconnect attempts before giving up")
	flags.DurationVar(&opts.openTimeout, "open-timeout", streamclient.DefaultOpenTimeout, "Timeout for opening the stream")

	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relay-watch %s\n", version)
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// watch runs until ctx ends or the server ends the session.
func watch(ctx context.Context, opts *watchOptions, out io.Writer) error {
	p := &printer{out: out, json: opts.format == "json"}

	client, err := streamclient.New(streamclient.Config{
		BaseURL:     opts.url,
		Token:       opts.token,
		MaxAttempts: opts.maxAttempts,
		OpenTimeout: opts.openTimeout,
		Handler:     p.print,
		OnStateChange: func(s streamclient.State) {
			switch s {
			case streamclient.StateFailed:
				logging.Warn().Str("url", opts.url).Msg("Giving up on the stream; send SIGCONT to retry")
			case streamclient.StateConnected:
				logging.Info().Str("url", opts.url).Msg("Stream connected")
			}
		},
	})
	if err != nil {
		return err
	}
	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Close()

	// Before the first init this only records the topics. A session that
	// already ended is reported by the loop below.
	_, err = client.Subscribe(ctx, opts.topics...)
	if err != nil && !errors.Is(err, streamclient.ErrNoSession) && !errors.Is(err, streamclient.ErrTerminal) {
		return fmt.Errorf("subscribe: %w", err)
	}

	wake := make(chan os.Signal, 1)
	signal.Notify(wake, syscall.SIGCONT)
	defer signal.Stop(wake)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream ended: %s", client.State())
		case <-wake:
			if client.Wake() {
				logging.Info().Msg("Reconnecting on SIGCONT")
			}
		}
	}
}

// printer writes one line per event.
type printer struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
}

func (p *printer) print(msg *models.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		fmt.Fprintf(p.out, "%s\n", msg.Raw)
		return
	}
	fmt.Fprintln(p.out, formatText(msg))
}

func formatText(msg *models.RawMessage) string {
	switch msg.Type {
	case models.MessageTypeLog:
		var d models.LogData
		if err := json.Unmarshal(msg.Data, &d); err == nil {
			return fmt.Sprintf("[%s #%d] %s", d.TopicID, d.Log.Sequence, d.Log.Message)
		}
	case models.MessageTypeLogsCleared:
		var d models.LogsClearedData
		if err := json.Unmarshal(msg.Data, &d); err == nil {
			return fmt.Sprintf("[%s] logs cleared", d.TopicID)
		}
	case models.MessageTypeInit:
		return fmt.Sprintf("init session=%s", msg.SessionID)
	case models.MessageTypeSessionInvalidated:
		return fmt.Sprintf("session ended: %s", msg.Reason)
	}
	if len(msg.Data) > 0 {
		return fmt.Sprintf("%s %s", msg.Type, msg.Data)
	}
	return string(msg.Raw)
}
