// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package ingest bridges an external message bus onto the Dispatcher.
//
// Producers publish Envelope JSON on a Watermill topic. The default backend
// is an in-process GoChannel; building with -tags nats adds a NATS
// JetStream backend so several Relay instances can share one event feed.
//
// Delivery is best-effort, matching the stream itself: every message is
// acked after one dispatch attempt, including malformed ones, so a poison
// message is never redelivered in a loop.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/metrics"
)

// Bus is a Watermill publisher and subscriber pair.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closeFn    func() error
}

// Close releases the bus.
func (b *Bus) Close() error {
	if b.closeFn != nil {
		return b.closeFn()
	}
	return nil
}

// NewGoChannelBus creates an in-process bus.
func NewGoChannelBus(logger watermill.LoggerAdapter) *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Bus{Publisher: pubSub, Subscriber: pubSub, closeFn: pubSub.Close}
}

// Bridge consumes envelopes from one topic.
type Bridge struct {
	bus     *Bus
	topic   string
	handler *Handler
}

// NewBridge creates a bridge.
func NewBridge(bus *Bus, topic string, handler *Handler) *Bridge {
	return &Bridge{bus: bus, topic: topic, handler: handler}
}

// RunWithContext consumes messages until ctx is canceled.
func (b *Bridge) RunWithContext(ctx context.Context) error {
	messages, err := b.bus.Subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}
	logging.Info().Str("topic", b.topic).Msg("ingest bridge started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("ingest: subscription closed")
			}
			b.process(ctx, msg)
		}
	}
}

func (b *Bridge) process(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	delivered, err := b.handler.Handle(ctx, msg.Payload)
	switch {
	case errors.Is(err, ErrInvalidEnvelope):
		metrics.RecordIngest("invalid")
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping invalid ingest envelope")
	case err != nil:
		metrics.RecordIngest("failed")
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("ingest dispatch failed")
	default:
		metrics.RecordIngest("published")
		logging.Debug().Str("message_uuid", msg.UUID).Int("delivered", delivered).Msg("ingest envelope dispatched")
	}
}

// Publish encodes env and publishes it on the bridge topic.
func (b *Bridge) Publish(env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return b.bus.Publisher.Publish(b.topic, message.NewMessage(uuid.NewString(), data))
}

// Topic returns the consumed topic.
func (b *Bridge) Topic() string { return b.topic }
