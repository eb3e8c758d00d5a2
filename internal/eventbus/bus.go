// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package eventbus provides the in-process message queue between the signal
// collector and the feedback aggregator, built on Watermill's gochannel
// pub/sub with a bounded buffer and an explicit reject-new overflow policy.
//
// Handlers run under a Watermill router with panic recovery, exponential
// backoff retry, and a poison-queue (dead-letter) topic for messages that
// exhaust their retries.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/aitoolsdir/curator/internal/logging"
)

// Topics used on the bus.
const (
	// TopicSignals carries canonical feedback signals to the aggregator.
	TopicSignals = "signals.feedback"

	// TopicDeadLetter receives messages that exhausted their retries.
	TopicDeadLetter = "signals.poison"
)

// consumedMetadataKey marks a message whose buffer slot has been released,
// so handler retries do not decrement the depth counter again.
const consumedMetadataKey = "curator_consumed"

// ErrBufferFull is returned when publishing to a full bus. The overflow
// policy is reject-new: acknowledged signals are never silently dropped, the
// caller decides whether to retry or dead-letter.
var ErrBufferFull = errors.New("event bus buffer full")

// Config controls buffering and handler retry behavior.
type Config struct {
	// BufferSize bounds the number of in-flight messages.
	BufferSize int

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:           4096,
		RetryMaxRetries:      5,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     10 * time.Second,
		RetryMultiplier:      2.0,
		CloseTimeout:         30 * time.Second,
	}
}

// Bus is the bounded in-process event bus.
type Bus struct {
	pubsub   *gochannel.GoChannel
	router   *message.Router
	logger   watermill.LoggerAdapter
	capacity int64
	depth    atomic.Int64
}

// New creates a bus with a router pre-configured with recovery, retry, and
// poison-queue middleware. Call AddHandler for each consumer, then Run.
func New(cfg Config) (*Bus, error) {
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", cfg.BufferSize)
	}

	logger := watermill.NewSlogLogger(logging.NewSlogLogger())

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	// Middleware order: recover panics first, retry transient failures,
	// then route permanent failures to the dead-letter topic.
	router.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	poison, err := middleware.PoisonQueue(pubsub, TopicDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	router.AddMiddleware(poison)

	return &Bus{
		pubsub:   pubsub,
		router:   router,
		logger:   logger,
		capacity: int64(cfg.BufferSize),
	}, nil
}

// Publish places a payload on the topic. Returns ErrBufferFull when the
// bounded buffer has no room (reject-new).
func (b *Bus) Publish(topic string, payload []byte) error {
	if b.depth.Load() >= b.capacity {
		return ErrBufferFull
	}
	b.depth.Add(1)

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		b.depth.Add(-1)
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// AddHandler registers a no-output consumer for a topic. Handler errors
// trigger retry; retry exhaustion dead-letters the message.
func (b *Bus) AddHandler(name, topic string, handler func(msg *message.Message) error) {
	b.router.AddNoPublisherHandler(name, topic, b.pubsub, func(msg *message.Message) error {
		// Consumed from the bounded buffer; retries reuse the same slot.
		if msg.Metadata.Get(consumedMetadataKey) == "" {
			msg.Metadata.Set(consumedMetadataKey, "1")
			b.depth.Add(-1)
		}
		return handler(msg)
	})
}

// Depth returns the approximate number of in-flight messages.
func (b *Bus) Depth() int { return int(b.depth.Load()) }

// Run starts the router and blocks until ctx is canceled or the router
// stops. Handlers receive messages only while Run is active.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running returns a channel closed once all handlers are subscribed.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}

// Close shuts down the router and the underlying pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubsub.Close()
}
