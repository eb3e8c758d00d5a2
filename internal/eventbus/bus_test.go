// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestPublishAndConsume(t *testing.T) {
	bus, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	var received atomic.Int64
	bus.AddHandler("counter", TopicSignals, func(msg *message.Message) error {
		received.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := bus.Run(ctx); err != nil {
			t.Errorf("Run() error: %v", err)
		}
	}()
	<-bus.Running()

	for i := 0; i < 10; i++ {
		if err := bus.Publish(TopicSignals, []byte("payload")); err != nil {
			t.Fatalf("Publish() error: %v", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for received.Load() < 10 {
		select {
		case <-deadline:
			t.Fatalf("received %d messages, want 10", received.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPublishRejectsWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 2
	bus, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	// No running router: messages stay queued and depth never drains.
	if err := bus.Publish(TopicSignals, []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(TopicSignals, []byte("b")); err != nil {
		t.Fatal(err)
	}

	err = bus.Publish(TopicSignals, []byte("c"))
	if !errors.Is(err, ErrBufferFull) {
		t.Errorf("Publish() error = %v, want ErrBufferFull", err)
	}
	if bus.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", bus.Depth())
	}
}

func TestFailingHandlerDeadLetters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetryMaxRetries = 1
	cfg.RetryInitialInterval = time.Millisecond
	bus, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()

	bus.AddHandler("always-fails", TopicSignals, func(msg *message.Message) error {
		return errors.New("handler failure")
	})

	var poisoned atomic.Int64
	bus.AddHandler("dlq", TopicDeadLetter, func(msg *message.Message) error {
		poisoned.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()
	<-bus.Running()

	if err := bus.Publish(TopicSignals, []byte("doomed")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for poisoned.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("message never reached dead-letter topic")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
