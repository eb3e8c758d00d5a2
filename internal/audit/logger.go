// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aitoolsdir/curator/internal/logging"
)

// Logger records audit events asynchronously so callers on hot paths never
// block on the store.
type Logger struct {
	store    Store
	eventCh  chan *Event
	stopCh   chan struct{}
	doneCh   chan struct{}
	mirrored bool // also emit each event to the application log
}

// NewLogger creates an audit logger writing to store. bufferSize bounds the
// async queue; when full, Record falls back to a synchronous write rather
// than dropping the event.
func NewLogger(store Store, bufferSize int, mirrorToLog bool) *Logger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	l := &Logger{
		store:    store,
		eventCh:  make(chan *Event, bufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		mirrored: mirrorToLog,
	}
	go l.writer()
	return l
}

// Record enqueues an audit event, filling in ID and timestamp when unset.
// Audit writes must not be lost: if the queue is full the write happens
// synchronously.
func (l *Logger) Record(ctx context.Context, event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if event.Outcome == "" {
		event.Outcome = OutcomeSuccess
	}

	select {
	case l.eventCh <- event:
	default:
		if err := l.store.Save(ctx, event); err != nil {
			logging.Error().Err(err).Str("type", string(event.Type)).Msg("failed to save audit event")
		}
	}
}

// Entry is a convenience for the common case.
func (l *Logger) Entry(ctx context.Context, typ EventType, subject, message string, details map[string]string) {
	l.Record(ctx, &Event{
		Type:    typ,
		Subject: subject,
		Message: message,
		Details: details,
	})
}

// Close flushes queued events and stops the writer.
func (l *Logger) Close() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Logger) writer() {
	defer close(l.doneCh)
	for {
		select {
		case <-l.stopCh:
			// Drain what is queued, then exit.
			for {
				select {
				case event := <-l.eventCh:
					l.write(event)
				default:
					return
				}
			}
		case event := <-l.eventCh:
			l.write(event)
		}
	}
}

func (l *Logger) write(event *Event) {
	if l.mirrored {
		mirror := logging.With("audit")
		mirror.Info().
			Str("type", string(event.Type)).
			Str("subject", event.Subject).
			Str("outcome", string(event.Outcome)).
			Msg(event.Message)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("type", string(event.Type)).Msg("failed to save audit event")
	}
}
