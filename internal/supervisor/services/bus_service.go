// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package services

import (
	"context"
)

// MessageBus matches the event bus's run surface.
type MessageBus interface {
	Run(ctx context.Context) error
}

// BusService runs the event-bus router under supervision. Handlers only
// receive messages while this service is up.
type BusService struct {
	bus MessageBus
}

// NewBusService wraps the event bus.
func NewBusService(bus MessageBus) *BusService {
	return &BusService{bus: bus}
}

// Serve implements suture.Service.
func (s *BusService) Serve(ctx context.Context) error {
	err := s.bus.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *BusService) String() string { return "event-bus" }
