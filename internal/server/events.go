// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the REST + SSE + WebSocket API. Handlers call the
// workflow service directly for mutations and broadcast engine events to
// connected WebSocket clients.
package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vidya-ai/vidya/internal/logger"
	"github.com/vidya-ai/vidya/internal/workflow"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// EventBroadcaster reads every event from the workflow service's push stream
// and fans them out to all connected WebSocket clients.
type EventBroadcaster struct {
	eventChan <-chan workflow.StreamEvent
	clients   *ClientRegistry
}

// NewEventBroadcaster creates a broadcaster over the service's event stream.
func NewEventBroadcaster(eventChan <-chan workflow.StreamEvent, clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{
		eventChan: eventChan,
		clients:   clients,
	}
}

// Run reads events until the channel is closed or context is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.eventChan:
			if !ok {
				getLog().Info().Msg("Event broadcaster stopped (channel closed)")
				return
			}
			b.dispatch(event)
		case <-ctx.Done():
			getLog().Info().Msg("Event broadcaster stopped (context cancelled)")
			return
		}
	}
}

func (b *EventBroadcaster) dispatch(event workflow.StreamEvent) {
	if b.clients != nil {
		b.clients.Broadcast(event)
	}
}
