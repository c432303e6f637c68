// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidya-ai/vidya/internal/capability"
	"github.com/vidya-ai/vidya/internal/config"
	"github.com/vidya-ai/vidya/internal/workflow"
)

// Server is the REST + SSE + WebSocket API server.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
}

// New creates and wires up the API server. It does NOT start listening —
// call Run() for that.
func New(
	cfg *config.ServerConfig,
	service *workflow.Service,
	capabilities *capability.Registry,
	keepalive time.Duration,
) *Server {
	registry := NewClientRegistry()
	broadcaster := NewEventBroadcaster(service.Events(), registry)
	handlers := NewHandlers(service, capabilities)

	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(maxBody))

	// REST routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Get("/capabilities", handlers.GetCapabilities)

		r.Get("/workflows", handlers.ListWorkflows)
		r.Post("/workflows", handlers.CreateWorkflow)

		r.Route("/workflows/{id}", func(r chi.Router) {
			r.Get("/", handlers.GetWorkflow)
			r.Get("/results", handlers.GetWorkflowResults)
			r.Get("/events", handlers.GetWorkflowEvents)
			r.Get("/stream", handlers.StreamWorkflowEvents(keepalive))
			r.Post("/cancel", handlers.CancelWorkflow)
			r.Delete("/", handlers.CleanupWorkflow)
		})
	})

	// WebSocket
	r.Get("/ws", HandleWebSocket(registry, cfg.AllowedOrigins))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// No WriteTimeout: SSE and WebSocket responses stay open
			// for the lifetime of the client.
			IdleTimeout: 60 * time.Second,
		},
		broadcaster: broadcaster,
	}
}

// Run starts the event broadcaster goroutine and the HTTP server.
// Blocks until the server is shut down or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		const maxRetries = 3
		for attempt := 1; attempt <= maxRetries; attempt++ {
			func() {
				defer func() {
					if r := recover(); r != nil {
						getLog().Error().Interface("panic", r).Int("attempt", attempt).Msg("Event broadcaster panic")
					}
				}()
				s.broadcaster.Run(ctx)
			}()

			// Normal return (context cancelled) — exit without retry.
			if ctx.Err() != nil {
				return
			}

			if attempt < maxRetries {
				getLog().Warn().Int("attempt", attempt).Msg("Restarting event broadcaster after panic")
				time.Sleep(1 * time.Second)
			}
		}
		getLog().Error().Msg("Event broadcaster exhausted retries - events will no longer be dispatched")
	}()

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
