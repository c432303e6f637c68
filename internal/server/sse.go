// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidya-ai/vidya/internal/workflow"
)

// StreamWorkflowEvents handles GET /api/v1/workflows/{id}/stream?cursor=N as
// Server-Sent Events. The log is replayed from the cursor, then tailed until
// a terminal event is delivered or the client disconnects. Each frame
// carries its cursor as the SSE id so clients can reconnect with
// Last-Event-ID semantics. Multiple clients can stream the same workflow
// independently; delivery never consumes the log.
func (h *Handlers) StreamWorkflowEvents(keepalive time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		cursor := parseCursor(r)

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
			return
		}

		// Fail before committing to the event stream if the workflow is
		// unknown.
		if _, err := h.service.GetStatus(id); err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		getLog().Debug().Str("workflow_id", id).Int("cursor", cursor).Msg("SSE stream opened")

		ticker := time.NewTicker(keepalive)
		defer ticker.Stop()

		for {
			waitCtx, cancel := context.WithCancel(r.Context())
			done := make(chan struct{})
			var events []workflow.Event
			var next int
			var err error
			go func() {
				events, next, err = h.service.WaitEvents(waitCtx, id, cursor)
				close(done)
			}()

			terminal := false
		wait:
			for {
				select {
				case <-done:
					break wait
				case <-ticker.C:
					fmt.Fprint(w, ": keepalive\n\n")
					flusher.Flush()
				case <-r.Context().Done():
					cancel()
					<-done
					getLog().Debug().Str("workflow_id", id).Msg("SSE client disconnected")
					return
				}
			}
			cancel()

			if err != nil {
				if errors.Is(err, workflow.ErrNotFound) {
					writeSSE(w, cursor, "error", map[string]string{"error": "workflow removed"})
					flusher.Flush()
				}
				return
			}

			// A live store wait never returns empty without an error;
			// only an exhausted archived log does.
			if len(events) == 0 {
				return
			}
			for i, ev := range events {
				writeSSE(w, cursor+i+1, string(ev.Type), ev)
				if ev.Terminal {
					terminal = true
				}
			}
			flusher.Flush()
			cursor = next

			if terminal {
				getLog().Debug().Str("workflow_id", id).Msg("SSE stream finished at terminal event")
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, id int, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to marshal SSE payload")
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
}
