// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package workflow implements the content-generation workflow engine:
// execution plans built from per-type templates, a dependency scheduler that
// partitions plans into concurrently executable waves, an in-memory state
// store with a cursor-readable event log, and the driver that executes one
// workflow wave by wave.
package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a workflow.
type Status int

const (
	StatusCreated Status = iota
	StatusExecuting
	StatusCompleted
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusExecuting:
		return "executing"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// MarshalJSON serializes the status as its string form so API responses and
// archived records stay readable.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses the string form produced by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses the string form of a status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "created":
		return StatusCreated, nil
	case "executing":
		return StatusExecuting, nil
	case "completed":
		return StatusCompleted, nil
	case "error":
		return StatusError, nil
	default:
		return StatusCreated, fmt.Errorf("unknown workflow status: %q", s)
	}
}

// EventType identifies the kind of a workflow event.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventAgentStarted      EventType = "agent_started"
	EventAgentProgress     EventType = "agent_progress"
	EventAgentCompleted    EventType = "agent_completed"
	EventAgentSkipped      EventType = "agent_skipped"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventError             EventType = "error"
)

// Event is one entry in a workflow's append-only event log.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	// Terminal marks the last event of a workflow's stream. Streaming
	// readers stop after delivering a terminal frame.
	Terminal bool `json:"terminal,omitempty"`
}

// Request is the caller-supplied workflow request, immutable once accepted.
type Request struct {
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
	OwnerID string         `json:"owner_id,omitempty"`
}

// Results maps step keys ("step1", "step2", ...) to the output map produced
// by the step. Entries exist only for finished steps and are never
// overwritten once written. Failed steps carry a failure marker, skipped
// steps a skip marker (see FailureResult / SkipResult).
type Results map[string]map[string]any

// Marker keys written into Results for non-successful steps.
const (
	resultKeyFailed     = "failed"
	resultKeySkipped    = "skipped"
	resultKeyError      = "error"
	resultKeySkippedDue = "skipped_due_to_step"
	resultKeyCancelled  = "cancelled"
)

// FailureResult builds the results entry recorded for a failed step.
func FailureResult(err error) map[string]any {
	return map[string]any{
		resultKeyFailed: true,
		resultKeyError:  err.Error(),
	}
}

// SkipResult builds the results entry recorded for a step skipped because a
// transitive dependency failed.
func SkipResult(failedStep int) map[string]any {
	return map[string]any{
		resultKeySkipped:    true,
		resultKeySkippedDue: failedStep,
	}
}

// CancelResult builds the results entry recorded for a step that never ran
// because the workflow was cancelled.
func CancelResult() map[string]any {
	return map[string]any{
		resultKeySkipped:   true,
		resultKeyCancelled: true,
	}
}

// IsCancelled reports whether a results entry marks a step abandoned by
// cancellation.
func IsCancelled(out map[string]any) bool {
	v, ok := out[resultKeyCancelled].(bool)
	return ok && v
}

// IsFailure reports whether a results entry is a failure marker.
func IsFailure(out map[string]any) bool {
	v, ok := out[resultKeyFailed].(bool)
	return ok && v
}

// IsSkipped reports whether a results entry is a skip marker.
func IsSkipped(out map[string]any) bool {
	v, ok := out[resultKeySkipped].(bool)
	return ok && v
}

// Workflow is the runtime record of one orchestrated request. It is owned by
// the state store; the driver and API readers only ever see snapshot copies.
type Workflow struct {
	ID          string     `json:"id"`
	Request     Request    `json:"request"`
	Plan        Plan       `json:"plan"`
	Status      Status     `json:"status"`
	Results     Results    `json:"results"`
	Events      []Event    `json:"events"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep enough copy for concurrent readers: maps and slices
// are copied one level down, step outputs are shared but treated as
// immutable once written.
func (w *Workflow) Clone() *Workflow {
	cp := *w
	cp.Results = make(Results, len(w.Results))
	for k, v := range w.Results {
		cp.Results[k] = v
	}
	cp.Events = append([]Event(nil), w.Events...)
	if w.StartedAt != nil {
		t := *w.StartedAt
		cp.StartedAt = &t
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// StatusSummary is the read model returned by status queries.
type StatusSummary struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	EventsCount int        `json:"events_count"`
	HasResults  bool       `json:"has_results"`
}

// Summary builds the status read model from a workflow snapshot.
func (w *Workflow) Summary() StatusSummary {
	return StatusSummary{
		ID:          w.ID,
		Type:        w.Request.Type,
		Status:      w.Status,
		Progress:    w.Progress,
		CreatedAt:   w.CreatedAt,
		StartedAt:   w.StartedAt,
		CompletedAt: w.CompletedAt,
		EventsCount: len(w.Events),
		HasResults:  len(w.Results) > 0,
	}
}

// StreamEvent pairs an event with its workflow for fan-out to push
// subscribers (WebSocket broadcast).
type StreamEvent struct {
	WorkflowID string `json:"workflow_id"`
	Event      Event  `json:"event"`
}
