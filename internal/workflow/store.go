// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidya-ai/vidya/internal/logger"
)

var (
	storeLog     zerolog.Logger
	storeLogOnce sync.Once
)

func getLog() *zerolog.Logger {
	storeLogOnce.Do(func() {
		storeLog = logger.GetWorkflowLogger()
	})
	return &storeLog
}

// Store holds live workflow state. All reads return snapshot copies, writes
// are serialized per store. The driver and the API are the only writers.
type Store interface {
	// Create registers a new workflow record. The id must be unused.
	Create(wf *Workflow) error
	// Get returns a snapshot of the workflow, or ErrNotFound.
	Get(id string) (*Workflow, error)
	// List returns snapshots of all live workflows, newest first.
	List() []*Workflow
	// MarkExecuting moves a created workflow into the executing state.
	MarkExecuting(id string) error
	// MarkTerminal moves a workflow into completed or error. Once a
	// workflow is terminal, further terminal transitions are no-ops.
	MarkTerminal(id string, status Status) error
	// SetProgress raises the workflow's progress percentage. Values below
	// the current progress are ignored so progress never moves backwards.
	SetProgress(id string, pct int) error
	// WriteResult records a step's output. A step key is written at most
	// once; a second write for the same key is an error.
	WriteResult(id, key string, out map[string]any) error
	// AppendEvent appends to the workflow's event log, assigning the event
	// id and a non-decreasing timestamp, and wakes blocked readers.
	AppendEvent(id string, ev Event) (Event, error)
	// EventsFrom returns all events with index >= cursor plus the next
	// cursor position. A cursor beyond the log returns an empty slice.
	EventsFrom(id string, cursor int) ([]Event, int, error)
	// WaitEvents blocks until events at or beyond cursor exist, then
	// returns them like EventsFrom. It unblocks with the context error if
	// ctx is done first.
	WaitEvents(ctx context.Context, id string, cursor int) ([]Event, int, error)
	// Remove drops the workflow record entirely. Blocked readers are
	// released with ErrNotFound.
	Remove(id string) error
}

type storeEntry struct {
	wf     *Workflow
	lastTs time.Time
	// notify is closed and replaced on every append so tailing readers
	// can wait without polling.
	notify chan struct{}
}

// MemoryStore is the in-memory Store used by the live engine. Durability
// for finished workflows is layered on top via the archive.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*storeEntry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*storeEntry)}
}

func (m *MemoryStore) Create(wf *Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[wf.ID]; exists {
		return fmt.Errorf("workflow %s already exists", wf.ID)
	}
	cp := wf.Clone()
	if cp.Results == nil {
		cp.Results = make(Results)
	}
	m.entries[wf.ID] = &storeEntry{wf: cp, notify: make(chan struct{})}
	getLog().Debug().Str("workflow_id", wf.ID).Str("type", wf.Request.Type).Msg("Workflow record created")
	return nil
}

func (m *MemoryStore) Get(id string) (*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.wf.Clone(), nil
}

func (m *MemoryStore) List() []*Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workflow, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.wf.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) MarkExecuting(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.wf.Status != StatusCreated {
		return fmt.Errorf("workflow %s is %s, cannot start executing", id, e.wf.Status)
	}
	now := time.Now().UTC()
	e.wf.Status = StatusExecuting
	e.wf.StartedAt = &now
	return nil
}

func (m *MemoryStore) MarkTerminal(id string, status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.wf.Status.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	e.wf.Status = status
	e.wf.CompletedAt = &now
	e.wf.Progress = 100
	getLog().Info().Str("workflow_id", id).Str("status", status.String()).Msg("Workflow reached terminal state")
	return nil
}

func (m *MemoryStore) SetProgress(id string, pct int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	if pct > 100 {
		pct = 100
	}
	if pct > e.wf.Progress {
		e.wf.Progress = pct
	}
	return nil
}

func (m *MemoryStore) WriteResult(id, key string, out map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	if _, exists := e.wf.Results[key]; exists {
		return fmt.Errorf("workflow %s: result %s already written", id, key)
	}
	e.wf.Results[key] = out
	return nil
}

func (m *MemoryStore) AppendEvent(id string, ev Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ts := time.Now().UTC()
	if !ts.After(e.lastTs) {
		ts = e.lastTs.Add(time.Microsecond)
	}
	e.lastTs = ts
	ev.Timestamp = ts
	e.wf.Events = append(e.wf.Events, ev)
	close(e.notify)
	e.notify = make(chan struct{})
	return ev, nil
}

func (m *MemoryStore) EventsFrom(id string, cursor int) ([]Event, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return sliceEvents(e.wf.Events, cursor)
}

func (m *MemoryStore) WaitEvents(ctx context.Context, id string, cursor int) ([]Event, int, error) {
	for {
		m.mu.RLock()
		e, ok := m.entries[id]
		if !ok {
			m.mu.RUnlock()
			return nil, 0, ErrNotFound
		}
		if cursor < len(e.wf.Events) {
			evs, next, err := sliceEvents(e.wf.Events, cursor)
			m.mu.RUnlock()
			return evs, next, err
		}
		notify := e.notify
		m.mu.RUnlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return nil, cursor, ctx.Err()
		}
	}
}

func (m *MemoryStore) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	close(e.notify)
	delete(m.entries, id)
	getLog().Info().Str("workflow_id", id).Msg("Workflow record removed")
	return nil
}

func sliceEvents(events []Event, cursor int) ([]Event, int, error) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(events) {
		return nil, len(events), nil
	}
	out := append([]Event(nil), events[cursor:]...)
	return out, len(events), nil
}
