// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredWorkflow(t *testing.T, store Store) string {
	t.Helper()
	wf := &Workflow{
		ID:        "wf-" + t.Name(),
		Request:   Request{Type: "comprehensive_lesson"},
		Status:    StatusCreated,
		Results:   make(Results),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Create(wf))
	return wf.ID
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	wf, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, wf.Status)

	// Snapshots are isolated from the stored record.
	wf.Results["step1"] = map[string]any{"x": 1}
	again, err := store.Get(id)
	require.NoError(t, err)
	assert.Empty(t, again.Results)

	err = store.Create(&Workflow{ID: id})
	assert.ErrorContains(t, err, "already exists")

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreStatusTransitions(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	require.NoError(t, store.MarkExecuting(id))
	wf, _ := store.Get(id)
	assert.Equal(t, StatusExecuting, wf.Status)
	assert.NotNil(t, wf.StartedAt)

	// Executing twice is invalid.
	assert.Error(t, store.MarkExecuting(id))

	require.NoError(t, store.MarkTerminal(id, StatusCompleted))
	wf, _ = store.Get(id)
	assert.Equal(t, StatusCompleted, wf.Status)
	assert.Equal(t, 100, wf.Progress)
	first := wf.CompletedAt

	// Terminal transitions are idempotent: a second terminal write keeps
	// the first status and timestamp.
	require.NoError(t, store.MarkTerminal(id, StatusError))
	wf, _ = store.Get(id)
	assert.Equal(t, StatusCompleted, wf.Status)
	assert.Equal(t, first, wf.CompletedAt)

	assert.Error(t, store.MarkTerminal(id, StatusExecuting))
}

func TestStoreProgressMonotonic(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	require.NoError(t, store.SetProgress(id, 40))
	require.NoError(t, store.SetProgress(id, 20))
	wf, _ := store.Get(id)
	assert.Equal(t, 40, wf.Progress)

	require.NoError(t, store.SetProgress(id, 250))
	wf, _ = store.Get(id)
	assert.Equal(t, 100, wf.Progress)
}

func TestStoreResultsWriteOnce(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	require.NoError(t, store.WriteResult(id, "step1", map[string]any{"out": "a"}))
	err := store.WriteResult(id, "step1", map[string]any{"out": "b"})
	assert.ErrorContains(t, err, "already written")

	wf, _ := store.Get(id)
	assert.Equal(t, "a", wf.Results["step1"]["out"])
}

func TestStoreEventCursors(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	for _, typ := range []EventType{EventWorkflowStarted, EventAgentStarted, EventAgentCompleted} {
		_, err := store.AppendEvent(id, Event{Type: typ})
		require.NoError(t, err)
	}

	// Two independent readers at different cursors see consistent views.
	all, next, err := store.EventsFrom(id, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 3, next)

	tail, next, err := store.EventsFrom(id, 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, EventAgentCompleted, tail[0].Type)
	assert.Equal(t, 3, next)

	// Cursor past the end yields nothing and keeps the position.
	empty, next, err := store.EventsFrom(id, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 3, next)

	// Replaying from zero again is unaffected by prior reads.
	replay, _, err := store.EventsFrom(id, 0)
	require.NoError(t, err)
	assert.Len(t, replay, 3)

	// Timestamps and ids are assigned on append, strictly ordered.
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i].Timestamp.After(all[i-1].Timestamp))
		assert.NotEmpty(t, all[i].ID)
	}
}

func TestStoreWaitEvents(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	done := make(chan []Event, 1)
	go func() {
		evs, _, err := store.WaitEvents(context.Background(), id, 0)
		if err == nil {
			done <- evs
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := store.AppendEvent(id, Event{Type: EventWorkflowStarted})
	require.NoError(t, err)

	select {
	case evs := <-done:
		require.Len(t, evs, 1)
		assert.Equal(t, EventWorkflowStarted, evs[0].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestStoreWaitEventsContextCancel(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, cursor, err := store.WaitEvents(ctx, id, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, cursor)
}

func TestStoreRemoveReleasesWaiters(t *testing.T) {
	store := NewMemoryStore()
	id := newStoredWorkflow(t, store)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := store.WaitEvents(context.Background(), id, 0)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, store.Remove(id))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrNotFound)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Remove")
	}

	_, err := store.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}
