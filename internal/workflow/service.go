// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidya-ai/vidya/internal/config"
)

// Archive persists terminal workflows so their results and event history
// survive process restarts and store cleanup.
type Archive interface {
	Save(wf *Workflow) error
	Get(id string) (*Workflow, error)
}

// Service is the engine facade the API layer talks to. It owns workflow
// creation, driver lifecycles, cancellation and the live/archive read path.
type Service struct {
	store     Store
	templates *Templates
	invoker   Invoker
	archive   Archive
	cfg       config.WorkflowConfig

	broadcast chan StreamEvent

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	// slots bounds the number of workflows executing at once. Drivers
	// acquire a slot before their first wave, so excess workflows queue
	// in StatusCreated instead of being rejected.
	slots chan struct{}

	wg sync.WaitGroup
}

// NewService wires the engine together. archive may be nil to run without
// durability.
func NewService(store Store, templates *Templates, invoker Invoker, archive Archive, cfg config.WorkflowConfig) *Service {
	s := &Service{
		store:     store,
		templates: templates,
		invoker:   invoker,
		archive:   archive,
		cfg:       cfg,
		broadcast: make(chan StreamEvent, cfg.EventBufferSize),
		cancels:   make(map[string]context.CancelFunc),
	}
	if cfg.MaxLiveWorkflows > 0 {
		s.slots = make(chan struct{}, cfg.MaxLiveWorkflows)
	}
	return s
}

// Events exposes the live push stream consumed by the WebSocket broadcaster.
func (s *Service) Events() <-chan StreamEvent { return s.broadcast }

// Types returns the workflow types the service can build plans for.
func (s *Service) Types() []string { return s.templates.Types() }

// CreateWorkflow validates the request, builds the plan and starts execution
// in the background. Requests that fail validation return a ValidationError
// and leave no trace. A plan whose dependency graph cannot be scheduled
// still creates the workflow record, which immediately terminates in
// StatusError with the scheduling failure in its event log.
func (s *Service) CreateWorkflow(req Request) (string, error) {
	plan, err := s.templates.Build(req)
	if err != nil {
		return "", err
	}

	wf := &Workflow{
		ID:        uuid.NewString(),
		Request:   req,
		Plan:      plan,
		Status:    StatusCreated,
		Results:   make(Results),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(wf); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[wf.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runDriver(ctx, wf.ID)

	getLog().Info().Str("workflow_id", wf.ID).Str("type", req.Type).Msg("Workflow created")
	return wf.ID, nil
}

func (s *Service) runDriver(ctx context.Context, id string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[id]; ok {
			cancel()
			delete(s.cancels, id)
		}
		s.mu.Unlock()
	}()

	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
			defer func() { <-s.slots }()
		case <-ctx.Done():
			s.store.AppendEvent(id, Event{
				Type:     EventError,
				Terminal: true,
				Payload:  map[string]any{"message": ErrCancelled.Error(), "cancelled": true},
			})
			s.store.MarkTerminal(id, StatusError)
			return
		}
	}

	driver := NewDriver(s.store, s.invoker, s.broadcast)
	driver.MaxConcurrent = s.cfg.MaxConcurrentSteps
	driver.StepTimeout = s.cfg.StepTimeout
	if err := driver.Run(ctx, id); err != nil {
		getLog().Error().Err(err).Str("workflow_id", id).Msg("Driver run failed")
	}

	if s.archive == nil {
		return
	}
	wf, err := s.store.Get(id)
	if err != nil {
		return
	}
	if err := s.archive.Save(wf); err != nil {
		getLog().Error().Err(err).Str("workflow_id", id).Msg("Failed to archive workflow")
	}
}

// GetStatus returns the status read model, falling back to the archive for
// workflows no longer held live.
func (s *Service) GetStatus(id string) (StatusSummary, error) {
	wf, err := s.lookup(id)
	if err != nil {
		return StatusSummary{}, err
	}
	return wf.Summary(), nil
}

// GetResults returns the step outputs of a completed workflow. Any other
// status, including StatusError, returns ErrNotReady; failed runs expose
// what happened through the event log instead.
func (s *Service) GetResults(id string) (Results, error) {
	wf, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if wf.Status != StatusCompleted {
		return nil, ErrNotReady
	}
	return wf.Results, nil
}

// List returns summaries of all live workflows, newest first.
func (s *Service) List() []StatusSummary {
	wfs := s.store.List()
	out := make([]StatusSummary, len(wfs))
	for i, wf := range wfs {
		out[i] = wf.Summary()
	}
	return out
}

// EventsFrom returns the event log from the given cursor without blocking.
func (s *Service) EventsFrom(id string, cursor int) ([]Event, int, error) {
	evs, next, err := s.store.EventsFrom(id, cursor)
	if errors.Is(err, ErrNotFound) && s.archive != nil {
		wf, aerr := s.archive.Get(id)
		if aerr != nil {
			return nil, 0, ErrNotFound
		}
		return sliceEvents(wf.Events, cursor)
	}
	return evs, next, err
}

// WaitEvents blocks until events exist at or beyond cursor. Archived
// workflows never grow, so their log is returned immediately.
func (s *Service) WaitEvents(ctx context.Context, id string, cursor int) ([]Event, int, error) {
	evs, next, err := s.store.WaitEvents(ctx, id, cursor)
	if errors.Is(err, ErrNotFound) && s.archive != nil {
		wf, aerr := s.archive.Get(id)
		if aerr != nil {
			return nil, 0, ErrNotFound
		}
		return sliceEvents(wf.Events, cursor)
	}
	return evs, next, err
}

// Cancel stops a running workflow. Cancelling an unknown workflow returns
// ErrNotFound; cancelling one that already reached a terminal state is an
// error naming that state.
func (s *Service) Cancel(id string) error {
	wf, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if wf.Status.Terminal() {
		return fmt.Errorf("workflow %s is already %s", id, wf.Status)
	}
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("workflow %s has no running driver", id)
	}
	cancel()
	getLog().Info().Str("workflow_id", id).Msg("Workflow cancellation requested")
	return nil
}

// Cleanup removes a workflow from the live store. Terminal workflows remain
// readable through the archive. Running workflows must be cancelled first.
func (s *Service) Cleanup(id string) error {
	wf, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if !wf.Status.Terminal() {
		return fmt.Errorf("workflow %s is still %s, cancel it before cleanup", id, wf.Status)
	}
	return s.store.Remove(id)
}

// Shutdown cancels all running workflows and waits for their drivers to
// finish, bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) lookup(id string) (*Workflow, error) {
	wf, err := s.store.Get(id)
	if err == nil {
		return wf, nil
	}
	if !errors.Is(err, ErrNotFound) || s.archive == nil {
		return nil, err
	}
	wf, aerr := s.archive.Get(id)
	if aerr != nil {
		return nil, ErrNotFound
	}
	return wf, nil
}
