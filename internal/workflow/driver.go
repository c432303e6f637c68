// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Invoker executes one step's capability against the outputs accumulated so
// far. Implementations resolve the step's input specification themselves.
type Invoker interface {
	Invoke(ctx context.Context, step Step, results Results) (map[string]any, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, step Step, results Results) (map[string]any, error)

func (f InvokerFunc) Invoke(ctx context.Context, step Step, results Results) (map[string]any, error) {
	return f(ctx, step, results)
}

// Driver executes one workflow at a time, wave by wave. Steps inside a wave
// run concurrently up to MaxConcurrent; a wave only starts once the previous
// wave has fully finished. The driver is the sole writer of step results and
// step-level events for the workflows it runs.
type Driver struct {
	store     Store
	invoker   Invoker
	broadcast chan<- StreamEvent

	// MaxConcurrent caps concurrently executing steps within a wave.
	// Zero or negative means unbounded.
	MaxConcurrent int
	// StepTimeout bounds a single capability invocation. Zero disables
	// the per-step deadline.
	StepTimeout time.Duration
}

// NewDriver builds a driver. broadcast may be nil; when set, every appended
// event is also pushed there for live subscribers. Pushes never block: a
// full channel drops the push, the store log stays authoritative.
func NewDriver(store Store, invoker Invoker, broadcast chan<- StreamEvent) *Driver {
	return &Driver{store: store, invoker: invoker, broadcast: broadcast}
}

type stepOutcome struct {
	step Step
	out  map[string]any
	err  error
}

// Run executes the workflow to a terminal state. It assumes the workflow
// record exists in StatusCreated. Cancelling ctx stops the workflow between
// waves and after the currently running steps finish; the workflow then
// terminates in StatusError with a cancellation event and a cancellation
// marker recorded for every step that never ran. Run never returns a
// non-nil error for step failures, only for store-level faults.
func (d *Driver) Run(ctx context.Context, id string) (err error) {
	log := getLog()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("workflow_id", id).Interface("panic", r).Msg("Workflow driver panicked")
			d.emit(id, Event{
				Type:     EventError,
				Terminal: true,
				Payload:  map[string]any{"message": fmt.Sprintf("internal orchestrator error: %v", r)},
			})
			d.store.MarkTerminal(id, StatusError)
			err = fmt.Errorf("workflow %s: driver panic: %v", id, r)
		}
	}()

	wf, err := d.store.Get(id)
	if err != nil {
		return err
	}
	waves, err := Partition(wf.Plan)
	if err != nil {
		d.emit(id, Event{
			Type:     EventError,
			Terminal: true,
			Payload:  map[string]any{"message": err.Error()},
		})
		return d.store.MarkTerminal(id, StatusError)
	}
	if err := d.store.MarkExecuting(id); err != nil {
		return err
	}

	d.emit(id, Event{
		Type: EventWorkflowStarted,
		Payload: map[string]any{
			"workflow_type": wf.Request.Type,
			"total_steps":   len(wf.Plan.Steps),
			"waves":         len(waves),
		},
	})
	log.Info().Str("workflow_id", id).Str("type", wf.Request.Type).
		Int("steps", len(wf.Plan.Steps)).Int("waves", len(waves)).
		Msg("Workflow execution started")

	total := len(wf.Plan.Steps)
	processed := 0
	// failedBy maps a step that will not run to the failed or cancelled
	// step it inherits that fate from.
	failedBy := make(map[int]int)
	cancelled := false

	results := make(Results)
	for k, v := range wf.Results {
		results[k] = v
	}

	for _, wave := range waves {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			log.Warn().Str("workflow_id", id).Msg("Workflow cancelled, remaining waves abandoned")
			d.emit(id, Event{
				Type:    EventError,
				Payload: map[string]any{"message": ErrCancelled.Error(), "cancelled": true},
			})
		}

		var runnable []Step
		for _, s := range wave {
			if cancelled {
				processed++
				d.cancelStep(id, s)
				continue
			}
			if origin, blocked := blockedBy(s, failedBy); blocked {
				failedBy[s.Number] = origin
				processed++
				d.skipStep(id, s, origin)
				continue
			}
			runnable = append(runnable, s)
		}

		outcomes := d.runWave(ctx, id, runnable, results)
		for _, oc := range outcomes {
			processed++
			key := oc.step.Key()
			if oc.err != nil {
				failedBy[oc.step.Number] = oc.step.Number
				if werr := d.store.WriteResult(id, key, FailureResult(oc.err)); werr != nil {
					return werr
				}
				results[key] = FailureResult(oc.err)
				log.Error().Err(oc.err).Str("workflow_id", id).Int("step", oc.step.Number).
					Str("capability", oc.step.Capability).Msg("Step failed")
				d.emit(id, Event{
					Type: EventError,
					Payload: map[string]any{
						"step":       oc.step.Number,
						"capability": oc.step.Capability,
						"message":    oc.err.Error(),
					},
				})
				continue
			}
			if werr := d.store.WriteResult(id, key, oc.out); werr != nil {
				return werr
			}
			results[key] = oc.out
			d.emit(id, Event{
				Type: EventAgentCompleted,
				Payload: map[string]any{
					"step":       oc.step.Number,
					"capability": oc.step.Capability,
					"task":       oc.step.Task,
				},
			})
		}

		if total > 0 {
			pct := processed * 100 / total
			if pct > 99 {
				pct = 99
			}
			d.store.SetProgress(id, pct)
		}
	}

	status := StatusCompleted
	if cancelled || len(failedBy) > 0 {
		status = StatusError
	}
	payload := map[string]any{"status": status.String(), "total_steps": total}
	if cancelled {
		payload["cancelled"] = true
	}
	eventType := EventWorkflowCompleted
	if status == StatusError {
		eventType = EventError
	}
	if err := d.store.MarkTerminal(id, status); err != nil {
		return err
	}
	d.emit(id, Event{Type: eventType, Terminal: true, Payload: payload})
	log.Info().Str("workflow_id", id).Str("status", status.String()).Msg("Workflow finished")
	return nil
}

// runWave executes the runnable steps of one wave concurrently and returns
// their outcomes ordered by step number. Results merging happens strictly
// after the join, so within-wave completion order cannot influence state.
func (d *Driver) runWave(ctx context.Context, id string, steps []Step, results Results) []stepOutcome {
	if len(steps) == 0 {
		return nil
	}

	var sem chan struct{}
	if d.MaxConcurrent > 0 {
		sem = make(chan struct{}, d.MaxConcurrent)
	}

	outcomes := make(chan stepOutcome, len(steps))
	for _, s := range steps {
		d.emit(id, Event{
			Type: EventAgentStarted,
			Payload: map[string]any{
				"step":       s.Number,
				"capability": s.Capability,
				"task":       s.Task,
			},
		})
		go func(step Step) {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			defer func() {
				if r := recover(); r != nil {
					outcomes <- stepOutcome{step: step, err: fmt.Errorf("step %d panicked: %v", step.Number, r)}
				}
			}()

			stepCtx := ctx
			if d.StepTimeout > 0 {
				var cancel context.CancelFunc
				stepCtx, cancel = context.WithTimeout(ctx, d.StepTimeout)
				defer cancel()
			}

			d.emit(id, Event{
				Type: EventAgentProgress,
				Payload: map[string]any{
					"step":       step.Number,
					"capability": step.Capability,
					"progress":   25,
				},
			})
			out, err := d.invoker.Invoke(stepCtx, step, results)
			if err == nil {
				d.emit(id, Event{
					Type: EventAgentProgress,
					Payload: map[string]any{
						"step":       step.Number,
						"capability": step.Capability,
						"progress":   75,
					},
				})
			}
			outcomes <- stepOutcome{step: step, out: out, err: err}
		}(s)
	}

	collected := make([]stepOutcome, 0, len(steps))
	for range steps {
		collected = append(collected, <-outcomes)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].step.Number < collected[j].step.Number })
	return collected
}

// cancelStep records that a step was abandoned by cancellation, so Results
// and the event log account for every planned step.
func (d *Driver) cancelStep(id string, s Step) {
	if err := d.store.WriteResult(id, s.Key(), CancelResult()); err != nil {
		getLog().Error().Err(err).Str("workflow_id", id).Int("step", s.Number).Msg("Failed to record cancellation marker")
	}
	d.emit(id, Event{
		Type: EventAgentSkipped,
		Payload: map[string]any{
			"step":       s.Number,
			"capability": s.Capability,
			"cancelled":  true,
		},
	})
}

func (d *Driver) skipStep(id string, s Step, origin int) {
	if err := d.store.WriteResult(id, s.Key(), SkipResult(origin)); err != nil {
		getLog().Error().Err(err).Str("workflow_id", id).Int("step", s.Number).Msg("Failed to record skip marker")
	}
	d.emit(id, Event{
		Type: EventAgentSkipped,
		Payload: map[string]any{
			"step":              s.Number,
			"capability":        s.Capability,
			"skipped_due_to":    origin,
			"failed_dependency": true,
		},
	})
}

// blockedBy reports whether a step has a direct dependency that failed or
// was itself skipped, and which original failure it traces back to.
func blockedBy(s Step, failedBy map[int]int) (int, bool) {
	for _, dep := range s.DependsOn {
		if origin, ok := failedBy[dep]; ok {
			return origin, true
		}
	}
	return 0, false
}

func (d *Driver) emit(id string, ev Event) {
	appended, err := d.store.AppendEvent(id, ev)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			getLog().Error().Err(err).Str("workflow_id", id).Str("event_type", string(ev.Type)).Msg("Failed to append event")
		}
		return
	}
	if d.broadcast == nil {
		return
	}
	select {
	case d.broadcast <- StreamEvent{WorkflowID: id, Event: appended}:
	default:
		getLog().Warn().Str("workflow_id", id).Str("event_type", string(appended.Type)).Msg("Broadcast channel full, event push dropped")
	}
}
