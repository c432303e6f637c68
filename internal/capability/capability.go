// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package capability provides the pluggable units of work the workflow
// engine invokes: a registry of named capabilities, the adapter that bridges
// plan steps to them, and the lesson agents built on top of a text
// generation backend.
package capability

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vidya-ai/vidya/internal/logger"
	"github.com/vidya-ai/vidya/internal/workflow"
)

var (
	capLog     zerolog.Logger
	capLogOnce sync.Once
)

func getLog() *zerolog.Logger {
	capLogOnce.Do(func() {
		capLog = logger.GetCapabilityLogger()
	})
	return &capLog
}

// Info describes a capability for discovery endpoints.
type Info struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tasks       []string `json:"tasks"`
}

// Capability is one invocable unit of work. Implementations must be safe
// for concurrent invocation.
type Capability interface {
	Info() Info
	Invoke(ctx context.Context, task string, input map[string]any) (map[string]any, error)
}

// Registry holds the capabilities available to the engine, keyed by id.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Capability)}
}

// Register adds a capability, replacing any previous one with the same id.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[c.Info().ID] = c
	getLog().Debug().Str("capability", c.Info().ID).Msg("Capability registered")
}

// Lookup returns the capability registered under id.
func (r *Registry) Lookup(id string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[id]
	return c, ok
}

// List returns the Info of all registered capabilities.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.m))
	for _, c := range r.m {
		out = append(out, c.Info())
	}
	return out
}

// Adapter bridges plan steps to registered capabilities. It resolves each
// step's input specification against the accumulated results and wraps every
// failure in a workflow.CapabilityError carrying the step context.
type Adapter struct {
	reg *Registry
}

// NewAdapter returns an adapter over the registry.
func NewAdapter(reg *Registry) *Adapter {
	return &Adapter{reg: reg}
}

var errNotRegistered = errors.New("capability not registered")

// Invoke implements workflow.Invoker.
func (a *Adapter) Invoke(ctx context.Context, step workflow.Step, results workflow.Results) (map[string]any, error) {
	c, ok := a.reg.Lookup(step.Capability)
	if !ok {
		return nil, &workflow.CapabilityError{Step: step.Number, Capability: step.Capability, Err: errNotRegistered}
	}
	input := step.ResolveInputs(results)
	getLog().Debug().Int("step", step.Number).Str("capability", step.Capability).Str("task", step.Task).Msg("Invoking capability")
	out, err := c.Invoke(ctx, step.Task, input)
	if err != nil {
		return nil, &workflow.CapabilityError{Step: step.Number, Capability: step.Capability, Err: err}
	}
	return out, nil
}
