// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no workflow exists for the given id.
	ErrNotFound = errors.New("workflow not found")

	// ErrNotReady is returned by result queries on workflows that have not
	// reached the completed state.
	ErrNotReady = errors.New("workflow results not ready")

	// ErrCancelled is recorded when a workflow is stopped by an explicit
	// cancellation request.
	ErrCancelled = errors.New("workflow cancelled")
)

// ValidationError rejects a workflow request before any record is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid workflow request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid workflow request: field %q: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DependencyError describes a plan whose dependency graph cannot be fully
// scheduled, either because of a cycle or a reference to a missing step.
type DependencyError struct {
	Reason     string
	Unassigned []int
}

func (e *DependencyError) Error() string {
	if len(e.Unassigned) == 0 {
		return fmt.Sprintf("unsatisfiable dependencies: %s", e.Reason)
	}
	return fmt.Sprintf("unsatisfiable dependencies: %s (steps %v)", e.Reason, e.Unassigned)
}

// CapabilityError wraps a failure raised at the capability boundary of one
// step: unknown capability, unsupported task, or a generation failure.
type CapabilityError struct {
	Step       int
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }
