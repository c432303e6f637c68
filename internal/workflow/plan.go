// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// InputKind tags how an input value is resolved at execution time.
type InputKind int

const (
	// InputLiteral passes the stored value through unchanged.
	InputLiteral InputKind = iota
	// InputFromStep resolves to the full output map of an earlier step.
	InputFromStep
	// InputAllPrior resolves to a map of step key to output for every step
	// that finished before this one.
	InputAllPrior
)

// InputValue is one entry of a step's input specification.
type InputValue struct {
	Kind  InputKind `json:"kind"`
	Value any       `json:"value,omitempty"`
	Step  int       `json:"step,omitempty"`
}

// Literal builds an input that passes v through unchanged.
func Literal(v any) InputValue { return InputValue{Kind: InputLiteral, Value: v} }

// FromStep builds an input that resolves to the output of step n.
func FromStep(n int) InputValue { return InputValue{Kind: InputFromStep, Step: n} }

// AllPrior builds an input that resolves to the outputs of all prior steps.
func AllPrior() InputValue { return InputValue{Kind: InputAllPrior} }

// Step is one node of an execution plan.
type Step struct {
	Number     int                   `json:"step"`
	Capability string                `json:"capability"`
	Task       string                `json:"task"`
	DependsOn  []int                 `json:"depends_on,omitempty"`
	Inputs     map[string]InputValue `json:"inputs,omitempty"`
}

// Key returns the results key for the step ("step1", "step2", ...).
func (s Step) Key() string { return StepKey(s.Number) }

// StepKey formats the results key for step number n.
func StepKey(n int) string { return fmt.Sprintf("step%d", n) }

// ResolveInputs materializes the step's input specification against the
// outputs of already finished steps. Failure and skip markers never reach
// this point: the driver only resolves inputs for steps whose dependencies
// all succeeded.
func (s Step) ResolveInputs(results Results) map[string]any {
	resolved := make(map[string]any, len(s.Inputs))
	for name, in := range s.Inputs {
		switch in.Kind {
		case InputFromStep:
			resolved[name] = results[StepKey(in.Step)]
		case InputAllPrior:
			prior := make(map[string]any, len(results))
			for k, v := range results {
				prior[k] = v
			}
			resolved[name] = prior
		default:
			resolved[name] = in.Value
		}
	}
	return resolved
}

// Plan is a validated, ordered set of steps for one workflow.
type Plan struct {
	Type  string `json:"type"`
	Steps []Step `json:"steps"`
}

// Validate checks the structural invariants every plan must hold before it
// is accepted: at least one step, unique step numbers, a non-empty
// capability per step, dependencies that point at existing earlier steps,
// and input references that point at existing steps.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return &ValidationError{Field: "steps", Reason: "plan has no steps"}
	}
	seen := make(map[int]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Number <= 0 {
			return &ValidationError{Field: "steps", Reason: fmt.Sprintf("step number %d must be positive", s.Number)}
		}
		if seen[s.Number] {
			return &ValidationError{Field: "steps", Reason: fmt.Sprintf("duplicate step number %d", s.Number)}
		}
		seen[s.Number] = true
		if s.Capability == "" {
			return &ValidationError{Field: "steps", Reason: fmt.Sprintf("step %d has no capability", s.Number)}
		}
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if dep == s.Number {
				return &ValidationError{Field: "steps", Reason: fmt.Sprintf("step %d depends on itself", s.Number)}
			}
			if !seen[dep] {
				return &ValidationError{Field: "steps", Reason: fmt.Sprintf("step %d depends on unknown step %d", s.Number, dep)}
			}
			if dep > s.Number {
				return &ValidationError{Field: "steps", Reason: fmt.Sprintf("step %d depends on later step %d", s.Number, dep)}
			}
		}
		for name, in := range s.Inputs {
			if in.Kind == InputFromStep && !seen[in.Step] {
				return &ValidationError{Field: "steps", Reason: fmt.Sprintf("step %d input %q references unknown step %d", s.Number, name, in.Step)}
			}
		}
	}
	return nil
}

// StepNumbers returns the plan's step numbers in ascending order.
func (p Plan) StepNumbers() []int {
	nums := lo.Map(p.Steps, func(s Step, _ int) int { return s.Number })
	sort.Ints(nums)
	return nums
}

// Dependents computes the reverse dependency index: for each step, which
// later steps list it as a direct dependency.
func (p Plan) Dependents() map[int][]int {
	out := make(map[int][]int, len(p.Steps))
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			out[dep] = append(out[dep], s.Number)
		}
	}
	return out
}
