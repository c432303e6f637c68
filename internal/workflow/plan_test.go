// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanValidate(t *testing.T) {
	valid := Step{Number: 1, Capability: "cap", Task: "task"}

	tests := []struct {
		name    string
		plan    Plan
		wantErr string
	}{
		{
			name:    "empty plan",
			plan:    Plan{Type: "t"},
			wantErr: "no steps",
		},
		{
			name: "duplicate step numbers",
			plan: Plan{Steps: []Step{valid, {Number: 1, Capability: "cap2"}}},
			wantErr: "duplicate step number 1",
		},
		{
			name:    "non-positive step number",
			plan:    Plan{Steps: []Step{{Number: 0, Capability: "cap"}}},
			wantErr: "must be positive",
		},
		{
			name:    "missing capability",
			plan:    Plan{Steps: []Step{{Number: 1}}},
			wantErr: "no capability",
		},
		{
			name: "self dependency",
			plan: Plan{Steps: []Step{{Number: 1, Capability: "cap", DependsOn: []int{1}}}},
			wantErr: "depends on itself",
		},
		{
			name: "unknown dependency",
			plan: Plan{Steps: []Step{valid, {Number: 2, Capability: "cap", DependsOn: []int{9}}}},
			wantErr: "unknown step 9",
		},
		{
			name: "forward dependency",
			plan: Plan{Steps: []Step{
				{Number: 1, Capability: "cap", DependsOn: []int{2}},
				{Number: 2, Capability: "cap"},
			}},
			wantErr: "depends on later step 2",
		},
		{
			name: "dangling input reference",
			plan: Plan{Steps: []Step{
				valid,
				{Number: 2, Capability: "cap", Inputs: map[string]InputValue{"x": FromStep(5)}},
			}},
			wantErr: "references unknown step 5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid plan", func(t *testing.T) {
		plan := Plan{Steps: []Step{
			valid,
			{Number: 2, Capability: "cap", DependsOn: []int{1}, Inputs: map[string]InputValue{"prev": FromStep(1)}},
		}}
		assert.NoError(t, plan.Validate())
	})
}

func TestResolveInputs(t *testing.T) {
	results := Results{
		"step1": {"analysis": "curriculum"},
		"step2": {"content": "story"},
	}
	step := Step{
		Number:     3,
		Capability: "cap",
		Inputs: map[string]InputValue{
			"language": Literal("hi"),
			"upstream": FromStep(2),
			"all":      AllPrior(),
		},
	}

	resolved := step.ResolveInputs(results)
	assert.Equal(t, "hi", resolved["language"])
	assert.Equal(t, map[string]any{"content": "story"}, resolved["upstream"])

	all, ok := resolved["all"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, all, 2)
	assert.Equal(t, map[string]any{"analysis": "curriculum"}, all["step1"])
}

func TestDependents(t *testing.T) {
	plan := planFromDeps(map[int][]int{1: nil, 2: {1}, 3: {1, 2}})
	dependents := plan.Dependents()
	assert.ElementsMatch(t, []int{2, 3}, dependents[1])
	assert.Equal(t, []int{3}, dependents[2])
	assert.Empty(t, dependents[3])
}

func TestStepKey(t *testing.T) {
	assert.Equal(t, "step1", StepKey(1))
	assert.Equal(t, "step12", Step{Number: 12}.Key())
}
