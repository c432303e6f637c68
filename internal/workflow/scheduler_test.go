// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planFromDeps(deps map[int][]int) Plan {
	p := Plan{Type: "test"}
	for n, d := range deps {
		p.Steps = append(p.Steps, Step{Number: n, Capability: "cap", Task: "task", DependsOn: d})
	}
	return p
}

func waveNumbers(waves [][]Step) [][]int {
	out := make([][]int, len(waves))
	for i, w := range waves {
		for _, s := range w {
			out[i] = append(out[i], s.Number)
		}
	}
	return out
}

func TestPartitionLessonPlan(t *testing.T) {
	plan := planFromDeps(map[int][]int{
		1: nil,
		2: {1},
		3: {2},
		4: {2, 3},
		5: {2},
		6: {1, 2, 3, 4, 5},
	})

	waves, err := Partition(plan)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1}, {2}, {3, 5}, {4}, {6}}, waveNumbers(waves))
}

func TestPartitionProperties(t *testing.T) {
	tests := []struct {
		name string
		deps map[int][]int
		want [][]int
	}{
		{
			name: "single step",
			deps: map[int][]int{1: nil},
			want: [][]int{{1}},
		},
		{
			name: "all independent collapse to one wave",
			deps: map[int][]int{1: nil, 2: nil, 3: nil},
			want: [][]int{{1, 2, 3}},
		},
		{
			name: "chain",
			deps: map[int][]int{1: nil, 2: {1}, 3: {2}},
			want: [][]int{{1}, {2}, {3}},
		},
		{
			name: "diamond",
			deps: map[int][]int{1: nil, 2: {1}, 3: {1}, 4: {2, 3}},
			want: [][]int{{1}, {2, 3}, {4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			waves, err := Partition(planFromDeps(tt.deps))
			require.NoError(t, err)
			assert.Equal(t, tt.want, waveNumbers(waves))

			// Every step appears in exactly one wave.
			seen := make(map[int]int)
			for _, w := range waves {
				for _, s := range w {
					seen[s.Number]++
				}
			}
			assert.Len(t, seen, len(tt.deps))
			for n, count := range seen {
				assert.Equal(t, 1, count, "step %d scheduled %d times", n, count)
			}
		})
	}
}

func TestPartitionWavesAreMaximal(t *testing.T) {
	// Step 5 depends only on 1, so it must run in wave 2 alongside 2 and
	// 3, not be delayed to a later wave.
	plan := planFromDeps(map[int][]int{1: nil, 2: {1}, 3: {1}, 4: {2}, 5: {1}})
	waves, err := Partition(plan)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1}, {2, 3, 5}, {4}}, waveNumbers(waves))
}

func TestPartitionCycle(t *testing.T) {
	plan := planFromDeps(map[int][]int{1: {3}, 2: {1}, 3: {2}})
	waves, err := Partition(plan)
	assert.Nil(t, waves)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []int{1, 2, 3}, depErr.Unassigned)
}

func TestPartitionPartialCycle(t *testing.T) {
	// Steps outside the cycle are still unschedulable as a whole: no waves
	// are returned at all.
	plan := planFromDeps(map[int][]int{1: nil, 2: {3}, 3: {2}, 4: {1}})
	waves, err := Partition(plan)
	assert.Nil(t, waves)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []int{2, 3}, depErr.Unassigned)
}

func TestPartitionMissingDependency(t *testing.T) {
	plan := planFromDeps(map[int][]int{1: nil, 2: {7}})
	_, err := Partition(plan)

	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Contains(t, depErr.Unassigned, 2)
}
