// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"sort"

	"github.com/samber/lo"
)

// Partition splits a plan into ordered waves of steps. Every step in a wave
// has all of its dependencies satisfied by earlier waves, and each wave is
// maximal: a step is scheduled in the first wave where it is runnable. Steps
// inside one wave are mutually independent and may execute concurrently.
//
// A plan whose graph contains a cycle, or whose steps reference dependencies
// outside the plan, cannot be fully partitioned; Partition returns a
// DependencyError naming the unassignable steps and no waves at all.
func Partition(p Plan) ([][]Step, error) {
	byNumber := make(map[int]Step, len(p.Steps))
	for _, s := range p.Steps {
		byNumber[s.Number] = s
	}

	done := make(map[int]bool, len(p.Steps))
	remaining := make(map[int]Step, len(p.Steps))
	for n, s := range byNumber {
		remaining[n] = s
	}

	var waves [][]Step
	for len(remaining) > 0 {
		var wave []Step
		for _, s := range remaining {
			ready := lo.EveryBy(s.DependsOn, func(dep int) bool { return done[dep] })
			if ready {
				wave = append(wave, s)
			}
		}
		if len(wave) == 0 {
			unassigned := lo.Keys(remaining)
			sort.Ints(unassigned)
			return nil, &DependencyError{
				Reason:     "dependency cycle or missing step",
				Unassigned: unassigned,
			}
		}
		sort.Slice(wave, func(i, j int) bool { return wave[i].Number < wave[j].Number })
		for _, s := range wave {
			done[s.Number] = true
			delete(remaining, s.Number)
		}
		waves = append(waves, wave)
	}
	return waves, nil
}
