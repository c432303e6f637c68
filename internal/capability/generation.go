// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"fmt"
)

// Generator produces text from a prompt. It is the seam between the lesson
// agents and the model backend; tests and offline runs plug in
// StaticGenerator instead of the real API client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerationError classifies a failure at the generation backend:
// rejected requests, rate limits, safety blocks, malformed responses.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }
