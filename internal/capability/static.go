// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"fmt"
	"sync"
)

// StaticGenerator returns canned text without calling any backend. It backs
// the lesson agents in tests and in local runs without an API key.
type StaticGenerator struct {
	// Response is returned for every prompt. Empty means a short echo of
	// the prompt is synthesized instead.
	Response string
	// Err, when set, is returned for every call.
	Err error

	mu      sync.Mutex
	prompts []string
}

// Generate implements Generator.
func (g *StaticGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	if g.Response != "" {
		return g.Response, nil
	}
	n := len(prompt)
	if n > 80 {
		n = 80
	}
	return fmt.Sprintf("[static] %s", prompt[:n]), nil
}

// Prompts returns every prompt seen so far.
func (g *StaticGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}
