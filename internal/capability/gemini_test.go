// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidya-ai/vidya/internal/config"
)

func newTestGemini(handler http.HandlerFunc) (*GeminiGenerator, *httptest.Server) {
	srv := httptest.NewServer(handler)
	gen := NewGeminiGenerator(config.GeminiConfig{
		APIKey:   "test-key",
		Model:    "gemini-2.5-flash",
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
	})
	return gen, srv
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	gen, srv := newTestGemini(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": "hello "}, {"text": "world"}},
				},
				"finishReason": "STOP",
			}},
		})
	})
	defer srv.Close()

	text, err := gen.Generate(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "say hello", gotBody.Contents[0].Parts[0].Text)
}

func TestGeminiErrorStatus(t *testing.T) {
	gen, srv := newTestGemini(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	})
	defer srv.Close()

	_, err := gen.Generate(context.Background(), "hi")
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Reason, "429")
	assert.Contains(t, gerr.Reason, "quota exceeded")
}

func TestGeminiNoCandidates(t *testing.T) {
	gen, srv := newTestGemini(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})
	defer srv.Close()

	_, err := gen.Generate(context.Background(), "hi")
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Reason, "no candidates")
}

func TestGeminiSafetyBlock(t *testing.T) {
	gen, srv := newTestGemini(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{"finishReason": "SAFETY"}},
		})
	})
	defer srv.Close()

	_, err := gen.Generate(context.Background(), "hi")
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Reason, "SAFETY")
}

func TestGeminiMalformedResponse(t *testing.T) {
	gen, srv := newTestGemini(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})
	defer srv.Close()

	_, err := gen.Generate(context.Background(), "hi")
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Reason, "malformed response")
}

func TestGeminiContextCancelled(t *testing.T) {
	gen, srv := newTestGemini(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gen.Generate(ctx, "hi")
	var gerr *GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "calling gemini", gerr.Reason)
}
