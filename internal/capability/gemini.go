// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vidya-ai/vidya/internal/config"
)

// GeminiGenerator calls the Gemini generateContent REST endpoint.
type GeminiGenerator struct {
	client   *http.Client
	endpoint string
	model    string
	apiKey   string
}

// NewGeminiGenerator builds a generator from the Gemini config section.
func NewGeminiGenerator(cfg config.GeminiConfig) *GeminiGenerator {
	return &GeminiGenerator{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", &GenerationError{Reason: "encoding request", Err: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Reason: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &GenerationError{Reason: "calling gemini", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &GenerationError{Reason: "reading response", Err: err}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &GenerationError{Reason: fmt.Sprintf("malformed response (status %d)", resp.StatusCode), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("gemini returned status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			reason = fmt.Sprintf("%s: %s", reason, parsed.Error.Message)
		}
		return "", &GenerationError{Reason: reason}
	}
	if len(parsed.Candidates) == 0 {
		return "", &GenerationError{Reason: "no candidates in response"}
	}
	cand := parsed.Candidates[0]
	if len(cand.Content.Parts) == 0 {
		reason := "candidate has no content"
		if cand.FinishReason != "" && cand.FinishReason != "STOP" {
			reason = fmt.Sprintf("%s (finish reason %s)", reason, cand.FinishReason)
		}
		return "", &GenerationError{Reason: reason}
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
