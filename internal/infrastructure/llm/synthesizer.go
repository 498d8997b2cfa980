// Package llm paraphrases selected sentences through an OpenAI-compatible
// chat completion API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"newsbrief/internal/config"
	"newsbrief/internal/domain"
	"newsbrief/internal/ports"
)

// Synthesizer rewrites a selection into a short brief. It sends the already
// ordered sentences as numbered lines and instructs the model to preserve
// order and facts.
type Synthesizer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer builds a client from configuration.
func NewSynthesizer(cfg config.SynthesisConfig) *Synthesizer {
	return &Synthesizer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: safePrompt(cfg.SystemPrompt),
		httpClient:   &http.Client{Timeout: cfg.Timeout()},
	}
}

// Synthesize posts the selection as a user message and returns the rewritten
// brief. An empty completion is an error so the caller can retry.
func (s *Synthesizer) Synthesize(ctx context.Context, selection domain.Selection, profile domain.Profile) (string, error) {
	if s == nil {
		return "", fmt.Errorf("synthesizer is nil")
	}
	if s.apiKey == "" || s.endpoint == "" || s.model == "" {
		return "", fmt.Errorf("synthesizer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": s.systemPrompt},
			{"role": "user", "content": userPrompt(selection, profile)},
		},
		"temperature": 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("marshal synthesis payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesize brief: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("synthesis error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode synthesis response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("synthesis returned no choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("synthesis returned empty brief")
	}
	return text, nil
}

func userPrompt(selection domain.Selection, profile domain.Profile) string {
	var b strings.Builder
	name := profile.Name
	if name == "" {
		name = "the reader"
	}
	fmt.Fprintf(&b, "Write a personal news brief for %s. Keep the sentences in the given order, rephrase for flow, and do not invent facts.\n\n", name)
	for i, line := range selection.Texts() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You rewrite the provided news sentences into a short personal brief. Use only the facts given; never add information."
	}
	return prompt
}
