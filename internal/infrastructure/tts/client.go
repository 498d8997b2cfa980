// Package tts talks to an external voice-synthesis service.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newsbrief/internal/ports"
)

// Client renders brief text to audio and returns a hosted file URL.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.SpeechSynthesizer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Speak submits the text for synthesis and returns the audio URL.
func (c *Client) Speak(ctx context.Context, text, language string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("tts client misconfigured")
	}
	if language == "" {
		language = "en"
	}

	payload := map[string]any{
		"text":     text,
		"language": language,
		"format":   "mp3",
	}

	var resp struct {
		AudioURL string `json:"audio_url"`
	}
	if err := c.post(ctx, "/synthesize", payload, &resp); err != nil {
		return "", err
	}
	if resp.AudioURL == "" {
		return "", fmt.Errorf("tts returned no audio url")
	}
	return resp.AudioURL, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
