// Package search adapts external search providers to the Searcher port.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"newsbrief/internal/config"
	"newsbrief/internal/domain"
	"newsbrief/internal/ports"
)

var jsonBlobExpr = regexp.MustCompile(`(?s)\{.*\}`)

// SonarSearcher queries a Perplexity-Sonar-compatible API that performs the
// web search server-side and returns structured news items.
type SonarSearcher struct {
	endpoint string
	model    string
	apiKey   string
	domains  []string
	client   *http.Client
}

var _ ports.Searcher = (*SonarSearcher)(nil)

// NewSonarSearcher builds the adapter from search configuration.
func NewSonarSearcher(cfg config.SearchConfig) *SonarSearcher {
	return &SonarSearcher{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		domains:  cfg.AllowedDomains,
		client:   &http.Client{Timeout: cfg.Timeout()},
	}
}

// Name identifies the provider inside the registry.
func (s *SonarSearcher) Name() string {
	return "sonar"
}

// Search issues one provider call for the topic and recency window.
func (s *SonarSearcher) Search(ctx context.Context, topic string, window domain.Window) ([]domain.RawSource, error) {
	if s.apiKey == "" || s.endpoint == "" {
		return nil, fmt.Errorf("sonar searcher misconfigured")
	}

	recency := "day"
	if window == domain.WindowFallback {
		recency = "week"
	}

	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a news collection assistant. Return ONLY valid JSON with news items."},
			{"role": "user", "content": collectionPrompt(topic, recency)},
		},
		"temperature":           0.1,
		"max_tokens":            2000,
		"search_recency_filter": recency,
		"search_domain_filter":  s.domains,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search provider returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, nil
	}

	return parseItems(completion.Choices[0].Message.Content)
}

func collectionPrompt(topic, recency string) string {
	span := "the last 24 hours"
	if recency == "week" {
		span = "the last 3 days"
	}
	return fmt.Sprintf(`Collect current news about %q from %s.
Return JSON of the form {"items":[{"title":"...","url":"...","source":"...","published_at":"RFC3339","summary":"..."}]}.
Only include items with a concrete URL and publication time.`, topic, span)
}

func parseItems(content string) ([]domain.RawSource, error) {
	blob := jsonBlobExpr.FindString(content)
	if blob == "" {
		return nil, nil
	}

	var parsed struct {
		Items []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Source      string `json:"source"`
			PublishedAt string `json:"published_at"`
			Summary     string `json:"summary"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(blob), &parsed); err != nil {
		return nil, fmt.Errorf("parse search items: %w", err)
	}

	now := time.Now().UTC()
	out := make([]domain.RawSource, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.URL == "" {
			continue
		}
		fetched := now
		if ts, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			fetched = ts.UTC()
		}
		out = append(out, domain.RawSource{
			URL:       item.URL,
			Title:     item.Title,
			Domain:    item.Source,
			RawText:   item.Summary,
			FetchedAt: fetched,
		})
	}
	return out, nil
}
