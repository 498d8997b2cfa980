// Package extract fetches article pages and reduces them to body text.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsbrief/internal/ports"
)

const maxBodyRunes = 20000

var whitespaceExpr = regexp.MustCompile(`[ \t]+`)

// Extractor downloads a source URL and strips it down to paragraph text.
// Boilerplate containers (navigation, scripts, footers) are removed before
// text extraction.
type Extractor struct {
	client *http.Client
}

var _ ports.Fetcher = (*Extractor)(nil)

// New wires an HTTP client; a nil client gets a 20s-timeout default.
func New(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Extractor{client: client}
}

// Fetch retrieves the page and returns its readable text, paragraphs joined
// by newlines. Non-HTML or empty pages yield an empty string without error.
func (e *Extractor) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsBrief/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source returned %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	return extractText(doc), nil
}

func extractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, form, noscript").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var paragraphs []string
	root.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := cleanWhitespace(p.Text())
		if text == "" {
			return
		}
		paragraphs = append(paragraphs, text)
	})

	text := strings.Join(paragraphs, "\n")
	if text == "" {
		text = cleanWhitespace(root.Text())
	}

	runes := []rune(text)
	if len(runes) > maxBodyRunes {
		text = string(runes[:maxBodyRunes])
	}
	return text
}

func cleanWhitespace(s string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(s, " "))
}
