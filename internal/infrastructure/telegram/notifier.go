// Package telegram delivers briefs through the Telegram bot API. User IDs
// double as chat IDs.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsbrief/internal/ports"
)

// Notifier sends briefs (and an optional audio rendition) to a user's chat.
type Notifier struct {
	botToken string
	client   *http.Client
}

var _ ports.Deliverer = (*Notifier)(nil)

// NewNotifier registers the bot token.
func NewNotifier(botToken string) *Notifier {
	return &Notifier{
		botToken: botToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver posts the brief text, then the audio file reference when present.
// A failed audio send after a successful text send is not an error; the user
// already has the brief.
func (n *Notifier) Deliver(ctx context.Context, userID, text, audioURL string) error {
	if n.botToken == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	form := url.Values{}
	form.Set("chat_id", userID)
	form.Set("text", text)
	if err := n.call(ctx, "sendMessage", form); err != nil {
		return err
	}

	if audioURL != "" {
		form = url.Values{}
		form.Set("chat_id", userID)
		form.Set("audio", audioURL)
		if err := n.call(ctx, "sendAudio", form); err != nil {
			return nil
		}
	}
	return nil
}

func (n *Notifier) call(ctx context.Context, method string, form url.Values) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/%s", n.botToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}
