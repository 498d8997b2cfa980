package ports

import (
	"context"
	"time"

	"newsbrief/internal/domain"
)

// Searcher issues one search per topic against an external search provider.
type Searcher interface {
	Search(ctx context.Context, topic string, window domain.Window) ([]domain.RawSource, error)
}

// Fetcher retrieves the full text behind a source URL. The fetcher imposes
// no truncation; budgets are the core's own concern.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Synthesizer paraphrases an already-selected, already-ordered set of
// sentences into a brief. It never re-derives order or adds facts.
type Synthesizer interface {
	Synthesize(ctx context.Context, selection domain.Selection, profile domain.Profile) (string, error)
}

// SpeechSynthesizer renders a brief to audio, returning a playable URL.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, text, language string) (string, error)
}

// Deliverer pushes the finished brief (and session prompts) to the user's
// messaging channel.
type Deliverer interface {
	Deliver(ctx context.Context, userID, text, audioURL string) error
}

// Cache is the advisory lookup consulted around collection fan-out. Absence
// or staleness never changes correctness, only latency and cost.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
}

// PreferenceStore persists user preferences and briefing history.
type PreferenceStore interface {
	SaveProfile(ctx context.Context, profile domain.Profile) error
	LoadProfile(ctx context.Context, userID string) (domain.Profile, bool, error)
	Profiles(ctx context.Context) ([]domain.Profile, error)
	LogBriefing(ctx context.Context, rec domain.BriefingRecord) error
	BriefingStats(ctx context.Context, userID string) (total int, delivered int, err error)
	ClearHistory(ctx context.Context, userID string) error
}

// Scheduler drives recurring daily briefs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
