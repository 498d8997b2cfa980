package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newsbrief/internal/collect"
	"newsbrief/internal/config"
	"newsbrief/internal/domain"
	"newsbrief/internal/filter"
	"newsbrief/internal/scoring"
)

type stubSearcher struct {
	primary  map[string][]domain.RawSource
	fallback map[string][]domain.RawSource
}

func (s *stubSearcher) Search(_ context.Context, topic string, window domain.Window) ([]domain.RawSource, error) {
	if window == domain.WindowPrimary {
		return s.primary[topic], nil
	}
	return s.fallback[topic], nil
}

type stubFetcher struct {
	text string
	err  error
}

func (f *stubFetcher) Fetch(context.Context, string) (string, error) {
	return f.text, f.err
}

type stubSynth struct {
	mu       sync.Mutex
	attempts int
	failures int
}

func (s *stubSynth) Synthesize(_ context.Context, selection domain.Selection, _ domain.Profile) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return "", errors.New("model unavailable")
	}
	if len(selection.Sentences) == 0 {
		return "", errors.New("nothing to synthesize")
	}
	return "your brief", nil
}

type stubDeliverer struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (d *stubDeliverer) Deliver(_ context.Context, _, text, _ string) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, text)
	return nil
}

type stubStore struct {
	mu       sync.Mutex
	profiles []domain.Profile
	records  []domain.BriefingRecord
}

func (s *stubStore) SaveProfile(context.Context, domain.Profile) error { return nil }
func (s *stubStore) LoadProfile(context.Context, string) (domain.Profile, bool, error) {
	return domain.Profile{}, false, nil
}
func (s *stubStore) Profiles(context.Context) ([]domain.Profile, error) { return s.profiles, nil }
func (s *stubStore) LogBriefing(_ context.Context, rec domain.BriefingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}
func (s *stubStore) BriefingStats(context.Context, string) (int, int, error) { return 0, 0, nil }
func (s *stubStore) ClearHistory(context.Context, string) error { return nil }

func newsSource(id, dom, text string) domain.RawSource {
	return domain.RawSource{
		ID:        id,
		URL:       "https://" + dom + "/" + id,
		Domain:    dom,
		RawText:   text,
		FetchedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
}

func testPipeline(searcher *stubSearcher, fetcher *stubFetcher, synth *stubSynth, deliverer *stubDeliverer, store *stubStore) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	searchCfg := config.SearchConfig{TimeoutSeconds: 5, MaxConcurrentQueries: 2, AllowedDomains: []string{"reuters.com"}}

	deps := PipelineDeps{
		Collector: collect.New(searcher, nil, searchCfg, 0, logger),
		Filter:    filter.New(searchCfg.AllowedDomains, logger),
		Scorer:    scoring.NewScorer(config.ScoringConfig{LengthFit: 1, LengthLong: 0.7, LengthShort: 0.3}, 72*time.Hour),
		Selector:  scoring.NewSelector(1200),
		Synth:     synth,
		Deliverer: deliverer,
		Store:     store,
		Config: config.PipelineConfig{
			OverallTimeoutSeconds: 10,
			StageTimeoutSeconds:   5,
			SelectionBudget:       1200,
			RetryBackoffMillis:    1,
		},
		Logger: logger,
	}
	if fetcher != nil {
		deps.Fetcher = fetcher
	}
	return NewPipeline(deps)
}

func briefingRequest(topics ...string) domain.BriefingRequest {
	return domain.BriefingRequest{ID: "req-1", UserID: "user-1", Topics: topics, RequestedAt: time.Now().UTC()}
}

func TestRunFailsWhenNothingCollected(t *testing.T) {
	t.Parallel()

	p := testPipeline(&stubSearcher{}, nil, &stubSynth{}, &stubDeliverer{}, &stubStore{})

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusFailed, outcome.Status)
	require.ErrorIs(t, outcome.Err, domain.ErrSearchEmpty)
}

func TestRunFailsWhenFilterRemovesEverything(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{primary: map[string][]domain.RawSource{
		"tech": {newsSource("a", "tabloid.example", "Unverified rumor spreads online.")},
	}}
	p := testPipeline(searcher, nil, &stubSynth{}, &stubDeliverer{}, &stubStore{})

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusFailed, outcome.Status)
	require.ErrorIs(t, outcome.Err, domain.ErrFilterEmptyResult)
}

func TestRunDeliversBrief(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{primary: map[string][]domain.RawSource{
		"tech": {newsSource("a", "reuters.com", "Chipmaker revenue grew strongly this quarter. Analysts expect more growth next year.")},
	}}
	deliverer := &stubDeliverer{}
	store := &stubStore{}
	p := testPipeline(searcher, nil, &stubSynth{}, deliverer, store)

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusDelivered, outcome.Status)
	require.NotEmpty(t, outcome.Selection.Sentences)
	require.Equal(t, []string{"your brief"}, deliverer.messages)

	require.Len(t, store.records, 1)
	require.Equal(t, "req-1", store.records[0].RequestID)
	require.Equal(t, domain.StatusDelivered, store.records[0].Status)
}

func TestRunReportsFallbackAsPartialFailure(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{fallback: map[string][]domain.RawSource{
		"tech": {newsSource("a", "reuters.com", "Older coverage still relevant to the request window.")},
	}}
	p := testPipeline(searcher, nil, &stubSynth{}, &stubDeliverer{}, &stubStore{})

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusPartialFailure, outcome.Status)
	require.NotEmpty(t, outcome.Degraded)
}

func TestRunRetriesSynthesisOnce(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{primary: map[string][]domain.RawSource{
		"tech": {newsSource("a", "reuters.com", "One solid sentence about the topic at hand.")},
	}}
	synth := &stubSynth{failures: 1}
	p := testPipeline(searcher, nil, synth, &stubDeliverer{}, &stubStore{})

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusDelivered, outcome.Status)
	require.Equal(t, 2, synth.attempts)
}

func TestRunFailsWhenSynthesisKeepsFailing(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{primary: map[string][]domain.RawSource{
		"tech": {newsSource("a", "reuters.com", "One solid sentence about the topic at hand.")},
	}}
	synth := &stubSynth{failures: 10}
	p := testPipeline(searcher, nil, synth, &stubDeliverer{}, &stubStore{})

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusFailed, outcome.Status)
	require.ErrorIs(t, outcome.Err, domain.ErrSynthesisFailure)
	require.Equal(t, 2, synth.attempts)
}

func TestRunFailsWhenDeliveryKeepsFailing(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{primary: map[string][]domain.RawSource{
		"tech": {newsSource("a", "reuters.com", "One solid sentence about the topic at hand.")},
	}}
	deliverer := &stubDeliverer{err: errors.New("chat unreachable")}
	p := testPipeline(searcher, nil, &stubSynth{}, deliverer, &stubStore{})

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusFailed, outcome.Status)
	require.ErrorIs(t, outcome.Err, domain.ErrDeliveryFailure)
}

func TestRunAbsorbsFetchFailures(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{primary: map[string][]domain.RawSource{
		"tech": {newsSource("a", "reuters.com", "Snippet survives when the page fetch breaks.")},
	}}
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	p := testPipeline(searcher, fetcher, &stubSynth{}, &stubDeliverer{}, &stubStore{})

	outcome := p.Run(context.Background(), briefingRequest("tech"), domain.Profile{UserID: "user-1"})

	require.Equal(t, domain.StatusPartialFailure, outcome.Status)
	require.NotEmpty(t, outcome.Selection.Sentences)
	require.Contains(t, outcome.Selection.Texts()[0], "Snippet survives")
}
