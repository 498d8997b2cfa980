package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"newsbrief/internal/collect"
	"newsbrief/internal/config"
	"newsbrief/internal/domain"
	"newsbrief/internal/filter"
	"newsbrief/internal/ports"
	"newsbrief/internal/scoring"
)

const fetchConcurrency = 4

// PipelineDeps wires all driven adapters into the briefing pipeline.
type PipelineDeps struct {
	Collector *collect.Collector
	Filter    *filter.Filter
	Scorer    *scoring.Scorer
	Selector  *scoring.Selector
	Fetcher   ports.Fetcher
	Synth     ports.Synthesizer
	Speech    ports.SpeechSynthesizer
	Deliverer ports.Deliverer
	Store     ports.PreferenceStore
	Config    config.PipelineConfig
	Logger    *slog.Logger
}

// Pipeline coordinates one briefing request end to end: collection fan-out,
// filter/dedup, per-source extraction, detection/scoring, budgeted
// selection, then synthesis and delivery. It emits exactly one terminal
// Outcome per request and discards all derived data afterwards.
type Pipeline struct {
	collector *collect.Collector
	filter    *filter.Filter
	scorer    *scoring.Scorer
	selector  *scoring.Selector
	fetcher   ports.Fetcher
	synth     ports.Synthesizer
	speech    ports.SpeechSynthesizer
	deliverer ports.Deliverer
	store     ports.PreferenceStore
	cfg       config.PipelineConfig
	logger    *slog.Logger
}

// NewPipeline constructs the coordinator.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		collector: deps.Collector,
		filter:    deps.Filter,
		scorer:    deps.Scorer,
		selector:  deps.Selector,
		fetcher:   deps.Fetcher,
		synth:     deps.Synth,
		speech:    deps.Speech,
		deliverer: deps.Deliverer,
		store:     deps.Store,
		cfg:       deps.Config,
		logger:    deps.Logger,
	}
}

// Run executes the request under one overall deadline with per-stage
// sub-timeouts. A stage timing out degrades the result instead of aborting
// it; only an entirely empty collection or filter output terminates early.
func (p *Pipeline) Run(ctx context.Context, req domain.BriefingRequest, profile domain.Profile) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OverallTimeout())
	defer cancel()

	var degraded []string

	// Collection fan-out.
	collected := p.collectStage(ctx, req.Topics)
	for _, report := range collected.Reports {
		if report.Err != nil {
			degraded = append(degraded, fmt.Sprintf("topic %q: %v", report.Topic, report.Err))
		} else if report.UsedFallback {
			degraded = append(degraded, fmt.Sprintf("topic %q used fallback window", report.Topic))
		}
	}
	if collected.Total() == 0 {
		return p.finish(ctx, req, domain.Outcome{Status: domain.StatusFailed, Err: domain.ErrSearchEmpty}, profile)
	}

	// Filter/dedup before extraction so only kept sources cost a fetch.
	var raw []domain.RawSource
	for _, topic := range req.Topics {
		raw = append(raw, collected.Sources[topic]...)
	}
	kept := filter.Kept(p.filter.Apply(raw))
	if len(kept) == 0 {
		return p.finish(ctx, req, domain.Outcome{Status: domain.StatusFailed, Err: domain.ErrFilterEmptyResult}, profile)
	}

	// Per-source extraction; failures fall back to the search snippet.
	if n := p.extractStage(ctx, kept); n > 0 {
		degraded = append(degraded, fmt.Sprintf("full-text fetch failed for %d source(s)", n))
	}

	// Detection, scoring, selection.
	now := time.Now().UTC()
	var sentences []domain.Sentence
	for order, src := range kept {
		sentences = append(sentences, filter.Sentences(src, order, req.Topics, now)...)
	}
	if len(sentences) == 0 {
		return p.finish(ctx, req, domain.Outcome{Status: domain.StatusFailed, Err: domain.ErrFilterEmptyResult}, profile)
	}
	selection := p.selector.Select(p.scorer.ScoreAll(sentences))

	// Synthesis with one retry.
	text, err := p.synthesize(ctx, selection, profile)
	if err != nil {
		return p.finish(ctx, req, domain.Outcome{
			Status:    domain.StatusFailed,
			Selection: selection,
			Degraded:  degraded,
			Err:       fmt.Errorf("%w: %v", domain.ErrSynthesisFailure, err),
		}, profile)
	}

	// Optional audio; failure degrades to text-only.
	audioURL := ""
	if profile.WantsAudio && p.speech != nil {
		audioURL, err = p.speech.Speak(ctx, text, profile.Language)
		if err != nil {
			p.logger.Warn("audio synthesis failed, delivering text only", "error", err)
			degraded = append(degraded, "audio synthesis skipped")
			audioURL = ""
		}
	}

	// Delivery with one retry.
	if err := p.deliver(ctx, profile.UserID, text, audioURL); err != nil {
		return p.finish(ctx, req, domain.Outcome{
			Status:    domain.StatusFailed,
			Selection: selection,
			Degraded:  degraded,
			Err:       fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err),
		}, profile)
	}

	outcome := domain.Outcome{Status: domain.StatusDelivered, Selection: selection, Degraded: degraded}
	if len(degraded) > 0 {
		outcome.Status = domain.StatusPartialFailure
	}
	return p.finish(ctx, req, outcome, profile)
}

func (p *Pipeline) collectStage(ctx context.Context, topics []string) collect.Result {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout())
	defer cancel()
	return p.collector.Collect(sctx, topics)
}

// extractStage swaps each kept source's snippet for fetched full text where
// possible and returns how many fetches failed. Fetch failures are absorbed
// here: the source is kept on its snippet, matching the rule that per-source
// failures never abort the request.
func (p *Pipeline) extractStage(ctx context.Context, kept []domain.CanonicalSource) int {
	if p.fetcher == nil {
		return 0
	}
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout())
	defer cancel()

	failures := make([]bool, len(kept))
	g := new(errgroup.Group)
	g.SetLimit(fetchConcurrency)
	for i := range kept {
		i := i
		g.Go(func() error {
			text, err := p.fetcher.Fetch(sctx, kept[i].URL)
			if err != nil || text == "" {
				failures[i] = err != nil
				return nil
			}
			kept[i].RawText = text
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	return failed
}

func (p *Pipeline) synthesize(ctx context.Context, selection domain.Selection, profile domain.Profile) (string, error) {
	var text string
	err := p.withRetry(ctx, func(c context.Context) error {
		var err error
		text, err = p.synth.Synthesize(c, selection, profile)
		return err
	})
	return text, err
}

func (p *Pipeline) deliver(ctx context.Context, userID, text, audioURL string) error {
	return p.withRetry(ctx, func(c context.Context) error {
		return p.deliverer.Deliver(c, userID, text, audioURL)
	})
}

func (p *Pipeline) withRetry(ctx context.Context, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil {
		return nil
	}
	select {
	case <-time.After(p.cfg.RetryBackoff()):
	case <-ctx.Done():
		return err
	}
	return op(ctx)
}

// finish logs the terminal outcome and records it; derived data is not
// retained beyond the returned Outcome.
func (p *Pipeline) finish(ctx context.Context, req domain.BriefingRequest, outcome domain.Outcome, profile domain.Profile) domain.Outcome {
	if outcome.Err != nil {
		p.logger.Warn("briefing finished",
			"request", req.ID, "user", profile.UserID, "status", outcome.Status, "error", outcome.Err)
	} else {
		p.logger.Info("briefing finished",
			"request", req.ID, "user", profile.UserID, "status", outcome.Status,
			"selected_chars", outcome.Selection.TotalChars, "degraded", len(outcome.Degraded))
	}

	if p.store != nil {
		rec := domain.BriefingRecord{
			RequestID:   req.ID,
			UserID:      req.UserID,
			Topics:      req.Topics,
			Status:      outcome.Status,
			Chars:       outcome.Selection.TotalChars,
			DeliveredAt: time.Now().UTC(),
		}
		if err := p.store.LogBriefing(ctx, rec); err != nil {
			p.logger.Warn("failed to record briefing", "request", req.ID, "error", err)
		}
	}
	return outcome
}
