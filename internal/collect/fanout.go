// Package collect fans one search per topic out to the search collaborator
// with bounded concurrency, retrying each topic once on the wider fallback
// window. Topics are independent: a topic failing both attempts contributes
// an empty result, never a collection-wide failure.
package collect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"newsbrief/internal/config"
	"newsbrief/internal/domain"
	"newsbrief/internal/ports"
)

// TopicReport records one topic's attempt history for degraded-mode
// reporting upstream.
type TopicReport struct {
	Topic        string
	Count        int
	UsedFallback bool
	Err          error
}

// Result joins every topic's sources after all attempts completed.
type Result struct {
	Sources   map[string][]domain.RawSource
	Reports   []TopicReport
	FromCache bool
}

// Total counts sources across all topics.
func (r Result) Total() int {
	n := 0
	for _, srcs := range r.Sources {
		n += len(srcs)
	}
	return n
}

// Collector issues per-topic searches through the search collaborator.
type Collector struct {
	searcher ports.Searcher
	cache    ports.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	limit    int
	logger   *slog.Logger
}

// New wires the collector; cache may be nil (it is advisory only).
func New(searcher ports.Searcher, cache ports.Cache, cfg config.SearchConfig, cacheTTL time.Duration, logger *slog.Logger) *Collector {
	limit := cfg.MaxConcurrentQueries
	if limit <= 0 {
		limit = 1
	}
	return &Collector{
		searcher: searcher,
		cache:    cache,
		cacheTTL: cacheTTL,
		timeout:  cfg.Timeout(),
		limit:    limit,
		logger:   logger,
	}
}

// Collect runs the fan-out and joins results only after every topic's
// attempt (including its fallback) finished or timed out. Siblings are never
// cancelled because one topic failed.
func (c *Collector) Collect(ctx context.Context, topics []string) Result {
	key := CacheKey(topics)
	if cached, ok := c.cacheGet(key); ok {
		c.debug("collection served from cache", "topics", len(topics))
		return Result{Sources: cached, FromCache: true}
	}

	sources := make([][]domain.RawSource, len(topics))
	reports := make([]TopicReport, len(topics))

	g := new(errgroup.Group)
	g.SetLimit(c.limit)
	for i, topic := range topics {
		i, topic := i, topic
		g.Go(func() error {
			sources[i], reports[i] = c.collectTopic(ctx, topic)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Sources: make(map[string][]domain.RawSource, len(topics)), Reports: reports}
	for i, topic := range topics {
		result.Sources[topic] = sources[i]
	}

	if result.Total() > 0 {
		c.cacheSet(key, result.Sources)
	}
	return result
}

func (c *Collector) collectTopic(ctx context.Context, topic string) ([]domain.RawSource, TopicReport) {
	report := TopicReport{Topic: topic}

	srcs, err := c.attempt(ctx, topic, domain.WindowPrimary)
	if err != nil || len(srcs) == 0 {
		if err != nil {
			c.debug("primary window failed", "topic", topic, "error", err)
		}
		report.UsedFallback = true
		srcs, err = c.attempt(ctx, topic, domain.WindowFallback)
	}

	if err != nil {
		report.Err = err
		c.debug("topic failed both windows", "topic", topic, "error", err)
		return nil, report
	}
	if len(srcs) == 0 {
		report.Err = domain.ErrSearchEmpty
		return nil, report
	}

	for i := range srcs {
		normalizeSource(&srcs[i], topic)
	}
	report.Count = len(srcs)
	return srcs, report
}

func (c *Collector) attempt(ctx context.Context, topic string, window domain.Window) ([]domain.RawSource, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	srcs, err := c.searcher.Search(actx, topic, window)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, domain.ErrSearchTimeout
	}
	return srcs, err
}

func normalizeSource(src *domain.RawSource, topic string) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if src.Topic == "" {
		src.Topic = topic
	}
	if src.Domain == "" {
		if u, err := url.Parse(src.URL); err == nil {
			src.Domain = u.Hostname()
		}
	}
	if src.FetchedAt.IsZero() {
		src.FetchedAt = time.Now().UTC()
	}
}

// CacheKey hashes the normalized topic set. The hour slot keeps entries from
// outliving the news cycle even when the TTL is generous.
func CacheKey(topics []string) string {
	normalized := make([]string, 0, len(topics))
	for _, t := range topics {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(t)))
	}
	sort.Strings(normalized)
	slot := time.Now().UTC().Format("2006010215")
	sum := sha256.Sum256([]byte(strings.Join(normalized, "|") + "|" + slot))
	return "collect:" + hex.EncodeToString(sum[:])
}

func (c *Collector) cacheGet(key string) (map[string][]domain.RawSource, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	var sources map[string][]domain.RawSource
	if err := json.Unmarshal([]byte(raw), &sources); err != nil {
		return nil, false
	}
	return sources, true
}

func (c *Collector) cacheSet(key string, sources map[string][]domain.RawSource) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return
	}
	c.cache.Set(key, string(raw), c.cacheTTL)
}

func (c *Collector) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
