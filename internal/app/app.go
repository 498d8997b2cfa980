// Package app wires configuration to adapters and use cases.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"newsbrief/internal/collect"
	"newsbrief/internal/config"
	"newsbrief/internal/filter"
	"newsbrief/internal/infrastructure/cache"
	"newsbrief/internal/infrastructure/extract"
	"newsbrief/internal/infrastructure/llm"
	"newsbrief/internal/infrastructure/scheduler"
	"newsbrief/internal/infrastructure/search"
	"newsbrief/internal/infrastructure/storage"
	"newsbrief/internal/infrastructure/telegram"
	"newsbrief/internal/infrastructure/tts"
	"newsbrief/internal/logging"
	"newsbrief/internal/ports"
	"newsbrief/internal/scoring"
	"newsbrief/internal/session"
	"newsbrief/internal/usecase"
)

// Application owns the assembled object graph and its lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	sessions  *session.Manager
	scheduler *usecase.Scheduler
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	var db *sql.DB
	var store ports.PreferenceStore
	if cfg.Database.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}
	store = storage.NewPostgresRepository(db)

	registry := search.NewRegistry()
	registry.Register(search.NewSonarSearcher(cfg.Search))
	searcher, err := registry.Resolve(cfg.Search.Provider)
	if err != nil {
		return nil, err
	}

	memCache := cache.NewMemory()
	collector := collect.New(searcher, memCache, cfg.Search, cfg.Cache.TTL(),
		baseLogger.With("component", "collect"))

	deliverer := telegram.NewNotifier(cfg.Telegram.BotToken)

	var speech ports.SpeechSynthesizer
	if cfg.TTS.Endpoint != "" {
		speech = tts.NewClient(cfg.TTS.Endpoint, cfg.TTS.APIKey)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Collector: collector,
		Filter:    filter.New(cfg.Search.AllowedDomains, baseLogger.With("component", "filter")),
		Scorer:    scoring.NewScorer(cfg.Scoring, cfg.Search.FallbackWindow()),
		Selector:  scoring.NewSelector(cfg.Pipeline.SelectionBudget),
		Fetcher:   extract.New(&http.Client{Timeout: 20 * time.Second}),
		Synth:     llm.NewSynthesizer(cfg.Synthesis),
		Speech:    speech,
		Deliverer: deliverer,
		Store:     store,
		Config:    cfg.Pipeline,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	sessions := session.NewManager(pipeline, deliverer, store,
		baseLogger.With("component", "session"))

	daily := usecase.NewScheduler(scheduler.NewDaily(cfg.Scheduler), pipeline, store,
		baseLogger.With("component", "scheduler"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		sessions:  sessions,
		scheduler: daily,
	}, nil
}

// Sessions exposes the session manager to the inbound transport.
func (a *Application) Sessions() *session.Manager {
	return a.sessions
}

// Run starts the daily scheduler and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("application started",
		"provider", a.cfg.Search.Provider, "daily_hour", a.cfg.Scheduler.Hour)

	<-ctx.Done()
	return a.Close()
}

// Close tears down background work and the database pool.
func (a *Application) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = a.scheduler.Stop(ctx)
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
