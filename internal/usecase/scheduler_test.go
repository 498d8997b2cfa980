package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newsbrief/internal/domain"
)

type stubDriver struct {
	started bool
	stopped bool
	job     func(time.Time)
}

func (d *stubDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	d.job = job
	return nil
}

func (d *stubDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerBriefsEveryProfile(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{primary: map[string][]domain.RawSource{
		"tech":    {newsSource("a", "reuters.com", "A solid tech sentence for the morning brief.")},
		"economy": {newsSource("b", "reuters.com", "A solid economy sentence for the morning brief.")},
	}}
	deliverer := &stubDeliverer{}
	store := &stubStore{profiles: []domain.Profile{
		{UserID: "u1", Topics: []string{"tech"}},
		{UserID: "u2", Topics: []string{"economy"}},
		{UserID: "u3"}, // no topics, skipped
	}}
	pipeline := testPipeline(searcher, nil, &stubSynth{}, deliverer, store)

	driver := &stubDriver{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(driver, pipeline, store, logger)

	require.NoError(t, s.Start(context.Background()))
	require.True(t, driver.started)

	driver.job(time.Now())

	require.Len(t, deliverer.messages, 2)
	require.Len(t, store.records, 2)

	seen := map[string]bool{}
	for _, rec := range store.records {
		seen[rec.UserID] = true
		require.NotEmpty(t, rec.RequestID)
	}
	require.True(t, seen["u1"])
	require.True(t, seen["u2"])

	require.NoError(t, s.Stop(context.Background()))
	require.True(t, driver.stopped)
}
