package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"newsbrief/internal/domain"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []domain.BriefingRequest
	outcome  domain.Outcome

	// block, when set, holds Run until released to simulate a slow pipeline.
	block   chan struct{}
	started chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, req domain.BriefingRequest, _ domain.Profile) domain.Outcome {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	return r.outcome
}

func (r *fakeRunner) requestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type fakeDeliverer struct {
	mu       sync.Mutex
	messages []string
}

func (d *fakeDeliverer) Deliver(_ context.Context, _, text, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, text)
	return nil
}

func (d *fakeDeliverer) last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.messages) == 0 {
		return ""
	}
	return d.messages[len(d.messages)-1]
}

func newTestManager(runner Runner) (*Manager, *fakeDeliverer) {
	deliverer := &fakeDeliverer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(runner, deliverer, nil, logger), deliverer
}

func mustState(t *testing.T, m *Manager, userID string, want State) {
	t.Helper()
	sess, ok := m.Session(userID)
	require.True(t, ok)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	require.Equal(t, want, sess.State)
}

func TestFirstContactAsksForTopics(t *testing.T) {
	t.Parallel()

	m, deliverer := newTestManager(&fakeRunner{})
	m.HandleMessage(context.Background(), "u1", "hello")

	mustState(t, m, "u1", StateAwaitingTopics)
	require.Equal(t, msgWelcome, deliverer.last())
}

func TestTopicListMovesToReady(t *testing.T) {
	t.Parallel()

	m, deliverer := newTestManager(&fakeRunner{})
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech, economy")

	mustState(t, m, "u1", StateReady)
	require.Contains(t, deliverer.last(), "tech, economy")

	sess, _ := m.Session("u1")
	require.Equal(t, []string{"tech", "economy"}, sess.Profile.Topics)
}

func TestInvalidTopicsReprompt(t *testing.T) {
	t.Parallel()

	m, deliverer := newTestManager(&fakeRunner{})
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "???, !!!")

	mustState(t, m, "u1", StateAwaitingTopics)
	require.Equal(t, msgInvalidTopics, deliverer.last())
}

func TestBriefingRunsPipelineAndReturnsToReady(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: domain.Outcome{Status: domain.StatusDelivered}}
	m, _ := newTestManager(runner)
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "/briefing")

	require.Equal(t, 1, runner.requestCount())
	require.Equal(t, []string{"tech"}, runner.requests[0].Topics)
	require.NotEmpty(t, runner.requests[0].ID)
	mustState(t, m, "u1", StateReady)
}

func TestAdHocQueryBriefsSingleTopic(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: domain.Outcome{Status: domain.StatusDelivered}}
	m, _ := newTestManager(runner)
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "what happened with the launch")

	require.Equal(t, 1, runner.requestCount())
	require.Equal(t, []string{"what happened with the launch"}, runner.requests[0].Topics)
}

func TestConcurrentBriefingRejected(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		outcome: domain.Outcome{Status: domain.StatusDelivered},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	m, deliverer := newTestManager(runner)
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")

	done := make(chan struct{})
	go func() {
		m.HandleMessage(ctx, "u1", "/briefing")
		close(done)
	}()
	<-runner.started

	mustState(t, m, "u1", StateProcessing)
	m.HandleMessage(ctx, "u1", "/briefing")
	require.Equal(t, msgAlreadyRunning, deliverer.last())
	require.Equal(t, 1, runner.requestCount())

	close(runner.block)
	<-done
	mustState(t, m, "u1", StateReady)
}

func TestNoNewsMessageOnEmptyResult(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: domain.Outcome{Status: domain.StatusFailed, Err: domain.ErrFilterEmptyResult}}
	m, deliverer := newTestManager(runner)
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "/briefing")

	require.Equal(t, msgNoNews, deliverer.last())
	mustState(t, m, "u1", StateReady)
}

func TestGenericErrorOnOtherFailures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outcome: domain.Outcome{Status: domain.StatusFailed, Err: errors.New("boom")}}
	m, deliverer := newTestManager(runner)
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "/briefing")

	require.Equal(t, msgGenericError, deliverer.last())
}

func TestStopClosesAndRestartsFresh(t *testing.T) {
	t.Parallel()

	m, deliverer := newTestManager(&fakeRunner{})
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "/stop")
	mustState(t, m, "u1", StateClosed)
	require.Equal(t, msgStopped, deliverer.last())

	// First contact after stop starts over with onboarding.
	m.HandleMessage(ctx, "u1", "hello again")
	mustState(t, m, "u1", StateAwaitingTopics)
	require.Equal(t, msgWelcome, deliverer.last())
}

func TestToggleAudio(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(&fakeRunner{})
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "/audio")

	sess, _ := m.Session("u1")
	require.True(t, sess.Profile.WantsAudio)

	m.HandleMessage(ctx, "u1", "/audio")
	require.False(t, sess.Profile.WantsAudio)
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	m, deliverer := newTestManager(&fakeRunner{})
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "/frobnicate")

	require.Equal(t, msgUnknownCommand, deliverer.last())
}

func TestPanicInPipelineYieldsGenericError(t *testing.T) {
	t.Parallel()

	m, deliverer := newTestManager(panicRunner{})
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")
	m.HandleMessage(ctx, "u1", "tech")
	m.HandleMessage(ctx, "u1", "/briefing")

	require.Equal(t, msgGenericError, deliverer.last())
	mustState(t, m, "u1", StateReady)
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, domain.BriefingRequest, domain.Profile) domain.Outcome {
	panic("scorer exploded")
}

func TestExpireRemovesIdleSessions(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(&fakeRunner{})
	ctx := context.Background()
	m.HandleMessage(ctx, "u1", "hello")

	sess, _ := m.Session("u1")
	sess.mu.Lock()
	sess.LastActivity = time.Now().UTC().Add(-2 * time.Hour)
	sess.mu.Unlock()

	require.Equal(t, 1, m.Expire(time.Hour))
	_, ok := m.Session("u1")
	require.False(t, ok)
}

func TestParseCommands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		kind CommandKind
		args string
	}{
		{"/topics tech, science", CmdSetTopics, "tech, science"},
		{"/briefing", CmdBriefing, ""},
		{"/BRIEFING space", CmdBriefing, "space"},
		{"/audio", CmdToggleAudio, ""},
		{"/pref", CmdShowPreferences, ""},
		{"/stats", CmdShowStats, ""},
		{"/clear", CmdClearHistory, ""},
		{"/stop", CmdStop, ""},
		{"/bogus", CmdUnknown, "/bogus"},
		{"tell me about rockets", CmdAdHocQuery, "tell me about rockets"},
	}

	for _, tc := range cases {
		got := Parse(tc.in)
		require.Equal(t, tc.kind, got.Kind, "input %q", tc.in)
		require.Equal(t, tc.args, got.Args, "input %q", tc.in)
	}
}
