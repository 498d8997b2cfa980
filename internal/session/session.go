// Package session holds the per-user state machine that sequences commands
// and briefing requests. All per-user mutable state lives in an explicit
// store keyed by user id; nothing ambient.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsbrief/internal/domain"
	"newsbrief/internal/ports"
)

// State enumerates the session lifecycle.
type State int

const (
	StateNew State = iota
	StateAwaitingTopics
	StateReady
	StateProcessing
	StateError
	StateClosed
)

var topicExpr = regexp.MustCompile(`^[A-Za-z0-9 _-]{1,64}$`)

const (
	msgWelcome        = "Welcome. Send me the topics you want to follow, separated by commas (for example: tech, economy, space)."
	msgTopicsSet      = "Got it. I will brief you on: %s. Send /briefing any time, or just ask a question."
	msgInvalidTopics  = "I could not read those topics. Use letters, digits, spaces, '-' or '_', up to 64 characters each, separated by commas."
	msgAlreadyRunning = "A briefing is already being prepared for you. Please wait for it to finish."
	msgNoNews         = "No news found for your topics right now. Try again later."
	msgGenericError   = "Something went wrong. Please try again in a moment."
	msgUnknownCommand = "Unknown command. Available: /topics, /briefing, /audio, /preferences, /stats, /clear, /stop."
	msgStopped        = "Daily briefs stopped. Send any message to start over."
)

// Session is the per-user mutable record. Exactly one exists per user id.
type Session struct {
	UserID       string
	State        State
	Profile      domain.Profile
	LastActivity time.Time

	mu         sync.Mutex
	processing bool
}

// Runner abstracts the pipeline coordinator for the session layer.
type Runner interface {
	Run(ctx context.Context, req domain.BriefingRequest, profile domain.Profile) domain.Outcome
}

// Manager routes inbound messages to the owning session and mediates every
// state transition. Handler panics are caught here and turned into a generic
// user-visible error; the machine never propagates them.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	pipeline  Runner
	deliverer ports.Deliverer
	store     ports.PreferenceStore
	logger    *slog.Logger
}

// NewManager builds an empty session store.
func NewManager(pipeline Runner, deliverer ports.Deliverer, store ports.PreferenceStore, logger *slog.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		pipeline:  pipeline,
		deliverer: deliverer,
		store:     store,
		logger:    logger,
	}
}

// HandleMessage is the single entry point for inbound user messages.
func (m *Manager) HandleMessage(ctx context.Context, userID, text string) {
	sess := m.session(ctx, userID)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("handler panicked", "user", userID, "panic", r)
			sess.mu.Lock()
			if sess.State == StateProcessing {
				sess.State = StateError
			}
			if sess.State == StateError {
				sess.State = StateReady
			}
			sess.processing = false
			sess.mu.Unlock()
			m.send(ctx, userID, msgGenericError)
		}
	}()

	sess.mu.Lock()
	sess.LastActivity = time.Now().UTC()
	state := sess.State
	sess.mu.Unlock()

	switch state {
	case StateClosed:
		// Explicit stop is terminal for the old session; first contact after
		// that starts a fresh one.
		m.reset(userID)
		m.HandleMessage(ctx, userID, text)
	case StateNew:
		sess.mu.Lock()
		sess.State = StateAwaitingTopics
		sess.mu.Unlock()
		m.send(ctx, userID, msgWelcome)
	case StateAwaitingTopics:
		m.handleTopicList(ctx, sess, text)
	default:
		m.dispatch(ctx, sess, Parse(text))
	}
}

// Session returns the live session for a user, if any.
func (m *Manager) Session(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	return sess, ok
}

// Expire removes sessions idle longer than maxIdle. Inactivity policy is
// driven externally; this only executes it.
func (m *Manager) Expire(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		sess.mu.Lock()
		idle := sess.LastActivity.Before(cutoff) && !sess.processing
		sess.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) session(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess
	}

	sess := &Session{UserID: userID, State: StateNew, Profile: domain.Profile{UserID: userID, Language: "en"}}
	if m.store != nil {
		if profile, found, err := m.store.LoadProfile(ctx, userID); err == nil && found {
			sess.Profile = profile
			sess.State = StateReady
		}
	}
	m.sessions[userID] = sess
	return sess
}

func (m *Manager) reset(userID string) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

func (m *Manager) handleTopicList(ctx context.Context, sess *Session, text string) {
	if cmd := Parse(text); cmd.Kind == CmdStop {
		m.close(ctx, sess)
		return
	}

	topics, err := parseTopics(text)
	if err != nil {
		// Invalid input re-prompts without changing state.
		m.send(ctx, sess.UserID, msgInvalidTopics)
		return
	}

	sess.mu.Lock()
	sess.Profile.Topics = topics
	sess.State = StateReady
	profile := sess.Profile
	sess.mu.Unlock()

	m.persistProfile(ctx, profile)
	m.send(ctx, sess.UserID, fmt.Sprintf(msgTopicsSet, strings.Join(topics, ", ")))
}

func (m *Manager) dispatch(ctx context.Context, sess *Session, cmd Command) {
	switch cmd.Kind {
	case CmdSetTopics:
		m.handleSetTopics(ctx, sess, cmd.Args)
	case CmdBriefing:
		topics := sess.snapshot().Topics
		if cmd.Args != "" {
			topics = []string{cmd.Args}
		}
		m.runBriefing(ctx, sess, topics)
	case CmdAdHocQuery:
		if cmd.Args == "" {
			return
		}
		m.runBriefing(ctx, sess, []string{cmd.Args})
	case CmdToggleAudio:
		m.handleToggleAudio(ctx, sess)
	case CmdShowPreferences:
		m.handleShowPreferences(ctx, sess)
	case CmdShowStats:
		m.handleShowStats(ctx, sess)
	case CmdClearHistory:
		m.handleClearHistory(ctx, sess)
	case CmdStop:
		m.close(ctx, sess)
	case CmdUnknown:
		m.send(ctx, sess.UserID, msgUnknownCommand)
	}
}

// runBriefing guards against concurrent runs for the same user, creates one
// BriefingRequest, and always returns the session to Ready when the pipeline
// reaches its terminal outcome.
func (m *Manager) runBriefing(ctx context.Context, sess *Session, topics []string) {
	if len(topics) == 0 {
		m.send(ctx, sess.UserID, msgWelcome)
		sess.mu.Lock()
		sess.State = StateAwaitingTopics
		sess.mu.Unlock()
		return
	}

	sess.mu.Lock()
	if sess.processing {
		sess.mu.Unlock()
		m.logger.Info("briefing rejected, already processing",
			"user", sess.UserID, "error", domain.ErrConcurrentRequest)
		m.send(ctx, sess.UserID, msgAlreadyRunning)
		return
	}
	sess.processing = true
	sess.State = StateProcessing
	profile := sess.Profile
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.processing = false
		if sess.State == StateProcessing {
			sess.State = StateReady
		}
		sess.mu.Unlock()
	}()

	req := domain.BriefingRequest{
		ID:          uuid.NewString(),
		UserID:      sess.UserID,
		Topics:      topics,
		RequestedAt: time.Now().UTC(),
	}

	outcome := m.pipeline.Run(ctx, req, profile)
	if outcome.Status != domain.StatusFailed {
		return
	}

	switch {
	case errors.Is(outcome.Err, domain.ErrFilterEmptyResult), errors.Is(outcome.Err, domain.ErrSearchEmpty):
		m.send(ctx, sess.UserID, msgNoNews)
	default:
		m.send(ctx, sess.UserID, msgGenericError)
	}
}

func (m *Manager) handleSetTopics(ctx context.Context, sess *Session, args string) {
	topics, err := parseTopics(args)
	if err != nil {
		m.logger.Debug("rejected topic list", "user", sess.UserID, "error", err)
		m.send(ctx, sess.UserID, msgInvalidTopics)
		return
	}

	sess.mu.Lock()
	sess.Profile.Topics = topics
	profile := sess.Profile
	sess.mu.Unlock()

	m.persistProfile(ctx, profile)
	m.send(ctx, sess.UserID, fmt.Sprintf(msgTopicsSet, strings.Join(topics, ", ")))
}

func (m *Manager) handleToggleAudio(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	sess.Profile.WantsAudio = !sess.Profile.WantsAudio
	profile := sess.Profile
	sess.mu.Unlock()

	m.persistProfile(ctx, profile)
	if profile.WantsAudio {
		m.send(ctx, sess.UserID, "Audio briefs enabled.")
	} else {
		m.send(ctx, sess.UserID, "Audio briefs disabled.")
	}
}

func (m *Manager) handleShowPreferences(ctx context.Context, sess *Session) {
	profile := sess.snapshot()
	topics := "none yet"
	if len(profile.Topics) > 0 {
		topics = strings.Join(profile.Topics, ", ")
	}
	audio := "off"
	if profile.WantsAudio {
		audio = "on"
	}
	m.send(ctx, sess.UserID, fmt.Sprintf("Topics: %s\nAudio: %s", topics, audio))
}

func (m *Manager) handleShowStats(ctx context.Context, sess *Session) {
	if m.store == nil {
		m.send(ctx, sess.UserID, "No statistics available.")
		return
	}
	total, delivered, err := m.store.BriefingStats(ctx, sess.UserID)
	if err != nil {
		m.logger.Warn("stats lookup failed", "user", sess.UserID, "error", err)
		m.send(ctx, sess.UserID, msgGenericError)
		return
	}
	m.send(ctx, sess.UserID, fmt.Sprintf("Briefings requested: %d\nDelivered: %d", total, delivered))
}

func (m *Manager) handleClearHistory(ctx context.Context, sess *Session) {
	if m.store != nil {
		if err := m.store.ClearHistory(ctx, sess.UserID); err != nil {
			m.logger.Warn("clear history failed", "user", sess.UserID, "error", err)
			m.send(ctx, sess.UserID, msgGenericError)
			return
		}
	}
	m.send(ctx, sess.UserID, "Briefing history cleared.")
}

func (m *Manager) close(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	sess.State = StateClosed
	sess.mu.Unlock()
	m.send(ctx, sess.UserID, msgStopped)
}

func (m *Manager) persistProfile(ctx context.Context, profile domain.Profile) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveProfile(ctx, profile); err != nil {
		m.logger.Warn("failed to persist profile", "user", profile.UserID, "error", err)
	}
}

func (m *Manager) send(ctx context.Context, userID, text string) {
	if err := m.deliverer.Deliver(ctx, userID, text, ""); err != nil {
		m.logger.Warn("delivery failed", "user", userID, "error", err)
	}
}

func (s *Session) snapshot() domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Profile
}

func parseTopics(text string) ([]string, error) {
	parts := strings.Split(text, ",")
	var topics []string
	for _, part := range parts {
		topic := strings.TrimSpace(part)
		if topic == "" {
			continue
		}
		if !topicExpr.MatchString(topic) {
			return nil, fmt.Errorf("%w: topic %q", domain.ErrInvalidCommand, topic)
		}
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: empty topic list", domain.ErrInvalidCommand)
	}
	return topics, nil
}
