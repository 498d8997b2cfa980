package domain

import "time"

// Window selects the recency bound applied to a search attempt.
type Window int

const (
	WindowPrimary Window = iota
	WindowFallback
)

// String returns the wire name used by search providers.
func (w Window) String() string {
	if w == WindowFallback {
		return "fallback"
	}
	return "primary"
}

// RawSource is one search hit as produced by the search collaborator.
// Immutable once fetched.
type RawSource struct {
	ID        string
	URL       string
	Title     string
	Domain    string
	RawText   string
	Topic     string
	FetchedAt time.Time
}

// DropReason explains why a source was not kept after filtering.
type DropReason string

const (
	DropOffAllowList DropReason = "off-allow-list"
	DropDuplicate    DropReason = "duplicate-of"
)

// CanonicalSource is a RawSource after dedup, carrying the keep decision.
type CanonicalSource struct {
	RawSource
	Fingerprint string
	Kept        bool
	Reason      DropReason
	DuplicateOf string
}

// EntityCategory classifies a detected named entity.
type EntityCategory string

const (
	EntityPerson  EntityCategory = "person"
	EntityOrg     EntityCategory = "org"
	EntityPlace   EntityCategory = "place"
	EntityGeneric EntityCategory = "generic"
)

// Entity is one named entity occurrence inside a sentence.
type Entity struct {
	Text     string
	Category EntityCategory
}

// FactCategory classifies a factual pattern match.
type FactCategory string

const (
	FactPercent  FactCategory = "percent"
	FactMonetary FactCategory = "monetary"
	FactDate     FactCategory = "date"
)

// Fact is one factual-pattern occurrence inside a sentence.
type Fact struct {
	Text     string
	Category FactCategory
}

// Sentence is a segmented unit of a kept source, enriched with detected
// entities and facts. Stateless once produced.
type Sentence struct {
	Text         string
	SourceID     string
	SourceOrder  int
	Offset       int
	Entities     []Entity
	Facts        []Fact
	TopicMatch   bool
	RecencyHours float64
	FetchedAt    time.Time
	Attribution  bool
}

// ScoredSentence pairs a sentence with its deterministic importance score.
type ScoredSentence struct {
	Sentence
	Score float64
}

// Selection is the ordered subset of sentences handed to synthesis. The
// concatenated text length never exceeds the configured budget.
type Selection struct {
	Sentences  []ScoredSentence
	TotalChars int
}

// Texts returns the sentence texts in selection order.
func (s Selection) Texts() []string {
	out := make([]string, len(s.Sentences))
	for i, sent := range s.Sentences {
		out[i] = sent.Text
	}
	return out
}

// BriefingRequest is created by the session layer and consumed exactly once
// by the pipeline coordinator.
type BriefingRequest struct {
	ID          string
	UserID      string
	Topics      []string
	RequestedAt time.Time
}

// Profile carries the per-user settings the pipeline needs downstream.
type Profile struct {
	UserID     string
	Name       string
	Topics     []string
	WantsAudio bool
	Language   string
}

// OutcomeStatus enumerates the terminal states of one briefing request.
type OutcomeStatus string

const (
	StatusDelivered      OutcomeStatus = "delivered"
	StatusPartialFailure OutcomeStatus = "partial_failure"
	StatusFailed         OutcomeStatus = "failed"
)

// Outcome is the single terminal result the coordinator emits per request.
type Outcome struct {
	Status    OutcomeStatus
	Selection Selection
	Degraded  []string
	Err       error
}

// BriefingRecord is what the preference store keeps per delivered brief.
type BriefingRecord struct {
	RequestID   string
	UserID      string
	Topics      []string
	Status      OutcomeStatus
	Chars       int
	DeliveredAt time.Time
}
