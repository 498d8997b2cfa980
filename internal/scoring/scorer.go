// Package scoring ranks sentences by factual importance and selects the
// highest-value subset under a hard character budget.
package scoring

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"newsbrief/internal/config"
	"newsbrief/internal/domain"
)

const (
	sweetSpotMin = 20
	sweetSpotMax = 200
)

// Scorer computes a deterministic, purely additive importance score per
// sentence. Identical sentence content always yields an identical score.
type Scorer struct {
	cfg       config.ScoringConfig
	cueHigh   []string
	cueMedium []string
	window    time.Duration
}

// NewScorer builds a scorer from configured weights. recencyWindow bounds
// the linear recency decay; sources older than the window get no bonus.
func NewScorer(cfg config.ScoringConfig, recencyWindow time.Duration) *Scorer {
	return &Scorer{
		cfg:       cfg,
		cueHigh:   lowerAll(cfg.CueTermsHigh),
		cueMedium: lowerAll(cfg.CueTermsMedium),
		window:    recencyWindow,
	}
}

// Score computes the weighted sum over the sentence's features.
func (s *Scorer) Score(sent domain.Sentence) float64 {
	score := s.lengthWeight(utf8.RuneCountInString(sent.Text))

	for _, ent := range sent.Entities {
		switch ent.Category {
		case domain.EntityPerson:
			score += s.cfg.EntityPerson
		case domain.EntityOrg:
			score += s.cfg.EntityOrg
		case domain.EntityPlace:
			score += s.cfg.EntityPlace
		default:
			score += s.cfg.EntityGeneric
		}
	}

	for _, fact := range sent.Facts {
		switch fact.Category {
		case domain.FactPercent:
			score += s.cfg.FactPercent
		case domain.FactMonetary:
			score += s.cfg.FactMonetary
		default:
			score += s.cfg.FactDate
		}
	}

	lower := strings.ToLower(sent.Text)
	for _, term := range s.cueHigh {
		if strings.Contains(lower, term) {
			score += s.cfg.CueHigh
		}
	}
	for _, term := range s.cueMedium {
		if strings.Contains(lower, term) {
			score += s.cfg.CueMedium
		}
	}

	if sent.TopicMatch {
		score += s.cfg.TopicMatch
	}
	if sent.Attribution {
		score += s.cfg.Attribution
	}

	score += s.recencyBonus(sent.RecencyHours)
	return score
}

// ScoreAll scores every sentence, leaving input order untouched.
func (s *Scorer) ScoreAll(sentences []domain.Sentence) []domain.ScoredSentence {
	out := make([]domain.ScoredSentence, 0, len(sentences))
	for _, sent := range sentences {
		out = append(out, domain.ScoredSentence{Sentence: sent, Score: s.Score(sent)})
	}
	return out
}

func (s *Scorer) lengthWeight(n int) float64 {
	switch {
	case n >= sweetSpotMin && n <= sweetSpotMax:
		return s.cfg.LengthFit
	case n > sweetSpotMax:
		return s.cfg.LengthLong
	default:
		return s.cfg.LengthShort
	}
}

func (s *Scorer) recencyBonus(hours float64) float64 {
	if s.window <= 0 {
		return 0
	}
	windowHours := s.window.Hours()
	if hours >= windowHours {
		return 0
	}
	return s.cfg.RecencyMax * (1 - hours/windowHours)
}

// SortByRank orders sentences by score descending. Ties break by earlier
// source fetch time, then by original reading position, giving a total
// order with no nondeterminism.
func SortByRank(scored []domain.ScoredSentence) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.Before(b.FetchedAt)
		}
		if a.SourceOrder != b.SourceOrder {
			return a.SourceOrder < b.SourceOrder
		}
		return a.Offset < b.Offset
	})
}

func lowerAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}
