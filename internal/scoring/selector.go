package scoring

import (
	"sort"
	"strings"
	"unicode/utf8"

	"newsbrief/internal/domain"
)

// Selector picks the highest-scored sentences that fit the character budget.
type Selector struct {
	budget int
}

// NewSelector builds a selector with the configured budget.
func NewSelector(budget int) *Selector {
	return &Selector{budget: budget}
}

// Select runs a greedy knapsack over the ranked sentences: iterate in rank
// order and accept every sentence that still fits, skipping (not stopping
// on) any that would overflow so smaller later sentences can fill the gap.
//
// The accepted set is re-ordered by (source, offset) afterwards to restore
// coherent reading order before synthesis.
func (s *Selector) Select(scored []domain.ScoredSentence) domain.Selection {
	ranked := make([]domain.ScoredSentence, len(scored))
	copy(ranked, scored)
	SortByRank(ranked)

	var picked []domain.ScoredSentence
	total := 0
	for _, cand := range ranked {
		n := utf8.RuneCountInString(cand.Text)
		if total+n > s.budget {
			continue
		}
		picked = append(picked, cand)
		total += n
	}

	if len(picked) == 0 && len(ranked) > 0 {
		// Every candidate alone exceeds the budget: keep the shortest one,
		// cut back to a word boundary rather than mid-word.
		shortest := shortestOf(ranked)
		shortest.Text = truncateAtWord(shortest.Text, s.budget)
		picked = []domain.ScoredSentence{shortest}
		total = utf8.RuneCountInString(shortest.Text)
	}

	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].SourceOrder != picked[j].SourceOrder {
			return picked[i].SourceOrder < picked[j].SourceOrder
		}
		return picked[i].Offset < picked[j].Offset
	})

	return domain.Selection{Sentences: picked, TotalChars: total}
}

func shortestOf(ranked []domain.ScoredSentence) domain.ScoredSentence {
	best := ranked[0]
	bestLen := utf8.RuneCountInString(best.Text)
	for _, cand := range ranked[1:] {
		if n := utf8.RuneCountInString(cand.Text); n < bestLen {
			best, bestLen = cand, n
		}
	}
	return best
}

func truncateAtWord(text string, budget int) string {
	if utf8.RuneCountInString(text) <= budget {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:budget])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:")
}
