package filter

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"newsbrief/internal/domain"
	"newsbrief/internal/facts"
)

// Navigation, credit, and boilerplate lines that carry no news value.
var noiseExprs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(source|credit|photo|advertisement)\b`),
	regexp.MustCompile(`(?i)^(read more|see also|subscribe|sign up)`),
	regexp.MustCompile(`(?i)(newsletter|cookie policy|all rights reserved)`),
	regexp.MustCompile(`^\s*\d+\.?\s*$`),
}

// Segment is one sentence with its byte offset in the source text.
type Segment struct {
	Text   string
	Offset int
}

// Split segments source text into sentences. A sentence ends at '.', '!' or
// '?' followed by whitespace. Noise lines are skipped entirely; length-based
// deprioritization is left to the scorer so fragments are weighted down, not
// silently discarded.
func Split(text string) []Segment {
	var out []Segment
	start := -1

	runes := []rune(text)
	offset := 0
	byteAt := make([]int, len(runes)+1)
	for i, r := range runes {
		byteAt[i] = offset
		offset += len(string(r))
	}
	byteAt[len(runes)] = offset

	flush := func(from, to int) {
		raw := string(runes[from:to])
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || isNoise(trimmed) {
			return
		}
		lead := 0
		for _, r := range raw {
			if !unicode.IsSpace(r) {
				break
			}
			lead += len(string(r))
		}
		out = append(out, Segment{Text: trimmed, Offset: byteAt[from] + lead})
	}

	for i, r := range runes {
		if start < 0 && !unicode.IsSpace(r) {
			start = i
		}
		if start < 0 {
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			next := i + 1
			if next >= len(runes) || unicode.IsSpace(runes[next]) {
				flush(start, next)
				start = -1
			}
		}
		if r == '\n' {
			flush(start, i)
			start = -1
		}
	}
	if start >= 0 {
		flush(start, len(runes))
	}

	return out
}

func isNoise(sentence string) bool {
	for _, expr := range noiseExprs {
		if expr.MatchString(sentence) {
			return true
		}
	}
	return false
}

// Sentences turns one kept source into detector-enriched sentences ready for
// scoring. The source order index preserves reading order across sources
// when the selection is rebuilt later.
func Sentences(src domain.CanonicalSource, sourceOrder int, topics []string, now time.Time) []domain.Sentence {
	segments := Split(src.RawText)
	recency := now.Sub(src.FetchedAt).Hours()
	if recency < 0 {
		recency = 0
	}
	match := topicMatches(src.Topic, topics)

	out := make([]domain.Sentence, 0, len(segments))
	for _, seg := range segments {
		det := facts.Detect(seg.Text)
		out = append(out, domain.Sentence{
			Text:         seg.Text,
			SourceID:     src.ID,
			SourceOrder:  sourceOrder,
			Offset:       seg.Offset,
			Entities:     det.Entities,
			Facts:        det.Facts,
			TopicMatch:   match,
			RecencyHours: recency,
			FetchedAt:    src.FetchedAt,
			Attribution:  det.Attribution,
		})
	}
	return out
}

func topicMatches(sourceTopic string, requested []string) bool {
	for _, t := range requested {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(sourceTopic)) {
			return true
		}
	}
	return false
}
