// Package facts detects named entities and factual patterns in sentence
// text. Detection is pure and deterministic: the same text always yields the
// same entities and facts, which keeps downstream scoring reproducible.
package facts

import (
	"regexp"
	"strings"

	"newsbrief/internal/domain"
)

var (
	percentExpr  = regexp.MustCompile(`[+-]?\d+(?:[.,]\d+)?\s*%`)
	monetaryExpr = regexp.MustCompile(`(?i)(?:[$€£]\s?\d+(?:[.,]\d+)?(?:\s*(?:million|billion|trillion))?|\d+(?:[.,]\d+)?\s*(?:million|billion|trillion)?\s*(?:dollars|euros|pounds))`)
	dateExpr     = regexp.MustCompile(`(?i)(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:,\s*\d{4})?|\b(?:19|20)\d{2}\b)`)

	// Acronyms and product codes such as NASA, GPT-5, A380.
	acronymExpr = regexp.MustCompile(`^[A-Z]{2,}(?:-?\d+[A-Za-z]*)?$`)
	// Mixed-capital tokens such as OpenAI or McDonald.
	mixedCapExpr = regexp.MustCompile(`^[A-Z][a-z]*[A-Z][A-Za-z]*$`)
	titleExpr    = regexp.MustCompile(`^[A-Z][a-z]+$`)

	wordExpr = regexp.MustCompile(`[\p{L}\d$€£%-]+`)
)

var orgSuffixes = map[string]struct{}{
	"Inc": {}, "Corp": {}, "Ltd": {}, "Labs": {}, "Group": {},
	"Bank": {}, "University": {}, "Ministry": {}, "Agency": {},
	"Institute": {}, "Company": {}, "Commission": {},
}

var honorifics = map[string]struct{}{
	"Mr": {}, "Mrs": {}, "Ms": {}, "Dr": {}, "President": {},
	"Minister": {}, "CEO": {}, "Chancellor": {}, "Senator": {},
	"Governor": {}, "Professor": {},
}

var knownPlaces = map[string]struct{}{
	"France": {}, "Paris": {}, "Europe": {}, "Germany": {}, "Berlin": {},
	"China": {}, "Beijing": {}, "Washington": {}, "London": {}, "Brussels": {},
	"America": {}, "Japan": {}, "Tokyo": {}, "India": {}, "Russia": {},
	"Ukraine": {}, "York": {},
}

var attributionCues = []string{
	"according to", "said", "told", "stated", "cited", "selon",
}

// Detection is the full result of analyzing one sentence.
type Detection struct {
	Entities    []domain.Entity
	Facts       []domain.Fact
	Attribution bool
}

// Detect finds entities, factual patterns, and attribution cues in text.
func Detect(text string) Detection {
	return Detection{
		Entities:    Entities(text),
		Facts:       Facts(text),
		Attribution: HasAttribution(text),
	}
}

// Facts matches percentage, monetary, and date patterns. These are the
// hallucination-resistance signal: sentences carrying them are preferred by
// the scorer over vaguer prose.
func Facts(text string) []domain.Fact {
	var out []domain.Fact
	for _, m := range percentExpr.FindAllString(text, -1) {
		out = append(out, domain.Fact{Text: m, Category: domain.FactPercent})
	}
	for _, m := range monetaryExpr.FindAllString(text, -1) {
		if percentExpr.MatchString(m) {
			continue
		}
		out = append(out, domain.Fact{Text: m, Category: domain.FactMonetary})
	}
	for _, m := range dateExpr.FindAllString(text, -1) {
		out = append(out, domain.Fact{Text: m, Category: domain.FactDate})
	}
	return out
}

// HasAttribution reports whether the sentence quotes or credits a source.
func HasAttribution(text string) bool {
	if strings.Count(text, `"`) >= 2 || strings.Count(text, "“") >= 1 {
		return true
	}
	lower := strings.ToLower(text)
	for _, cue := range attributionCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

// Entities extracts named entities using capitalization heuristics: runs of
// title-case words become person/org/place candidates, and acronym or
// mixed-capital tokens (NASA, GPT-5, OpenAI) are treated as organizations.
// The first word of a sentence only counts when it matches one of the
// stronger token shapes, since English capitalizes it regardless.
func Entities(text string) []domain.Entity {
	words := wordExpr.FindAllString(text, -1)
	var out []domain.Entity

	i := 0
	for i < len(words) {
		word := words[i]

		if acronymExpr.MatchString(word) || mixedCapExpr.MatchString(word) {
			if _, honorific := honorifics[word]; !honorific {
				out = append(out, domain.Entity{Text: word, Category: domain.EntityOrg})
			}
			i++
			continue
		}

		if !titleExpr.MatchString(word) {
			i++
			continue
		}

		// Collect the full title-case run starting here.
		j := i
		for j < len(words) && (titleExpr.MatchString(words[j]) || isOrgSuffix(words[j])) {
			j++
		}
		run := words[i:j]

		if len(run) == 1 {
			out = appendSingle(out, run[0], i == 0, prev(words, i))
			i = j
			continue
		}

		out = append(out, domain.Entity{
			Text:     strings.Join(run, " "),
			Category: classifyRun(run, prev(words, i)),
		})
		i = j
	}

	return out
}

func appendSingle(out []domain.Entity, word string, sentenceStart bool, before string) []domain.Entity {
	if _, ok := knownPlaces[word]; ok {
		return append(out, domain.Entity{Text: word, Category: domain.EntityPlace})
	}
	if _, ok := honorifics[before]; ok {
		return append(out, domain.Entity{Text: word, Category: domain.EntityPerson})
	}
	if sentenceStart {
		return out
	}
	if _, ok := honorifics[word]; ok {
		return out
	}
	return append(out, domain.Entity{Text: word, Category: domain.EntityGeneric})
}

func classifyRun(run []string, before string) domain.EntityCategory {
	for _, w := range run {
		if isOrgSuffix(w) {
			return domain.EntityOrg
		}
	}
	if _, ok := honorifics[before]; ok {
		return domain.EntityPerson
	}
	if _, ok := honorifics[run[0]]; ok {
		return domain.EntityPerson
	}
	if _, ok := knownPlaces[run[0]]; ok {
		return domain.EntityPlace
	}
	if _, ok := knownPlaces[run[len(run)-1]]; ok {
		return domain.EntityPlace
	}
	if len(run) <= 3 {
		return domain.EntityPerson
	}
	return domain.EntityGeneric
}

func isOrgSuffix(word string) bool {
	_, ok := orgSuffixes[word]
	return ok
}

func prev(words []string, i int) string {
	if i == 0 {
		return ""
	}
	return words[i-1]
}
