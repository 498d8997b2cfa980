// Package filter normalizes raw search results: it drops sources outside the
// domain allow-list, collapses near-duplicates by content fingerprint, and
// segments kept sources into sentences for scoring.
package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"newsbrief/internal/domain"
)

var nonWordExpr = regexp.MustCompile(`[^a-z0-9 ]+`)
var spaceExpr = regexp.MustCompile(`\s+`)

// Filter applies the allow-list and dedup policy to raw sources.
type Filter struct {
	allowed []string
	logger  *slog.Logger
}

// New builds a filter for the configured domain allow-list.
func New(allowedDomains []string, logger *slog.Logger) *Filter {
	allowed := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed = append(allowed, normalizeDomain(d))
	}
	return &Filter{allowed: allowed, logger: logger}
}

// Apply decides keep/drop for every source. Sources are examined in
// fetch-time order so the earliest instance of duplicated content wins.
// Applying the result's kept set again changes nothing.
func (f *Filter) Apply(sources []domain.RawSource) []domain.CanonicalSource {
	ordered := make([]domain.RawSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FetchedAt.Before(ordered[j].FetchedAt)
	})

	seen := map[string]string{} // fingerprint -> source id
	out := make([]domain.CanonicalSource, 0, len(ordered))

	for _, src := range ordered {
		canon := domain.CanonicalSource{
			RawSource:   src,
			Fingerprint: Fingerprint(src),
		}

		switch {
		case !f.domainAllowed(src.Domain):
			canon.Reason = domain.DropOffAllowList
			f.debug("source dropped", "url", src.URL, "reason", canon.Reason)
		case seen[canon.Fingerprint] != "":
			canon.Reason = domain.DropDuplicate
			canon.DuplicateOf = seen[canon.Fingerprint]
			f.debug("source dropped", "url", src.URL, "reason", canon.Reason, "duplicate_of", canon.DuplicateOf)
		default:
			canon.Kept = true
			seen[canon.Fingerprint] = src.ID
		}

		out = append(out, canon)
	}

	return out
}

// Kept returns only the sources that survived filtering, in fetch order.
func Kept(sources []domain.CanonicalSource) []domain.CanonicalSource {
	out := make([]domain.CanonicalSource, 0, len(sources))
	for _, s := range sources {
		if s.Kept {
			out = append(out, s)
		}
	}
	return out
}

// Fingerprint hashes the normalized source content; sources with no text
// fall back to the normalized URL so empty bodies do not all collide.
func Fingerprint(src domain.RawSource) string {
	text := normalizeText(src.RawText)
	if text == "" {
		text = normalizeText(src.URL)
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (f *Filter) domainAllowed(d string) bool {
	d = normalizeDomain(d)
	for _, allowed := range f.allowed {
		if d == allowed || strings.HasSuffix(d, "."+allowed) {
			return true
		}
	}
	return false
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	return d
}

func normalizeText(text string) string {
	text = strings.ToLower(text)
	text = nonWordExpr.ReplaceAllString(text, " ")
	text = spaceExpr.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func (f *Filter) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
