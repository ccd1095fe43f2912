package autobid

import "strings"

// MatchType is the keyword-targeting mode controlling how loosely a
// configured keyword matches an incoming query
type MatchType string

const (
	// MatchExact requires the query to equal the keyword, case-insensitively
	MatchExact MatchType = "exact"
	// MatchPhrase requires the keyword to appear as a contiguous phrase
	// within the query
	MatchPhrase MatchType = "phrase"
	// MatchBroad requires any token-level overlap between query and keyword
	MatchBroad MatchType = "broad"
)

// specificity orders match types for tie-breaking: exact > phrase > broad
func (m MatchType) specificity() int {
	switch m {
	case MatchExact:
		return 3
	case MatchPhrase:
		return 2
	case MatchBroad:
		return 1
	}
	return 0
}

// Matches reports whether the keyword matches the query under the given
// match type. All comparisons are case-insensitive.
func (m MatchType) Matches(query, keyword string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if q == "" || kw == "" {
		return false
	}

	switch m {
	case MatchExact:
		return q == kw
	case MatchPhrase:
		return strings.Contains(q, kw)
	case MatchBroad:
		kwTokens := strings.Fields(kw)
		for _, qt := range strings.Fields(q) {
			for _, kt := range kwTokens {
				if qt == kt {
					return true
				}
			}
		}
		return false
	}
	return false
}

// Match is a keyword that matched an incoming query
type Match struct {
	Keyword Keyword
	Score   float64
}

// matchScore grades how tightly the keyword bound to the query. Exact and
// phrase matches are fixed grades; broad matches scale with the fraction of
// keyword tokens present in the query.
func matchScore(m MatchType, query, keyword string) float64 {
	switch m {
	case MatchExact:
		return 1.0
	case MatchPhrase:
		return 0.8
	case MatchBroad:
		kwTokens := strings.Fields(strings.ToLower(keyword))
		if len(kwTokens) == 0 {
			return 0
		}
		qTokens := map[string]bool{}
		for _, qt := range strings.Fields(strings.ToLower(query)) {
			qTokens[qt] = true
		}
		hit := 0
		for _, kt := range kwTokens {
			if qTokens[kt] {
				hit++
			}
		}
		return 0.3 + 0.3*float64(hit)/float64(len(kwTokens))
	}
	return 0
}

// BestMatch returns the strongest matching active keyword for the query, or
// nil when no keyword matches. Highest priority wins; among equal priority,
// exact beats phrase beats broad; remaining ties keep configuration order.
func (s *Settings) BestMatch(query string) *Match {
	var best *Match
	for _, kw := range s.Keywords {
		if kw.Status != KeywordStatusActive {
			continue
		}
		if !kw.MatchType.Matches(query, kw.Keyword) {
			continue
		}
		candidate := &Match{Keyword: kw, Score: matchScore(kw.MatchType, query, kw.Keyword)}
		if best == nil {
			best = candidate
			continue
		}
		if kw.Priority > best.Keyword.Priority {
			best = candidate
			continue
		}
		if kw.Priority == best.Keyword.Priority &&
			kw.MatchType.specificity() > best.Keyword.MatchType.specificity() {
			best = candidate
		}
	}
	return best
}
