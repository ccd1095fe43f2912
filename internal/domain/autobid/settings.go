package autobid

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeywordStatus controls whether a configured keyword participates in matching
type KeywordStatus string

const (
	KeywordStatusActive KeywordStatus = "active"
	KeywordStatusPaused KeywordStatus = "paused"
)

// Keyword is a single targeting rule owned by an advertiser
type Keyword struct {
	Keyword   string        `json:"keyword"`
	Priority  int           `json:"priority"` // 1-5, 5 is highest
	MatchType MatchType     `json:"match_type"`
	Status    KeywordStatus `json:"status"`
}

// Settings holds an advertiser's auto-bidding policy. Budgets and caps are
// in currency minor units. SpentToday is the cumulative winning spend for
// the current day; it is only ever mutated through the store's conditional
// reserve so parallel auctions cannot overspend.
type Settings struct {
	AdvertiserID     uuid.UUID `json:"advertiser_id"`
	DisplayName      string    `json:"display_name"`
	LandingURL       string    `json:"landing_url"`
	Bonus            string    `json:"bonus,omitempty"`
	IsEnabled        bool      `json:"is_enabled"`
	DailyBudget      int64     `json:"daily_budget"`
	SpentToday       int64     `json:"spent_today"`
	MaxBidPerKeyword int64     `json:"max_bid_per_keyword"`
	MinQualityScore  int       `json:"min_quality_score"`
	ExcludedKeywords []string  `json:"excluded_keywords"`
	Keywords         []Keyword `json:"keywords"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RemainingBudget returns the spend still available today
func (s *Settings) RemainingBudget() int64 {
	remaining := s.DailyBudget - s.SpentToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExcluded reports whether the query contains any excluded keyword,
// case-insensitively.
func (s *Settings) IsExcluded(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, kw := range s.ExcludedKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if q == kw || strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// AddExcludedKeyword appends a keyword to the exclusion list if absent
func (s *Settings) AddExcludedKeyword(keyword string) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return
	}
	for _, existing := range s.ExcludedKeywords {
		if strings.EqualFold(existing, keyword) {
			return
		}
	}
	s.ExcludedKeywords = append(s.ExcludedKeywords, keyword)
	s.UpdatedAt = time.Now()
}

// RemoveExcludedKeyword removes a keyword from the exclusion list
func (s *Settings) RemoveExcludedKeyword(keyword string) {
	keyword = strings.TrimSpace(keyword)
	kept := s.ExcludedKeywords[:0]
	for _, existing := range s.ExcludedKeywords {
		if !strings.EqualFold(existing, keyword) {
			kept = append(kept, existing)
		}
	}
	s.ExcludedKeywords = kept
	s.UpdatedAt = time.Now()
}
