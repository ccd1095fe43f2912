package quality

// CommercialValue is the scorer's coarse tier for a query's commercial intent
type CommercialValue string

const (
	CommercialValueLow    CommercialValue = "low"
	CommercialValueMedium CommercialValue = "medium"
	CommercialValueHigh   CommercialValue = "high"
)

// Report is the quality evaluation of a search query. Fallback is set when
// the report was produced by the local heuristic instead of the scorer
// service, so degraded scores stay distinguishable downstream.
type Report struct {
	Score           int             `json:"score"`
	CommercialValue CommercialValue `json:"commercial_value"`
	Keywords        []string        `json:"keywords"`
	Suggestions     []string        `json:"suggestions"`
	Fallback        bool            `json:"fallback,omitempty"`
}

// FallbackReport builds a local length-based estimate for when the scorer
// service is unavailable. Longer queries tend to carry more intent; the
// score is clamped to a conservative 10-60 band and the tier pinned low so
// a scorer outage never inflates auction quality.
func FallbackReport(query string) *Report {
	score := len([]rune(query)) * 3
	if score < 10 {
		score = 10
	}
	if score > 60 {
		score = 60
	}
	return &Report{
		Score:           score,
		CommercialValue: CommercialValueLow,
		Fallback:        true,
	}
}
