package outbound

import (
	"context"

	"intent-exchange-service/internal/domain/quality"
)

// QualityScorer evaluates the commercial quality of a search query. The
// scoring service is an external collaborator; implementations degrade to a
// local fallback estimate rather than blocking the auction pipeline.
type QualityScorer interface {
	// Score returns the quality report for a query. Implementations must
	// mark fallback-produced reports via Report.Fallback.
	Score(ctx context.Context, query string) (*quality.Report, error)
}

// SubmissionQuota enforces the per-user daily submission limit on new trades
type SubmissionQuota interface {
	// Allow consumes one submission slot for the user, returning
	// ErrQuotaExceeded when the daily limit is already spent.
	Allow(ctx context.Context, userID string) error
}
