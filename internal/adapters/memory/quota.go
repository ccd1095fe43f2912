package memory

import (
	"context"
	"sync"
	"time"

	"intent-exchange-service/internal/domain/shared"
)

// SubmissionQuota implements outbound.SubmissionQuota with an in-memory
// per-user, per-day counter
type SubmissionQuota struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
	day    string
	now    func() time.Time
}

// NewSubmissionQuota creates a new in-memory quota with the given daily limit
func NewSubmissionQuota(limit int) *SubmissionQuota {
	return &SubmissionQuota{
		limit:  limit,
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// Allow consumes one submission slot for the user. The counter resets when
// the calendar day rolls over.
func (q *SubmissionQuota) Allow(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	today := q.now().Format("2006-01-02")
	if q.day != today {
		q.day = today
		q.counts = make(map[string]int)
	}

	if q.counts[userID] >= q.limit {
		return shared.ErrQuotaExceeded
	}
	q.counts[userID]++
	return nil
}
