package shared

import "github.com/google/uuid"

// SelectionResult represents the outcome of finalizing an auction
type SelectionResult struct {
	SearchID     uuid.UUID
	BidID        uuid.UUID
	RewardAmount int64
	AutoSelected bool
}
