package settlement

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the financial state of a transaction
type Status string

const (
	// StatusPrimaryComplete means the primary reward has been paid out and
	// the transaction is waiting for the user to click through.
	StatusPrimaryComplete Status = "PRIMARY_COMPLETE"

	// StatusPendingVerification means the click was registered and the dwell
	// clock is running.
	StatusPendingVerification Status = "PENDING_VERIFICATION"

	// StatusSettled means the secondary reward was settled (PASSED or PARTIAL).
	StatusSettled Status = "SETTLED"

	// StatusFailed means the SLA check failed and no secondary reward is due.
	StatusFailed Status = "FAILED"
)

// Transaction is the financial record for one winning bid. It is created
// atomically with primary reward issuance, mutated exactly once more at
// settlement, and never deleted.
type Transaction struct {
	ID              uuid.UUID         `json:"trade_id"`
	SearchID        uuid.UUID         `json:"search_id"`
	BidID           uuid.UUID         `json:"bid_id"`
	Query           string            `json:"query"`
	BuyerName       string            `json:"buyer_name"`
	PrimaryReward   int64             `json:"primary_reward"`
	Status          Status            `json:"status"`
	SecondaryReward *int64            `json:"secondary_reward,omitempty"`
	ClickedAt       *time.Time        `json:"clicked_at,omitempty"`
	VAtf            float64           `json:"v_atf"`
	Settlement      *SettlementRecord `json:"settlement,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// SlaMetrics are the client-observable signals fed into settlement. VAtf
// (above-the-fold visibility at click) is collected as a fraud signal but
// does not affect the payout.
type SlaMetrics struct {
	VAtf             float64 `json:"v_atf"`
	Clicked          bool    `json:"clicked"`
	DwellTimeSeconds float64 `json:"dwell_time_seconds"`
}

// SettlementRecord is the write-once outcome of the secondary settlement
type SettlementRecord struct {
	Decision      Decision   `json:"decision"`
	SettledAmount int64      `json:"settled_amount"`
	SettledAt     time.Time  `json:"settled_at"`
	Metrics       SlaMetrics `json:"metrics"`
}

// IsTerminal returns true once the transaction can no longer change
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusSettled || t.Status == StatusFailed
}

// AwaitingReturn returns true while the dwell clock is running
func (t *Transaction) AwaitingReturn() bool {
	return t.Status == StatusPendingVerification
}

// RegisterClick transitions PRIMARY_COMPLETE -> PENDING_VERIFICATION and
// stamps the click time, which anchors the dwell computation.
func (t *Transaction) RegisterClick(now time.Time) bool {
	if t.Status != StatusPrimaryComplete {
		return false
	}
	t.Status = StatusPendingVerification
	t.ClickedAt = &now
	t.UpdatedAt = now
	return true
}

// ApplySettlement moves the transaction to its terminal state for the given
// record. The caller guarantees write-once semantics through the store.
func (t *Transaction) ApplySettlement(rec *SettlementRecord) bool {
	if t.Status != StatusPendingVerification {
		return false
	}
	if rec.Decision == DecisionFailed {
		t.Status = StatusFailed
	} else {
		t.Status = StatusSettled
	}
	t.Settlement = rec
	t.SecondaryReward = &rec.SettledAmount
	t.UpdatedAt = rec.SettledAt
	return true
}
