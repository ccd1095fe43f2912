package outbound

import (
	"context"
	"time"

	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/settlement"

	"github.com/google/uuid"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create persists a new auction together with its initial bid set
	Create(ctx context.Context, a *auction.Auction) error

	// GetBySearchID retrieves an auction by its search ID
	GetBySearchID(ctx context.Context, searchID uuid.UUID) (*auction.Auction, error)

	// GetByBidID retrieves the auction owning the given bid
	GetByBidID(ctx context.Context, bidID uuid.UUID) (*auction.Auction, error)

	// Finalize atomically transitions the auction from active to completed
	// with the given winning bid. Returns ErrAuctionAlreadyFinalized when
	// the auction already reached a terminal state.
	Finalize(ctx context.Context, searchID, bidID uuid.UUID) error
}

// TransactionRepository defines the interface for transaction data operations.
// Transactions are an audit trail: they are never deleted.
type TransactionRepository interface {
	// Create persists a new transaction in PRIMARY_COMPLETE state
	Create(ctx context.Context, tx *settlement.Transaction) error

	// GetByID retrieves a transaction by trade ID
	GetByID(ctx context.Context, tradeID uuid.UUID) (*settlement.Transaction, error)

	// GetByBidID retrieves the transaction for a winning bid, used both for
	// idempotent primary issuance and for receipt lookups
	GetByBidID(ctx context.Context, bidID uuid.UUID) (*settlement.Transaction, error)

	// MarkClicked atomically transitions PRIMARY_COMPLETE to
	// PENDING_VERIFICATION and stamps the click time. Returns
	// ErrClickAlreadyRecorded when the transaction already left
	// PRIMARY_COMPLETE.
	MarkClicked(ctx context.Context, tradeID uuid.UUID, clickedAt time.Time, vAtf float64) error

	// Settle atomically transitions PENDING_VERIFICATION to the terminal
	// state implied by the record and persists it. Returns ErrAlreadySettled
	// when a settlement was already recorded (write-once).
	Settle(ctx context.Context, tradeID uuid.UUID, rec *settlement.SettlementRecord) (*settlement.Transaction, error)
}

// AutoBidRepository defines the interface for advertiser auto-bid settings
type AutoBidRepository interface {
	// GetSettings retrieves an advertiser's auto-bid settings
	GetSettings(ctx context.Context, advertiserID uuid.UUID) (*autobid.Settings, error)

	// SaveSettings creates or replaces an advertiser's auto-bid settings
	SaveSettings(ctx context.Context, settings *autobid.Settings) error

	// ListEnabled retrieves all advertisers with auto-bidding enabled
	ListEnabled(ctx context.Context) ([]*autobid.Settings, error)

	// ReserveSpend decrements the advertiser's remaining daily budget by
	// amount if and only if sufficient budget remains. The conditional
	// decrement is a single atomic operation so concurrent auction wins
	// cannot overspend. Returns ErrBudgetExhausted on insufficient budget.
	ReserveSpend(ctx context.Context, advertiserID uuid.UUID, amount int64) error
}
