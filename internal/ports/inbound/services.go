package inbound

import (
	"context"

	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/quality"
	"intent-exchange-service/internal/domain/settlement"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionService defines the interface for auction operations
type AuctionService interface {
	// StartAuction validates the query, evaluates its quality, opens an
	// auction and solicits bids. Every returned auction carries at least
	// one bid (a synthesized fallback when no advertiser bids).
	StartAuction(ctx context.Context, req StartAuctionRequest) (*StartAuctionResult, error)

	// GetAuction retrieves an auction by search ID
	GetAuction(ctx context.Context, searchID uuid.UUID) (*auction.Auction, error)

	// GetBid retrieves a bid and its owning auction
	GetBid(ctx context.Context, bidID uuid.UUID) (*auction.Auction, *auction.Bid, error)

	// SelectBid finalizes the auction with the chosen bid. At most one
	// selection succeeds per auction.
	SelectBid(ctx context.Context, searchID, bidID uuid.UUID) (*shared.SelectionResult, error)
}

// SettlementService defines the interface for the two-phase reward pipeline
type SettlementService interface {
	// TrackClick issues the primary reward (idempotently per bid) and
	// registers the click, starting the dwell clock. Enforces the caller's
	// daily submission quota.
	TrackClick(ctx context.Context, req TrackClickRequest) (*ClickResult, error)

	// RegisterClick transitions an existing transaction from
	// PRIMARY_COMPLETE to PENDING_VERIFICATION
	RegisterClick(ctx context.Context, tradeID uuid.UUID) error

	// RecordReturn computes and persists the write-once settlement decision
	// from the reported dwell time
	RecordReturn(ctx context.Context, req RecordReturnRequest) (*settlement.SettlementRecord, error)

	// GetReceipt retrieves the full transaction for a winning bid
	GetReceipt(ctx context.Context, bidID uuid.UUID) (*settlement.Transaction, error)
}

// AutoBidService defines the interface for the advertiser policy engine
type AutoBidService interface {
	// Evaluate decides whether and how much the advertiser bids against an
	// incoming query
	Evaluate(ctx context.Context, req EvaluateRequest) (*BidDecision, error)

	// Solicit runs Evaluate for every enabled advertiser concurrently and
	// returns the resulting bids
	Solicit(ctx context.Context, query string, qualityScore int) []*auction.Bid

	// GetSettings retrieves an advertiser's auto-bid settings
	GetSettings(ctx context.Context, advertiserID uuid.UUID) (*autobid.Settings, error)

	// UpdateSettings replaces the advertiser's policy knobs
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*autobid.Settings, error)

	// UpdateKeywords replaces the advertiser's keyword list
	UpdateKeywords(ctx context.Context, advertiserID uuid.UUID, keywords []autobid.Keyword) (*autobid.Settings, error)

	// UpdateExcludedKeywords adds or removes one excluded keyword
	UpdateExcludedKeywords(ctx context.Context, req ExcludedKeywordRequest) (*autobid.Settings, error)
}

// request to start an auction
type StartAuctionRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

// StartAuctionResult pairs the created auction with its quality report
type StartAuctionResult struct {
	Auction       *auction.Auction `json:"auction"`
	QualityReport *quality.Report  `json:"quality_report"`
}

// request to track a click on a winning bid
type TrackClickRequest struct {
	UserID   string    `json:"user_id"`
	SearchID uuid.UUID `json:"search_id"`
	BidID    uuid.UUID `json:"bid_id"`
	VAtf     float64   `json:"v_atf"`
}

// ClickResult is the outcome of registering a click
type ClickResult struct {
	TradeID      uuid.UUID `json:"trade_id"`
	FinalURL     string    `json:"final_url"`
	RewardAmount int64     `json:"reward_amount"`
}

// request to record the user's return from the advertiser site
type RecordReturnRequest struct {
	TradeID          uuid.UUID `json:"trade_id"`
	DwellTimeSeconds float64   `json:"dwell_time"`
}

// request to evaluate an advertiser's auto-bid policy against a query
type EvaluateRequest struct {
	AdvertiserID    uuid.UUID `json:"advertiser_id"`
	Query           string    `json:"query"`
	QualityScore    int       `json:"quality_score"`
	CompetitorCount int       `json:"competitor_count"`
}

// AbstainReason explains why an advertiser sat an auction out
type AbstainReason string

const (
	AbstainDisabled     AbstainReason = "disabled"
	AbstainLowQuality   AbstainReason = "quality_below_floor"
	AbstainExcluded     AbstainReason = "excluded_keyword"
	AbstainNoMatch      AbstainReason = "no_keyword_match"
	AbstainNoBudget     AbstainReason = "budget_exhausted"
)

// BidDecision is the outcome of one policy evaluation: a bid amount, or an
// explicit abstention with its reason
type BidDecision struct {
	Abstain   bool          `json:"abstain"`
	Reason    AbstainReason `json:"reason,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	Keyword   string        `json:"keyword,omitempty"`
	MatchType string        `json:"match_type,omitempty"`
}

// request to replace an advertiser's policy knobs
type UpdateSettingsRequest struct {
	AdvertiserID     uuid.UUID `json:"advertiser_id"`
	DisplayName      string    `json:"display_name"`
	LandingURL       string    `json:"landing_url"`
	Bonus            string    `json:"bonus"`
	IsEnabled        bool      `json:"is_enabled"`
	DailyBudget      int64     `json:"daily_budget"`
	MaxBidPerKeyword int64     `json:"max_bid_per_keyword"`
	MinQualityScore  int       `json:"min_quality_score"`
}

// ExcludedKeywordAction selects add or remove
type ExcludedKeywordAction string

const (
	ExcludedKeywordAdd    ExcludedKeywordAction = "add"
	ExcludedKeywordRemove ExcludedKeywordAction = "remove"
)

// request to mutate an advertiser's excluded keyword set
type ExcludedKeywordRequest struct {
	AdvertiserID uuid.UUID             `json:"advertiser_id"`
	Action       ExcludedKeywordAction `json:"action"`
	Keyword      string                `json:"keyword"`
}
