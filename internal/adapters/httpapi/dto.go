package httpapi

import (
	"time"

	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/quality"
	"intent-exchange-service/internal/domain/settlement"

	"github.com/google/uuid"
)

type startSearchRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Query  string `json:"query"`
}

type selectBidRequest struct {
	SearchID uuid.UUID `json:"search_id" binding:"required"`
	BidID    uuid.UUID `json:"bid_id" binding:"required"`
}

type trackClickRequest struct {
	UserID   string    `json:"user_id" binding:"required"`
	SearchID uuid.UUID `json:"search_id" binding:"required"`
	BidID    uuid.UUID `json:"bid_id" binding:"required"`
	VAtf     float64   `json:"v_atf"`
}

type verifyReturnRequest struct {
	TradeID   uuid.UUID `json:"trade_id" binding:"required"`
	DwellTime float64   `json:"dwell_time"`
}

type updateSettingsRequest struct {
	DisplayName      string `json:"display_name"`
	LandingURL       string `json:"landing_url"`
	Bonus            string `json:"bonus"`
	IsEnabled        bool   `json:"is_enabled"`
	DailyBudget      int64  `json:"daily_budget"`
	MaxBidPerKeyword int64  `json:"max_bid_per_keyword"`
	MinQualityScore  int    `json:"min_quality_score"`
}

type keywordPayload struct {
	Keyword   string `json:"keyword" binding:"required"`
	Priority  int    `json:"priority"`
	MatchType string `json:"match_type"`
	Status    string `json:"status"`
}

type updateKeywordsRequest struct {
	Keywords []keywordPayload `json:"keywords" binding:"required"`
}

type excludedKeywordRequest struct {
	Action  string `json:"action" binding:"required"`
	Keyword string `json:"keyword" binding:"required"`
}

type bidResponse struct {
	BidID        uuid.UUID  `json:"bid_id"`
	SearchID     uuid.UUID  `json:"search_id"`
	BuyerName    string     `json:"buyer_name"`
	Price        int64      `json:"price"`
	Bonus        string     `json:"bonus,omitempty"`
	LandingURL   string     `json:"landing_url"`
	Type         string     `json:"type"`
	AdvertiserID *uuid.UUID `json:"advertiser_id,omitempty"`
	Timestamp    string     `json:"timestamp"`
}

type auctionResponse struct {
	SearchID     uuid.UUID     `json:"search_id"`
	Query        string        `json:"query"`
	QualityScore int           `json:"quality_score"`
	Status       string        `json:"status"`
	Bids         []bidResponse `json:"bids"`
	WinningBidID *uuid.UUID    `json:"winning_bid_id,omitempty"`
	ExpiresAt    string        `json:"expires_at"`
	CreatedAt    string        `json:"created_at"`
}

type startSearchResponse struct {
	Auction auctionResponse `json:"auction"`
	Quality qualityResponse `json:"quality"`
}

type qualityResponse struct {
	Score           int      `json:"score"`
	CommercialValue string   `json:"commercial_value"`
	Keywords        []string `json:"keywords,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
	Fallback        bool     `json:"fallback"`
}

type selectionResponse struct {
	SearchID     uuid.UUID `json:"search_id"`
	BidID        uuid.UUID `json:"bid_id"`
	RewardAmount int64     `json:"reward_amount"`
	AutoSelected bool      `json:"auto_selected"`
}

type clickResponse struct {
	TradeID      uuid.UUID `json:"trade_id"`
	FinalURL     string    `json:"final_url"`
	RewardAmount int64     `json:"reward_amount"`
}

type settlementResponse struct {
	Decision      string  `json:"decision"`
	SettledAmount int64   `json:"settled_amount"`
	DwellTime     float64 `json:"dwell_time"`
	SettledAt     string  `json:"settled_at"`
}

type receiptResponse struct {
	TradeID         uuid.UUID           `json:"trade_id"`
	SearchID        uuid.UUID           `json:"search_id"`
	BidID           uuid.UUID           `json:"bid_id"`
	Query           string              `json:"query"`
	BuyerName       string              `json:"buyer_name"`
	PrimaryReward   int64               `json:"primary_reward"`
	Status          string              `json:"status"`
	SecondaryReward *int64              `json:"secondary_reward,omitempty"`
	ClickedAt       *string             `json:"clicked_at,omitempty"`
	Settlement      *settlementResponse `json:"settlement,omitempty"`
}

type settingsResponse struct {
	AdvertiserID     uuid.UUID        `json:"advertiser_id"`
	DisplayName      string           `json:"display_name"`
	IsEnabled        bool             `json:"is_enabled"`
	DailyBudget      int64            `json:"daily_budget"`
	SpentToday       int64            `json:"spent_today"`
	RemainingBudget  int64            `json:"remaining_budget"`
	MaxBidPerKeyword int64            `json:"max_bid_per_keyword"`
	MinQualityScore  int              `json:"min_quality_score"`
	ExcludedKeywords []string         `json:"excluded_keywords"`
	Keywords         []keywordPayload `json:"keywords"`
}

func toBidResponse(searchID uuid.UUID, b *auction.Bid) bidResponse {
	resp := bidResponse{
		BidID:      b.ID,
		SearchID:   searchID,
		BuyerName:  b.BuyerName,
		Price:      b.Price,
		Bonus:      b.Bonus,
		LandingURL: b.LandingURL,
		Type:       string(b.Type()),
		Timestamp:  b.Timestamp.UTC().Format(time.RFC3339),
	}
	if advertiserID, ok := b.AdvertiserID(); ok {
		resp.AdvertiserID = &advertiserID
	}
	return resp
}

func toAuctionResponse(a *auction.Auction) auctionResponse {
	bids := make([]bidResponse, 0, len(a.Bids))
	for _, b := range a.Bids {
		bids = append(bids, toBidResponse(a.SearchID, b))
	}

	return auctionResponse{
		SearchID:     a.SearchID,
		Query:        a.Query,
		QualityScore: a.QualityScore,
		Status:       string(a.Status),
		Bids:         bids,
		WinningBidID: a.WinningBidID,
		ExpiresAt:    a.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toQualityResponse(r *quality.Report) qualityResponse {
	return qualityResponse{
		Score:           r.Score,
		CommercialValue: string(r.CommercialValue),
		Keywords:        r.Keywords,
		Suggestions:     r.Suggestions,
		Fallback:        r.Fallback,
	}
}

func toSettlementResponse(rec *settlement.SettlementRecord) *settlementResponse {
	if rec == nil {
		return nil
	}
	return &settlementResponse{
		Decision:      string(rec.Decision),
		SettledAmount: rec.SettledAmount,
		DwellTime:     rec.Metrics.DwellTimeSeconds,
		SettledAt:     rec.SettledAt.UTC().Format(time.RFC3339),
	}
}

func toReceiptResponse(tx *settlement.Transaction) receiptResponse {
	resp := receiptResponse{
		TradeID:         tx.ID,
		SearchID:        tx.SearchID,
		BidID:           tx.BidID,
		Query:           tx.Query,
		BuyerName:       tx.BuyerName,
		PrimaryReward:   tx.PrimaryReward,
		Status:          string(tx.Status),
		SecondaryReward: tx.SecondaryReward,
		Settlement:      toSettlementResponse(tx.Settlement),
	}
	if tx.ClickedAt != nil {
		clickedAt := tx.ClickedAt.UTC().Format(time.RFC3339)
		resp.ClickedAt = &clickedAt
	}
	return resp
}

func toSettingsResponse(s *autobid.Settings) settingsResponse {
	keywords := make([]keywordPayload, 0, len(s.Keywords))
	for _, k := range s.Keywords {
		keywords = append(keywords, keywordPayload{
			Keyword:   k.Keyword,
			Priority:  k.Priority,
			MatchType: string(k.MatchType),
			Status:    string(k.Status),
		})
	}

	excluded := s.ExcludedKeywords
	if excluded == nil {
		excluded = []string{}
	}

	return settingsResponse{
		AdvertiserID:     s.AdvertiserID,
		DisplayName:      s.DisplayName,
		IsEnabled:        s.IsEnabled,
		DailyBudget:      s.DailyBudget,
		SpentToday:       s.SpentToday,
		RemainingBudget:  s.RemainingBudget(),
		MaxBidPerKeyword: s.MaxBidPerKeyword,
		MinQualityScore:  s.MinQualityScore,
		ExcludedKeywords: excluded,
		Keywords:         keywords,
	}
}
