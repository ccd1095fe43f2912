package httpapi

import (
	"net/http"

	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/ports/inbound"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler exposes the exchange operations over REST
type Handler struct {
	auctionService    inbound.AuctionService
	settlementService inbound.SettlementService
	autoBidService    inbound.AutoBidService
	logger            zerolog.Logger
}

type HandlerParams struct {
	AuctionService    inbound.AuctionService
	SettlementService inbound.SettlementService
	AutoBidService    inbound.AutoBidService
	Logger            zerolog.Logger
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		auctionService:    params.AuctionService,
		settlementService: params.SettlementService,
		autoBidService:    params.AutoBidService,
		logger:            params.Logger.With().Str("component", "http_handler").Logger(),
	}
}

// StartSearch handles POST /search
func (h *Handler) StartSearch(c *gin.Context) {
	var req startSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.auctionService.StartAuction(c.Request.Context(), inbound.StartAuctionRequest{
		UserID: req.UserID,
		Query:  req.Query,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("Failed to start auction")
		respondError(c, err)
		return
	}

	h.logger.Info().
		Str("search_id", result.Auction.SearchID.String()).
		Int("bid_count", len(result.Auction.Bids)).
		Int("quality_score", result.QualityReport.Score).
		Msg("Auction started")

	c.JSON(http.StatusCreated, startSearchResponse{
		Auction: toAuctionResponse(result.Auction),
		Quality: toQualityResponse(result.QualityReport),
	})
}

// GetAuction handles GET /auction/:searchId
func (h *Handler) GetAuction(c *gin.Context) {
	searchID, err := uuid.Parse(c.Param("searchId"))
	if err != nil {
		respondBadRequest(c, "invalid search id")
		return
	}

	a, err := h.auctionService.GetAuction(c.Request.Context(), searchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAuctionResponse(a))
}

// GetBid handles GET /auction/bid/:bidId
func (h *Handler) GetBid(c *gin.Context) {
	bidID, err := uuid.Parse(c.Param("bidId"))
	if err != nil {
		respondBadRequest(c, "invalid bid id")
		return
	}

	a, bid, err := h.auctionService.GetBid(c.Request.Context(), bidID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toBidResponse(a.SearchID, bid))
}

// SelectBid handles POST /auction/select
func (h *Handler) SelectBid(c *gin.Context) {
	var req selectBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.auctionService.SelectBid(c.Request.Context(), req.SearchID, req.BidID)
	if err != nil {
		h.logger.Warn().Err(err).Str("search_id", req.SearchID.String()).Str("bid_id", req.BidID.String()).Msg("Bid selection rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, selectionResponse{
		SearchID:     result.SearchID,
		BidID:        result.BidID,
		RewardAmount: result.RewardAmount,
		AutoSelected: result.AutoSelected,
	})
}

// TrackClick handles POST /track-click
func (h *Handler) TrackClick(c *gin.Context) {
	var req trackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.settlementService.TrackClick(c.Request.Context(), inbound.TrackClickRequest{
		UserID:   req.UserID,
		SearchID: req.SearchID,
		BidID:    req.BidID,
		VAtf:     req.VAtf,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("bid_id", req.BidID.String()).Msg("Click tracking rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, clickResponse{
		TradeID:      result.TradeID,
		FinalURL:     result.FinalURL,
		RewardAmount: result.RewardAmount,
	})
}

// VerifyReturn handles POST /verify-return
func (h *Handler) VerifyReturn(c *gin.Context) {
	var req verifyReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	rec, err := h.settlementService.RecordReturn(c.Request.Context(), inbound.RecordReturnRequest{
		TradeID:          req.TradeID,
		DwellTimeSeconds: req.DwellTime,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("trade_id", req.TradeID.String()).Msg("Return verification rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettlementResponse(rec))
}

// GetReceipt handles GET /settlement-receipt/:bidId
func (h *Handler) GetReceipt(c *gin.Context) {
	bidID, err := uuid.Parse(c.Param("bidId"))
	if err != nil {
		respondBadRequest(c, "invalid bid id")
		return
	}

	tx, err := h.settlementService.GetReceipt(c.Request.Context(), bidID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toReceiptResponse(tx))
}

// GetSettings handles GET /auto-bid-settings/:advertiserId
func (h *Handler) GetSettings(c *gin.Context) {
	advertiserID, err := uuid.Parse(c.Param("advertiserId"))
	if err != nil {
		respondBadRequest(c, "invalid advertiser id")
		return
	}

	settings, err := h.autoBidService.GetSettings(c.Request.Context(), advertiserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// UpdateSettings handles PUT /auto-bid-settings/:advertiserId
func (h *Handler) UpdateSettings(c *gin.Context) {
	advertiserID, err := uuid.Parse(c.Param("advertiserId"))
	if err != nil {
		respondBadRequest(c, "invalid advertiser id")
		return
	}

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	settings, err := h.autoBidService.UpdateSettings(c.Request.Context(), inbound.UpdateSettingsRequest{
		AdvertiserID:     advertiserID,
		DisplayName:      req.DisplayName,
		LandingURL:       req.LandingURL,
		Bonus:            req.Bonus,
		IsEnabled:        req.IsEnabled,
		DailyBudget:      req.DailyBudget,
		MaxBidPerKeyword: req.MaxBidPerKeyword,
		MinQualityScore:  req.MinQualityScore,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("advertiser_id", advertiserID.String()).Msg("Settings update rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// UpdateKeywords handles PUT /keywords/:advertiserId
func (h *Handler) UpdateKeywords(c *gin.Context) {
	advertiserID, err := uuid.Parse(c.Param("advertiserId"))
	if err != nil {
		respondBadRequest(c, "invalid advertiser id")
		return
	}

	var req updateKeywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	keywords := make([]autobid.Keyword, 0, len(req.Keywords))
	for _, k := range req.Keywords {
		keywords = append(keywords, autobid.Keyword{
			Keyword:   k.Keyword,
			Priority:  k.Priority,
			MatchType: autobid.MatchType(k.MatchType),
			Status:    autobid.KeywordStatus(k.Status),
		})
	}

	settings, err := h.autoBidService.UpdateKeywords(c.Request.Context(), advertiserID, keywords)
	if err != nil {
		h.logger.Warn().Err(err).Str("advertiser_id", advertiserID.String()).Msg("Keyword update rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// GetKeywords handles GET /keywords/:advertiserId
func (h *Handler) GetKeywords(c *gin.Context) {
	advertiserID, err := uuid.Parse(c.Param("advertiserId"))
	if err != nil {
		respondBadRequest(c, "invalid advertiser id")
		return
	}

	settings, err := h.autoBidService.GetSettings(c.Request.Context(), advertiserID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := toSettingsResponse(settings)
	c.JSON(http.StatusOK, gin.H{
		"advertiser_id": resp.AdvertiserID,
		"keywords":      resp.Keywords,
	})
}

// UpdateExcludedKeywords handles POST /excluded-keywords/:advertiserId
func (h *Handler) UpdateExcludedKeywords(c *gin.Context) {
	advertiserID, err := uuid.Parse(c.Param("advertiserId"))
	if err != nil {
		respondBadRequest(c, "invalid advertiser id")
		return
	}

	var req excludedKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	settings, err := h.autoBidService.UpdateExcludedKeywords(c.Request.Context(), inbound.ExcludedKeywordRequest{
		AdvertiserID: advertiserID,
		Action:       inbound.ExcludedKeywordAction(req.Action),
		Keyword:      req.Keyword,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("advertiser_id", advertiserID.String()).Msg("Excluded keyword update rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "intent-exchange"})
}
