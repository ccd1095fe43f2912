package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"intent-exchange-service/internal/adapters/memory"
	"intent-exchange-service/internal/app"
	"intent-exchange-service/internal/config"
	"intent-exchange-service/internal/domain/quality"
	"intent-exchange-service/internal/domain/shared"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{shared.ErrQueryEmpty, http.StatusBadRequest},
		{shared.ErrQueryTooLong, http.StatusBadRequest},
		{shared.ErrInvalidDwellTime, http.StatusBadRequest},
		{shared.ErrInvalidKeyword, http.StatusBadRequest},
		{shared.ErrAuctionNotFound, http.StatusNotFound},
		{shared.ErrBidNotFound, http.StatusNotFound},
		{shared.ErrTransactionNotFound, http.StatusNotFound},
		{shared.ErrAdvertiserNotFound, http.StatusNotFound},
		{shared.ErrAuctionExpired, http.StatusConflict},
		{shared.ErrAuctionAlreadyFinalized, http.StatusConflict},
		{shared.ErrClickAlreadyRecorded, http.StatusConflict},
		{shared.ErrAlreadySettled, http.StatusConflict},
		{shared.ErrBudgetExhausted, http.StatusConflict},
		{shared.ErrQuotaExceeded, http.StatusTooManyRequests},
		{shared.ErrScorerUnavailable, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", shared.ErrAuctionExpired), http.StatusConflict},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			require.Equal(t, tc.expected, mapErrorToStatus(tc.err))
		})
	}
}

type staticScorer struct{}

func (staticScorer) Score(context.Context, string) (*quality.Report, error) {
	return &quality.Report{Score: 80, CommercialValue: quality.CommercialValueHigh}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auctionStore := memory.NewAuctionStore()
	transactionStore := memory.NewTransactionStore()
	autoBidStore := memory.NewAutoBidStore()
	logger := zerolog.Nop()

	autoBidService := app.NewAutoBidService(app.AutoBidServiceParams{
		Repo:   autoBidStore,
		Logger: logger,
	})
	t.Cleanup(autoBidService.Stop)

	auctionService := app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: auctionStore,
		AutoBidRepo: autoBidStore,
		Solicitor:   autoBidService,
		Scorer:      staticScorer{},
		Config: config.AuctionConfig{
			TTL:                time.Minute,
			FallbackBidAmount:  100,
			FallbackLandingURL: "https://intent-exchange.example.com",
			FallbackBuyerName:  "Intent Exchange",
			MaxQueryLength:     200,
		},
		Logger: logger,
	})

	settlementService := app.NewSettlementService(app.SettlementServiceParams{
		TransactionRepo: transactionStore,
		AuctionRepo:     auctionStore,
		Quota:           memory.NewSubmissionQuota(100),
		Config: config.SettlementConfig{
			PartialMinSeconds: 3.0,
			PassSeconds:       20.0,
			Timeout:           24 * time.Hour,
		},
		Logger: logger,
	})

	handler := NewHandler(HandlerParams{
		AuctionService:    auctionService,
		SettlementService: settlementService,
		AutoBidService:    autoBidService,
		Logger:            logger,
	})
	return NewRouter(handler, logger)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestAPI_SearchToSettlementFlow(t *testing.T) {
	router := newTestRouter(t)

	// Open an auction.
	rr := doJSON(t, router, http.MethodPost, "/search", gin.H{
		"user_id": "user-1",
		"query":   "iphone 16 case",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	search := decode[startSearchResponse](t, rr)
	require.Equal(t, 80, search.Quality.Score)
	require.Len(t, search.Auction.Bids, 1) // fallback bid, no advertisers registered

	searchID := search.Auction.SearchID
	bidID := search.Auction.Bids[0].BidID

	// The auction is readable by search ID and the bid by bid ID.
	rr = doJSON(t, router, http.MethodGet, "/auction/"+searchID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/auction/bid/"+bidID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	bid := decode[bidResponse](t, rr)
	require.Equal(t, int64(100), bid.Price)

	// Select the winner.
	rr = doJSON(t, router, http.MethodPost, "/auction/select", gin.H{
		"search_id": searchID,
		"bid_id":    bidID,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	selection := decode[selectionResponse](t, rr)
	require.Equal(t, int64(100), selection.RewardAmount)
	require.False(t, selection.AutoSelected)

	// Selecting twice conflicts.
	rr = doJSON(t, router, http.MethodPost, "/auction/select", gin.H{
		"search_id": searchID,
		"bid_id":    bidID,
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	// Click-through opens the trade.
	rr = doJSON(t, router, http.MethodPost, "/track-click", gin.H{
		"user_id":   "user-1",
		"search_id": searchID,
		"bid_id":    bidID,
		"v_atf":     0.9,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	click := decode[clickResponse](t, rr)
	require.Equal(t, int64(100), click.RewardAmount)
	require.NotEmpty(t, click.FinalURL)

	// The return report settles the secondary reward.
	rr = doJSON(t, router, http.MethodPost, "/verify-return", gin.H{
		"trade_id":   click.TradeID,
		"dwell_time": 1.0,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	settled := decode[settlementResponse](t, rr)
	require.Equal(t, "FAILED", settled.Decision)
	require.Zero(t, settled.SettledAmount)

	// Settlement is write-once.
	rr = doJSON(t, router, http.MethodPost, "/verify-return", gin.H{
		"trade_id":   click.TradeID,
		"dwell_time": 25.0,
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	// The receipt reflects the terminal state.
	rr = doJSON(t, router, http.MethodGet, "/settlement-receipt/"+bidID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	receipt := decode[receiptResponse](t, rr)
	require.Equal(t, "FAILED", receipt.Status)
	require.NotNil(t, receipt.SecondaryReward)
	require.Zero(t, *receipt.SecondaryReward)
}

func TestAPI_StartSearchValidation(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/search", gin.H{"query": "iphone"})
	require.Equal(t, http.StatusBadRequest, rr.Code) // user_id missing

	rr = doJSON(t, router, http.MethodPost, "/search", gin.H{"user_id": "user-1", "query": "   "})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_GetAuctionErrors(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/auction/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/auction/c7f9a6e8-61cc-4c2f-9c1a-000000000000", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_AdvertiserEndpoints(t *testing.T) {
	router := newTestRouter(t)
	advertiserID := "b4dfb96a-4d1d-49f7-8b95-1d4a2f3f9b01"

	rr := doJSON(t, router, http.MethodGet, "/auto-bid-settings/"+advertiserID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPut, "/auto-bid-settings/"+advertiserID, gin.H{
		"display_name":        "Phone Shop",
		"landing_url":         "https://shop.example.com/iphone",
		"is_enabled":          true,
		"daily_budget":        5000,
		"max_bid_per_keyword": 1000,
		"min_quality_score":   40,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	settings := decode[settingsResponse](t, rr)
	require.True(t, settings.IsEnabled)
	require.Equal(t, int64(5000), settings.RemainingBudget)

	rr = doJSON(t, router, http.MethodPut, "/keywords/"+advertiserID, gin.H{
		"keywords": []gin.H{
			{"keyword": "iphone 16", "priority": 4, "match_type": "phrase", "status": "active"},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	settings = decode[settingsResponse](t, rr)
	require.Len(t, settings.Keywords, 1)

	rr = doJSON(t, router, http.MethodPut, "/keywords/"+advertiserID, gin.H{
		"keywords": []gin.H{
			{"keyword": "iphone 16", "priority": 9, "match_type": "phrase", "status": "active"},
		},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/excluded-keywords/"+advertiserID, gin.H{
		"action":  "add",
		"keyword": "refurbished",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	settings = decode[settingsResponse](t, rr)
	require.Contains(t, settings.ExcludedKeywords, "refurbished")

	// A registered advertiser now bids on matching searches.
	rr = doJSON(t, router, http.MethodPost, "/search", gin.H{
		"user_id": "user-1",
		"query":   "iphone 16",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	search := decode[startSearchResponse](t, rr)
	require.Len(t, search.Auction.Bids, 1)
	require.Equal(t, "ADVERTISER", search.Auction.Bids[0].Type)
	require.NotNil(t, search.Auction.Bids[0].AdvertiserID)
}

func TestAPI_Health(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"ok"`)
}
