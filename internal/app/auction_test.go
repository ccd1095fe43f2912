package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"intent-exchange-service/internal/adapters/memory"
	"intent-exchange-service/internal/config"
	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/quality"
	"intent-exchange-service/internal/domain/shared"
	"intent-exchange-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	report *quality.Report
	err    error
}

func (s *stubScorer) Score(_ context.Context, _ string) (*quality.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func testAuctionConfig() config.AuctionConfig {
	return config.AuctionConfig{
		TTL:                time.Minute,
		FallbackBidAmount:  100,
		FallbackLandingURL: "https://exchange.example.com/offers",
		FallbackBuyerName:  "Intent Exchange",
		MaxQueryLength:     200,
	}
}

func newTestAuctionService(scorer *stubScorer, autoBidStore *memory.AutoBidStore) (*AuctionService, *memory.AuctionStore) {
	auctionStore := memory.NewAuctionStore()
	autoBidService := NewAutoBidService(AutoBidServiceParams{
		Repo:   autoBidStore,
		Logger: zerolog.Nop(),
	})

	service := NewAuctionService(AuctionServiceParams{
		AuctionRepo: auctionStore,
		AutoBidRepo: autoBidStore,
		Solicitor:   autoBidService,
		Scorer:      scorer,
		Config:      testAuctionConfig(),
		Logger:      zerolog.Nop(),
	})
	return service, auctionStore
}

func TestAuctionService_StartAuction_QueryValidation(t *testing.T) {
	service, _ := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 80}}, memory.NewAutoBidStore())

	_, err := service.StartAuction(context.Background(), inboundStartRequest("  "))
	require.ErrorIs(t, err, shared.ErrQueryEmpty)

	_, err = service.StartAuction(context.Background(), inboundStartRequest(strings.Repeat("a", 201)))
	require.ErrorIs(t, err, shared.ErrQueryTooLong)
}

func TestAuctionService_StartAuction_FallbackBidGuarantee(t *testing.T) {
	service, _ := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 80}}, memory.NewAutoBidStore())

	result, err := service.StartAuction(context.Background(), inboundStartRequest("iphone 16"))
	require.NoError(t, err)

	// No advertisers configured: exactly one synthesized platform bid.
	require.Len(t, result.Auction.Bids, 1)
	fallback := result.Auction.Bids[0]
	require.Equal(t, auction.BidTypePlatform, fallback.Type())
	require.Equal(t, int64(100), fallback.Price)
	require.Equal(t, "Intent Exchange", fallback.BuyerName)
	require.True(t, fallback.IsValid())
}

func TestAuctionService_StartAuction_ScorerFallback(t *testing.T) {
	service, _ := newTestAuctionService(&stubScorer{err: shared.ErrScorerUnavailable}, memory.NewAutoBidStore())

	result, err := service.StartAuction(context.Background(), inboundStartRequest("아이폰16 자급제"))
	require.NoError(t, err)

	require.True(t, result.QualityReport.Fallback)
	require.Equal(t, quality.CommercialValueLow, result.QualityReport.CommercialValue)
	require.GreaterOrEqual(t, result.QualityReport.Score, 10)
	require.LessOrEqual(t, result.QualityReport.Score, 60)
	require.Equal(t, result.QualityReport.Score, result.Auction.QualityScore)
}

func TestAuctionService_StartAuction_SolicitsAdvertiserBids(t *testing.T) {
	autoBidStore := memory.NewAutoBidStore()
	advertiserID := seedAdvertiser(t, autoBidStore, 3000, 10000)

	service, _ := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 82}}, autoBidStore)

	result, err := service.StartAuction(context.Background(), inboundStartRequest("아이폰16 256GB 자급제"))
	require.NoError(t, err)

	require.Len(t, result.Auction.Bids, 1)
	bid := result.Auction.Bids[0]
	require.Equal(t, auction.BidTypeAdvertiser, bid.Type())
	gotID, ok := bid.AdvertiserID()
	require.True(t, ok)
	require.Equal(t, advertiserID, gotID)
	require.LessOrEqual(t, bid.Price, int64(3000))
	require.Positive(t, bid.Price)
}

func TestAuctionService_SelectBid(t *testing.T) {
	service, _ := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 80}}, memory.NewAutoBidStore())

	result, err := service.StartAuction(context.Background(), inboundStartRequest("iphone 16"))
	require.NoError(t, err)

	searchID := result.Auction.SearchID
	bidID := result.Auction.Bids[0].ID

	_, err = service.SelectBid(context.Background(), searchID, uuid.New())
	require.ErrorIs(t, err, shared.ErrBidNotFound)

	selection, err := service.SelectBid(context.Background(), searchID, bidID)
	require.NoError(t, err)
	require.Equal(t, bidID, selection.BidID)
	require.Equal(t, int64(100), selection.RewardAmount)
	require.False(t, selection.AutoSelected)

	// Selection is at most once.
	_, err = service.SelectBid(context.Background(), searchID, bidID)
	require.ErrorIs(t, err, shared.ErrAuctionAlreadyFinalized)
}

func TestAuctionService_SelectBid_Concurrent(t *testing.T) {
	service, _ := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 80}}, memory.NewAutoBidStore())

	result, err := service.StartAuction(context.Background(), inboundStartRequest("iphone 16"))
	require.NoError(t, err)

	searchID := result.Auction.SearchID
	bidID := result.Auction.Bids[0].ID

	const racers = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		unexpected []error
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SelectBid(context.Background(), searchID, bidID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case !errors.Is(err, shared.ErrAuctionAlreadyFinalized):
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	require.Equal(t, 1, successes)
}

func TestAuctionService_SelectBid_Expired(t *testing.T) {
	service, store := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 80}}, memory.NewAutoBidStore())

	bid := &auction.Bid{
		ID:         uuid.New(),
		BuyerName:  "buyer",
		Price:      250,
		LandingURL: "https://example.com",
		Timestamp:  time.Now(),
		Source:     auction.PlatformSource{},
	}
	expired := &auction.Auction{
		SearchID:  uuid.New(),
		Query:     "iphone 16",
		Status:    auction.StatusActive,
		Bids:      []*auction.Bid{bid},
		CreatedAt: time.Now().Add(-2 * time.Minute),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.Create(context.Background(), expired))

	_, err := service.SelectBid(context.Background(), expired.SearchID, bid.ID)
	require.ErrorIs(t, err, shared.ErrAuctionExpired)

	// The expiry path still resolves the auction through the top bid.
	selection, err := service.EndAuctionForScheduler(context.Background(), expired.SearchID)
	require.NoError(t, err)
	require.Equal(t, bid.ID, selection.BidID)
	require.True(t, selection.AutoSelected)
}

func TestAuctionService_EndAuctionForScheduler_PicksTopBid(t *testing.T) {
	service, store := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 80}}, memory.NewAutoBidStore())

	low := &auction.Bid{ID: uuid.New(), BuyerName: "low", Price: 100, LandingURL: "https://low.example.com", Source: auction.PlatformSource{}}
	high := &auction.Bid{ID: uuid.New(), BuyerName: "high", Price: 900, LandingURL: "https://high.example.com", Source: auction.PlatformSource{}}

	a := &auction.Auction{
		SearchID:  uuid.New(),
		Query:     "iphone 16",
		Status:    auction.StatusActive,
		Bids:      []*auction.Bid{low, high},
		ExpiresAt: time.Now().Add(-time.Second),
	}
	require.NoError(t, store.Create(context.Background(), a))

	selection, err := service.EndAuctionForScheduler(context.Background(), a.SearchID)
	require.NoError(t, err)
	require.Equal(t, high.ID, selection.BidID)
	require.Equal(t, int64(900), selection.RewardAmount)

	_, err = service.EndAuctionForScheduler(context.Background(), a.SearchID)
	require.ErrorIs(t, err, shared.ErrAuctionAlreadyFinalized)
}

func TestAuctionService_Finalize_ReservesWinnerBudget(t *testing.T) {
	autoBidStore := memory.NewAutoBidStore()
	advertiserID := seedAdvertiser(t, autoBidStore, 3000, 10000)

	service, _ := newTestAuctionService(&stubScorer{report: &quality.Report{Score: 82}}, autoBidStore)

	result, err := service.StartAuction(context.Background(), inboundStartRequest("아이폰16 자급제"))
	require.NoError(t, err)
	winner := result.Auction.Bids[0]

	_, err = service.SelectBid(context.Background(), result.Auction.SearchID, winner.ID)
	require.NoError(t, err)

	settings, err := autoBidStore.GetSettings(context.Background(), advertiserID)
	require.NoError(t, err)
	require.Equal(t, winner.Price, settings.SpentToday)
}

func seedAdvertiser(t *testing.T, store *memory.AutoBidStore, maxBid, dailyBudget int64) uuid.UUID {
	t.Helper()
	advertiserID := uuid.New()
	err := store.SaveSettings(context.Background(), &autobid.Settings{
		AdvertiserID:     advertiserID,
		DisplayName:      "Phone Shop",
		LandingURL:       "https://shop.example.com/iphone",
		IsEnabled:        true,
		DailyBudget:      dailyBudget,
		MaxBidPerKeyword: maxBid,
		MinQualityScore:  50,
		Keywords: []autobid.Keyword{
			{Keyword: "아이폰16 자급제", Priority: 3, MatchType: autobid.MatchBroad, Status: autobid.KeywordStatusActive},
		},
	})
	require.NoError(t, err)
	return advertiserID
}

func inboundStartRequest(query string) inbound.StartAuctionRequest {
	return inbound.StartAuctionRequest{UserID: "user-1", Query: query}
}
