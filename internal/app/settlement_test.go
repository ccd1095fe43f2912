package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"intent-exchange-service/internal/adapters/memory"
	"intent-exchange-service/internal/config"
	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/settlement"
	"intent-exchange-service/internal/domain/shared"
	"intent-exchange-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingDeadlines struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
	cancelled map[uuid.UUID]bool
}

func newRecordingDeadlines() *recordingDeadlines {
	return &recordingDeadlines{
		scheduled: make(map[uuid.UUID]time.Time),
		cancelled: make(map[uuid.UUID]bool),
	}
}

func (r *recordingDeadlines) ScheduleDeadline(tradeID uuid.UUID, deadline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled[tradeID] = deadline
	return nil
}

func (r *recordingDeadlines) CancelDeadline(tradeID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled[tradeID] = true
	return nil
}

type settlementFixture struct {
	service   *SettlementService
	txStore   *memory.TransactionStore
	auctions  *memory.AuctionStore
	deadlines *recordingDeadlines
	searchID  uuid.UUID
	winner    *auction.Bid
	loser     *auction.Bid
}

func newSettlementFixture(t *testing.T, quotaLimit int) *settlementFixture {
	t.Helper()

	txStore := memory.NewTransactionStore()
	auctions := memory.NewAuctionStore()
	deadlines := newRecordingDeadlines()

	winner := &auction.Bid{ID: uuid.New(), BuyerName: "Phone Shop", Price: 1000, LandingURL: "https://shop.example.com", Source: auction.PlatformSource{}}
	loser := &auction.Bid{ID: uuid.New(), BuyerName: "Other Shop", Price: 400, LandingURL: "https://other.example.com", Source: auction.PlatformSource{}}

	searchID := uuid.New()
	a := &auction.Auction{
		SearchID:  searchID,
		Query:     "iphone 16",
		Status:    auction.StatusActive,
		Bids:      []*auction.Bid{winner, loser},
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, auctions.Create(context.Background(), a))
	require.NoError(t, auctions.Finalize(context.Background(), searchID, winner.ID))

	service := NewSettlementService(SettlementServiceParams{
		TransactionRepo: txStore,
		AuctionRepo:     auctions,
		Quota:           memory.NewSubmissionQuota(quotaLimit),
		Deadlines:       deadlines,
		Config: config.SettlementConfig{
			PartialMinSeconds: 3.0,
			PassSeconds:       20.0,
			Timeout:           24 * time.Hour,
		},
		Logger: zerolog.Nop(),
	})

	return &settlementFixture{
		service:   service,
		txStore:   txStore,
		auctions:  auctions,
		deadlines: deadlines,
		searchID:  searchID,
		winner:    winner,
		loser:     loser,
	}
}

func (f *settlementFixture) trackClick(t *testing.T, userID string) *inbound.ClickResult {
	t.Helper()
	result, err := f.service.TrackClick(context.Background(), inbound.TrackClickRequest{
		UserID:   userID,
		SearchID: f.searchID,
		BidID:    f.winner.ID,
		VAtf:     0.85,
	})
	require.NoError(t, err)
	return result
}

// newPendingTrade creates a trade whose click was registered clickAgo in the
// past, so dwell-based assertions don't race the wall clock.
func (f *settlementFixture) newPendingTrade(t *testing.T, clickAgo time.Duration) uuid.UUID {
	t.Helper()

	tradeID := uuid.New()
	created := time.Now().Add(-clickAgo)
	tx := &settlement.Transaction{
		ID:            tradeID,
		SearchID:      f.searchID,
		BidID:         f.winner.ID,
		Query:         "iphone 16",
		BuyerName:     f.winner.BuyerName,
		PrimaryReward: f.winner.Price,
		Status:        settlement.StatusPrimaryComplete,
		VAtf:          0.85,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, f.txStore.Create(context.Background(), tx))
	require.NoError(t, f.txStore.MarkClicked(context.Background(), tradeID, created, tx.VAtf))
	return tradeID
}

func TestSettlementService_TrackClick_Idempotent(t *testing.T) {
	f := newSettlementFixture(t, 30)

	first := f.trackClick(t, "user-1")
	require.Equal(t, int64(1000), first.RewardAmount)
	require.Equal(t, "https://shop.example.com", first.FinalURL)

	// A duplicate click returns the original trade instead of a second reward.
	second := f.trackClick(t, "user-1")
	require.Equal(t, first.TradeID, second.TradeID)
	require.Equal(t, first.RewardAmount, second.RewardAmount)

	tx, err := f.txStore.GetByBidID(context.Background(), f.winner.ID)
	require.NoError(t, err)
	require.Equal(t, settlement.StatusPendingVerification, tx.Status)
}

func TestSettlementService_TrackClick_RejectsNonWinner(t *testing.T) {
	f := newSettlementFixture(t, 30)

	_, err := f.service.TrackClick(context.Background(), inbound.TrackClickRequest{
		UserID:   "user-1",
		SearchID: f.searchID,
		BidID:    f.loser.ID,
	})
	require.ErrorIs(t, err, shared.ErrAuctionNotFinalized)

	_, err = f.service.TrackClick(context.Background(), inbound.TrackClickRequest{
		UserID:   "user-1",
		SearchID: f.searchID,
		BidID:    uuid.New(),
	})
	require.ErrorIs(t, err, shared.ErrBidNotFound)
}

func TestSettlementService_TrackClick_UnfinalizedAuction(t *testing.T) {
	f := newSettlementFixture(t, 30)

	bid := &auction.Bid{ID: uuid.New(), BuyerName: "buyer", Price: 100, LandingURL: "https://example.com", Source: auction.PlatformSource{}}
	open := &auction.Auction{
		SearchID:  uuid.New(),
		Query:     "galaxy s25",
		Status:    auction.StatusActive,
		Bids:      []*auction.Bid{bid},
		ExpiresAt: time.Now().Add(time.Minute),
	}
	require.NoError(t, f.auctions.Create(context.Background(), open))

	_, err := f.service.TrackClick(context.Background(), inbound.TrackClickRequest{
		UserID:   "user-1",
		SearchID: open.SearchID,
		BidID:    bid.ID,
	})
	require.ErrorIs(t, err, shared.ErrAuctionNotFinalized)
}

func TestSettlementService_TrackClick_QuotaExhausted(t *testing.T) {
	f := newSettlementFixture(t, 1)

	f.trackClick(t, "user-1")

	_, err := f.service.TrackClick(context.Background(), inbound.TrackClickRequest{
		UserID:   "user-1",
		SearchID: f.searchID,
		BidID:    f.winner.ID,
	})
	require.ErrorIs(t, err, shared.ErrQuotaExceeded)

	// Other users keep their own quota.
	_, err = f.service.TrackClick(context.Background(), inbound.TrackClickRequest{
		UserID:   "user-2",
		SearchID: f.searchID,
		BidID:    f.winner.ID,
	})
	require.NoError(t, err)
}

func TestSettlementService_TrackClick_SchedulesDeadline(t *testing.T) {
	f := newSettlementFixture(t, 30)

	result := f.trackClick(t, "user-1")

	f.deadlines.mu.Lock()
	deadline, ok := f.deadlines.scheduled[result.TradeID]
	f.deadlines.mu.Unlock()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), deadline, time.Minute)
}

func TestSettlementService_RecordReturn(t *testing.T) {
	tests := []struct {
		name             string
		dwell            float64
		clickAgo         time.Duration
		expectedDecision settlement.Decision
		expectedAmount   int64
	}{
		{name: "failed_below_partial_min", dwell: 1.5, clickAgo: time.Minute, expectedDecision: settlement.DecisionFailed, expectedAmount: 0},
		{name: "partial_floor", dwell: 3.0, clickAgo: time.Minute, expectedDecision: settlement.DecisionPartial, expectedAmount: 250},
		{name: "partial_mid_ramp", dwell: 12.0, clickAgo: time.Minute, expectedDecision: settlement.DecisionPartial, expectedAmount: 647},
		{name: "passed_full", dwell: 20.0, clickAgo: time.Minute, expectedDecision: settlement.DecisionPassed, expectedAmount: 1000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newSettlementFixture(t, 30)
			tradeID := f.newPendingTrade(t, tc.clickAgo)

			rec, err := f.service.RecordReturn(context.Background(), inbound.RecordReturnRequest{
				TradeID:          tradeID,
				DwellTimeSeconds: tc.dwell,
			})
			require.NoError(t, err)
			require.Equal(t, tc.expectedDecision, rec.Decision)
			require.Equal(t, tc.expectedAmount, rec.SettledAmount)
			require.InDelta(t, tc.dwell, rec.Metrics.DwellTimeSeconds, 0.5)
		})
	}
}

func TestSettlementService_RecordReturn_ClampsForgedDwell(t *testing.T) {
	f := newSettlementFixture(t, 30)
	tradeID := f.newPendingTrade(t, 5*time.Second)

	// The client claims a minute of dwell but the click was 5s ago; the
	// server-observed elapsed time wins.
	rec, err := f.service.RecordReturn(context.Background(), inbound.RecordReturnRequest{
		TradeID:          tradeID,
		DwellTimeSeconds: 60.0,
	})
	require.NoError(t, err)
	require.Equal(t, settlement.DecisionPartial, rec.Decision)
	require.InDelta(t, 5.0, rec.Metrics.DwellTimeSeconds, 1.0)
}

func TestSettlementService_RecordReturn_Errors(t *testing.T) {
	f := newSettlementFixture(t, 30)

	_, err := f.service.RecordReturn(context.Background(), inbound.RecordReturnRequest{
		TradeID:          uuid.New(),
		DwellTimeSeconds: -1,
	})
	require.ErrorIs(t, err, shared.ErrInvalidDwellTime)

	_, err = f.service.RecordReturn(context.Background(), inbound.RecordReturnRequest{
		TradeID:          uuid.New(),
		DwellTimeSeconds: 10,
	})
	require.ErrorIs(t, err, shared.ErrTransactionNotFound)

	// Before the click registers there is no dwell clock to settle against.
	tx := &settlement.Transaction{
		ID:            uuid.New(),
		SearchID:      f.searchID,
		BidID:         uuid.New(),
		PrimaryReward: 500,
		Status:        settlement.StatusPrimaryComplete,
	}
	require.NoError(t, f.txStore.Create(context.Background(), tx))

	_, err = f.service.RecordReturn(context.Background(), inbound.RecordReturnRequest{
		TradeID:          tx.ID,
		DwellTimeSeconds: 10,
	})
	require.ErrorIs(t, err, shared.ErrClickNotRegistered)
}

func TestSettlementService_RecordReturn_WriteOnce(t *testing.T) {
	f := newSettlementFixture(t, 30)
	tradeID := f.newPendingTrade(t, time.Minute)

	_, err := f.service.RecordReturn(context.Background(), inbound.RecordReturnRequest{
		TradeID:          tradeID,
		DwellTimeSeconds: 25.0,
	})
	require.NoError(t, err)

	// The first decision is final, no matter what the retry reports.
	_, err = f.service.RecordReturn(context.Background(), inbound.RecordReturnRequest{
		TradeID:          tradeID,
		DwellTimeSeconds: 1.0,
	})
	require.ErrorIs(t, err, shared.ErrAlreadySettled)

	f.deadlines.mu.Lock()
	cancelled := f.deadlines.cancelled[tradeID]
	f.deadlines.mu.Unlock()
	require.True(t, cancelled)
}

func TestSettlementService_ForceFailSettlement(t *testing.T) {
	f := newSettlementFixture(t, 30)
	result := f.trackClick(t, "user-1")

	require.NoError(t, f.service.ForceFailSettlementForScheduler(context.Background(), result.TradeID))

	tx, err := f.txStore.GetByID(context.Background(), result.TradeID)
	require.NoError(t, err)
	require.Equal(t, settlement.StatusFailed, tx.Status)
	require.NotNil(t, tx.SecondaryReward)
	require.Equal(t, int64(0), *tx.SecondaryReward)

	// Already terminal: the sweep is a no-op error.
	err = f.service.ForceFailSettlementForScheduler(context.Background(), result.TradeID)
	require.ErrorIs(t, err, shared.ErrAlreadySettled)
}

func TestSettlementService_GetReceipt(t *testing.T) {
	f := newSettlementFixture(t, 30)

	_, err := f.service.GetReceipt(context.Background(), f.winner.ID)
	require.ErrorIs(t, err, shared.ErrTransactionNotFound)

	result := f.trackClick(t, "user-1")

	tx, err := f.service.GetReceipt(context.Background(), f.winner.ID)
	require.NoError(t, err)
	require.Equal(t, result.TradeID, tx.ID)
	require.Equal(t, int64(1000), tx.PrimaryReward)
}
