package app

import (
	"context"
	"errors"
	"time"

	"intent-exchange-service/internal/config"
	"intent-exchange-service/internal/domain/settlement"
	"intent-exchange-service/internal/domain/shared"
	"intent-exchange-service/internal/metrics"
	"intent-exchange-service/internal/ports/inbound"
	"intent-exchange-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// dwellToleranceSeconds is the slack allowed between the client-reported
// dwell time and the server-observed elapsed time before the report is
// logged as suspect.
const dwellToleranceSeconds = 2.0

// SettlementDeadlineScheduler schedules forced failure of settlements whose
// return report never arrives
type SettlementDeadlineScheduler interface {
	ScheduleDeadline(tradeID uuid.UUID, deadline time.Time) error
	CancelDeadline(tradeID uuid.UUID) error
}

// SettlementService implements the two-phase reward pipeline: an immediate
// irrevocable primary reward, then a deferred write-once secondary
// settlement decided from SLA metrics.
type SettlementService struct {
	txRepo      outbound.TransactionRepository
	auctionRepo outbound.AuctionRepository
	quota       outbound.SubmissionQuota
	broadcaster outbound.Broadcaster
	deadlines   SettlementDeadlineScheduler
	thresholds  settlement.Thresholds
	timeout     time.Duration
	logger      zerolog.Logger
}

type SettlementServiceParams struct {
	TransactionRepo outbound.TransactionRepository
	AuctionRepo     outbound.AuctionRepository
	Quota           outbound.SubmissionQuota
	Broadcaster     outbound.Broadcaster
	Deadlines       SettlementDeadlineScheduler
	Config          config.SettlementConfig
	Logger          zerolog.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(params SettlementServiceParams) *SettlementService {
	return &SettlementService{
		txRepo:      params.TransactionRepo,
		auctionRepo: params.AuctionRepo,
		quota:       params.Quota,
		broadcaster: params.Broadcaster,
		deadlines:   params.Deadlines,
		thresholds:  settlement.Thresholds{PartialMin: params.Config.PartialMinSeconds, Pass: params.Config.PassSeconds},
		timeout:     params.Config.Timeout,
		logger:      params.Logger.With().Str("component", "settlement_service").Logger(),
	}
}

// TrackClick issues the primary reward for the winning bid (idempotently)
// and registers the click, starting the dwell clock. The per-user daily
// submission quota is consumed before any trade is created.
func (service *SettlementService) TrackClick(ctx context.Context, req inbound.TrackClickRequest) (*inbound.ClickResult, error) {
	if service.quota != nil {
		if err := service.quota.Allow(ctx, req.UserID); err != nil {
			if errors.Is(err, shared.ErrQuotaExceeded) {
				metrics.QuotaRejections.Inc()
				service.logger.Warn().Str("user_id", req.UserID).Msg("Daily submission quota exceeded")
			}
			return nil, err
		}
	}

	a, err := service.auctionRepo.GetBySearchID(ctx, req.SearchID)
	if err != nil {
		return nil, err
	}

	clicked := a.FindBid(req.BidID)
	if clicked == nil {
		return nil, shared.ErrBidNotFound
	}

	// Clicks settle only against the committed winner of a finalized auction.
	if !a.IsFinalized() || a.WinningBidID == nil || *a.WinningBidID != req.BidID {
		service.logger.Warn().
			Str("search_id", req.SearchID.String()).
			Str("bid_id", req.BidID.String()).
			Msg("Click on a non-winning or unfinalized bid")
		return nil, shared.ErrAuctionNotFinalized
	}

	tx, err := service.issuePrimaryReward(ctx, a.Query, clicked.BuyerName, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = service.txRepo.MarkClicked(ctx, tx.ID, now, req.VAtf)
	switch {
	case err == nil:
		if service.deadlines != nil {
			if derr := service.deadlines.ScheduleDeadline(tx.ID, now.Add(service.timeout)); derr != nil {
				service.logger.Error().Err(derr).Str("trade_id", tx.ID.String()).Msg("Failed to schedule settlement deadline")
			}
		}
	case errors.Is(err, shared.ErrClickAlreadyRecorded):
		// Duplicate click delivery: the trade already exists and its clock
		// is running. Re-return the original result instead of failing.
		service.logger.Info().Str("trade_id", tx.ID.String()).Msg("Duplicate click ignored")
	default:
		return nil, err
	}

	service.logger.Info().
		Str("trade_id", tx.ID.String()).
		Str("bid_id", req.BidID.String()).
		Int64("reward_amount", tx.PrimaryReward).
		Msg("Click tracked")

	return &inbound.ClickResult{
		TradeID:      tx.ID,
		FinalURL:     clicked.LandingURL,
		RewardAmount: tx.PrimaryReward,
	}, nil
}

// issuePrimaryReward creates the transaction in PRIMARY_COMPLETE, once per
// bid. The primary reward is irrevocable: a later settlement failure only
// withholds the secondary reward.
func (service *SettlementService) issuePrimaryReward(ctx context.Context, query, buyerName string, req inbound.TrackClickRequest) (*settlement.Transaction, error) {
	existing, err := service.txRepo.GetByBidID(ctx, req.BidID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrTransactionNotFound) {
		return nil, err
	}

	a, err := service.auctionRepo.GetBySearchID(ctx, req.SearchID)
	if err != nil {
		return nil, err
	}
	winner := a.FindBid(req.BidID)
	if winner == nil {
		return nil, shared.ErrBidNotFound
	}

	now := time.Now()
	tx := &settlement.Transaction{
		ID:            uuid.New(),
		SearchID:      req.SearchID,
		BidID:         req.BidID,
		Query:         query,
		BuyerName:     buyerName,
		PrimaryReward: winner.Price,
		Status:        settlement.StatusPrimaryComplete,
		VAtf:          req.VAtf,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := service.txRepo.Create(ctx, tx); err != nil {
		// A concurrent click may have created the transaction first; the
		// bid-unique constraint makes the retry safe.
		if existing, gerr := service.txRepo.GetByBidID(ctx, req.BidID); gerr == nil {
			return existing, nil
		}
		service.logger.Error().Err(err).Str("bid_id", req.BidID.String()).Msg("Failed to create transaction")
		return nil, err
	}

	metrics.PrimaryRewardsIssued.Inc()

	service.logger.Info().
		Str("trade_id", tx.ID.String()).
		Str("bid_id", tx.BidID.String()).
		Int64("primary_reward", tx.PrimaryReward).
		Msg("Primary reward issued")

	return tx, nil
}

// RegisterClick transitions an existing transaction PRIMARY_COMPLETE ->
// PENDING_VERIFICATION and starts the dwell clock
func (service *SettlementService) RegisterClick(ctx context.Context, tradeID uuid.UUID) error {
	tx, err := service.txRepo.GetByID(ctx, tradeID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := service.txRepo.MarkClicked(ctx, tradeID, now, tx.VAtf); err != nil {
		return err
	}

	if service.deadlines != nil {
		if derr := service.deadlines.ScheduleDeadline(tradeID, now.Add(service.timeout)); derr != nil {
			service.logger.Error().Err(derr).Str("trade_id", tradeID.String()).Msg("Failed to schedule settlement deadline")
		}
	}
	return nil
}

// RecordReturn computes and persists the write-once settlement decision.
// The server-observed elapsed time since the click caps the client-reported
// dwell, so a forged report can only shrink the payout window.
func (service *SettlementService) RecordReturn(ctx context.Context, req inbound.RecordReturnRequest) (*settlement.SettlementRecord, error) {
	if req.DwellTimeSeconds < 0 {
		return nil, shared.ErrInvalidDwellTime
	}

	tx, err := service.txRepo.GetByID(ctx, req.TradeID)
	if err != nil {
		return nil, err
	}

	switch tx.Status {
	case settlement.StatusPrimaryComplete:
		return nil, shared.ErrClickNotRegistered
	case settlement.StatusSettled, settlement.StatusFailed:
		return nil, shared.ErrAlreadySettled
	}

	now := time.Now()
	dwell := req.DwellTimeSeconds
	if tx.ClickedAt != nil {
		observed := now.Sub(*tx.ClickedAt).Seconds()
		if dwell > observed+dwellToleranceSeconds {
			service.logger.Warn().
				Str("trade_id", req.TradeID.String()).
				Float64("reported_dwell", dwell).
				Float64("observed_elapsed", observed).
				Msg("Client-reported dwell exceeds server-observed elapsed time, clamping")
		}
		if dwell > observed {
			dwell = observed
		}
	}

	rec := &settlement.SettlementRecord{
		Decision:      service.thresholds.Decide(dwell),
		SettledAmount: service.thresholds.SettledAmount(tx.PrimaryReward, dwell),
		SettledAt:     now,
		Metrics: settlement.SlaMetrics{
			VAtf:             tx.VAtf,
			Clicked:          true,
			DwellTimeSeconds: dwell,
		},
	}

	if _, err := service.txRepo.Settle(ctx, req.TradeID, rec); err != nil {
		return nil, err
	}

	if service.deadlines != nil {
		if derr := service.deadlines.CancelDeadline(req.TradeID); derr != nil {
			service.logger.Error().Err(derr).Str("trade_id", req.TradeID.String()).Msg("Failed to cancel settlement deadline")
		}
	}

	metrics.Settlements.WithLabelValues(string(rec.Decision)).Inc()

	service.publish(ctx, tx.SearchID, outbound.Event{
		Type:     outbound.EventTypeSettlementRecorded,
		SearchID: tx.SearchID,
		Data: map[string]interface{}{
			"trade_id":       tx.ID.String(),
			"decision":       string(rec.Decision),
			"settled_amount": rec.SettledAmount,
			"dwell_time":     dwell,
		},
		Timestamp: now.Unix(),
	})

	service.logger.Info().
		Str("trade_id", req.TradeID.String()).
		Str("decision", string(rec.Decision)).
		Int64("settled_amount", rec.SettledAmount).
		Float64("dwell_time", dwell).
		Msg("Settlement recorded")

	return rec, nil
}

// ForceFailSettlementForScheduler implements scheduler.SettlementTimeoutService:
// a transaction still pending when its deadline passes is settled FAILED so
// pending liabilities stay bounded.
func (service *SettlementService) ForceFailSettlementForScheduler(ctx context.Context, tradeID uuid.UUID) error {
	tx, err := service.txRepo.GetByID(ctx, tradeID)
	if err != nil {
		return err
	}
	if tx.IsTerminal() {
		return shared.ErrAlreadySettled
	}
	if tx.Status == settlement.StatusPrimaryComplete {
		// The click never registered, so no dwell clock ever ran.
		return shared.ErrClickNotRegistered
	}

	rec := &settlement.SettlementRecord{
		Decision:      settlement.DecisionFailed,
		SettledAmount: 0,
		SettledAt:     time.Now(),
		Metrics: settlement.SlaMetrics{
			VAtf:             tx.VAtf,
			Clicked:          true,
			DwellTimeSeconds: 0,
		},
	}

	if _, err := service.txRepo.Settle(ctx, tradeID, rec); err != nil {
		return err
	}

	metrics.Settlements.WithLabelValues(string(settlement.DecisionFailed)).Inc()

	service.logger.Warn().
		Str("trade_id", tradeID.String()).
		Msg("Settlement forced FAILED after verification timeout")
	return nil
}

// GetReceipt retrieves the full transaction for a winning bid
func (service *SettlementService) GetReceipt(ctx context.Context, bidID uuid.UUID) (*settlement.Transaction, error) {
	return service.txRepo.GetByBidID(ctx, bidID)
}

func (service *SettlementService) publish(ctx context.Context, searchID uuid.UUID, event outbound.Event) {
	if service.broadcaster == nil {
		return
	}
	if err := service.broadcaster.Publish(ctx, searchID, event); err != nil {
		service.logger.Error().Err(err).Str("search_id", searchID.String()).Msg("Failed to broadcast settlement event")
	}
}
