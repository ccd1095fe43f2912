package app

import (
	"context"
	"strings"
	"time"

	"intent-exchange-service/internal/adapters/scheduler"
	"intent-exchange-service/internal/config"
	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/quality"
	"intent-exchange-service/internal/domain/shared"
	"intent-exchange-service/internal/metrics"
	"intent-exchange-service/internal/ports/inbound"
	"intent-exchange-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuctionService implements the auction use cases and scheduler.AuctionEndService
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	autoBidRepo outbound.AutoBidRepository
	solicitor   inbound.AutoBidService
	scorer      outbound.QualityScorer
	broadcaster outbound.Broadcaster
	scheduler   *scheduler.AuctionScheduler
	cfg         config.AuctionConfig
	logger      zerolog.Logger
}

type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	AutoBidRepo outbound.AutoBidRepository
	Solicitor   inbound.AutoBidService
	Scorer      outbound.QualityScorer
	Broadcaster outbound.Broadcaster
	Scheduler   *scheduler.AuctionScheduler
	Config      config.AuctionConfig
	Logger      zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		autoBidRepo: params.AutoBidRepo,
		solicitor:   params.Solicitor,
		scorer:      params.Scorer,
		broadcaster: params.Broadcaster,
		scheduler:   params.Scheduler,
		cfg:         params.Config,
		logger:      params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// StartAuction validates the query, evaluates its quality, opens an auction
// and solicits bids from every enabled auto-bidder. When no advertiser bids,
// exactly one fallback bid is synthesized so the reward flow never dead-ends.
func (service *AuctionService) StartAuction(ctx context.Context, req inbound.StartAuctionRequest) (*inbound.StartAuctionResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, shared.ErrQueryEmpty
	}
	if len([]rune(query)) > service.cfg.MaxQueryLength {
		service.logger.Warn().Int("length", len([]rune(query))).Msg("Query exceeds maximum length")
		return nil, shared.ErrQueryTooLong
	}

	report, err := service.scorer.Score(ctx, query)
	if err != nil {
		// A scorer outage never blocks the auction pipeline. The fallback
		// estimate is marked so telemetry can tell it apart from a real score.
		service.logger.Warn().Err(err).Str("query", query).Msg("Quality scorer unavailable, using fallback estimate")
		report = quality.FallbackReport(query)
		metrics.ScorerFallbacks.Inc()
	}

	now := time.Now()
	newAuction := &auction.Auction{
		SearchID:     uuid.New(),
		Query:        query,
		QualityScore: report.Score,
		Status:       auction.StatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(service.cfg.TTL),
		UpdatedAt:    now,
	}

	bids := service.solicitor.Solicit(ctx, query, report.Score)
	for _, b := range bids {
		newAuction.AddBid(b)
	}

	if len(newAuction.Bids) == 0 {
		fallback := service.fallbackBid(now)
		newAuction.AddBid(fallback)
		service.logger.Info().
			Str("search_id", newAuction.SearchID.String()).
			Int64("price", fallback.Price).
			Msg("No advertiser bids, synthesized fallback bid")
	}

	newAuction.SortBids()

	if err := service.auctionRepo.Create(ctx, newAuction); err != nil {
		service.logger.Error().Err(err).Str("search_id", newAuction.SearchID.String()).Msg("Failed to save auction")
		return nil, err
	}

	metrics.AuctionsStarted.Inc()
	metrics.BidsSolicited.Add(float64(len(newAuction.Bids)))

	if service.scheduler != nil {
		if err := service.scheduler.ScheduleAuction(newAuction.SearchID, newAuction.ExpiresAt); err != nil {
			// Don't fail the auction creation, just log the error
			service.logger.Error().Err(err).Str("search_id", newAuction.SearchID.String()).Msg("Failed to schedule auction for expiration")
		}
	}

	service.publish(ctx, newAuction.SearchID, outbound.Event{
		Type:     outbound.EventTypeAuctionCreated,
		SearchID: newAuction.SearchID,
		Data: map[string]interface{}{
			"query":      newAuction.Query,
			"bid_count":  len(newAuction.Bids),
			"expires_at": newAuction.ExpiresAt.Unix(),
		},
		Timestamp: now.Unix(),
	})

	service.logger.Info().
		Str("search_id", newAuction.SearchID.String()).
		Str("query", query).
		Int("quality_score", report.Score).
		Bool("fallback_score", report.Fallback).
		Int("bid_count", len(newAuction.Bids)).
		Msg("Auction started")

	return &inbound.StartAuctionResult{Auction: newAuction, QualityReport: report}, nil
}

// GetAuction retrieves an auction by search ID
func (service *AuctionService) GetAuction(ctx context.Context, searchID uuid.UUID) (*auction.Auction, error) {
	a, err := service.auctionRepo.GetBySearchID(ctx, searchID)
	if err != nil {
		service.logger.Error().Err(err).Str("search_id", searchID.String()).Msg("Failed to retrieve auction")
		return nil, err
	}
	return a, nil
}

// GetBid retrieves a bid and its owning auction
func (service *AuctionService) GetBid(ctx context.Context, bidID uuid.UUID) (*auction.Auction, *auction.Bid, error) {
	a, err := service.auctionRepo.GetByBidID(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	b := a.FindBid(bidID)
	if b == nil {
		return nil, nil, shared.ErrBidNotFound
	}
	return a, b, nil
}

// SelectBid finalizes the auction with the user's chosen bid. The auction
// status transition is a compare-and-set, so at most one selection succeeds
// no matter how many concurrent calls race.
func (service *AuctionService) SelectBid(ctx context.Context, searchID, bidID uuid.UUID) (*shared.SelectionResult, error) {
	a, err := service.auctionRepo.GetBySearchID(ctx, searchID)
	if err != nil {
		return nil, err
	}

	if a.IsFinalized() {
		return nil, shared.ErrAuctionAlreadyFinalized
	}

	selected := a.FindBid(bidID)
	if selected == nil {
		return nil, shared.ErrBidNotFound
	}

	if a.Expired(time.Now()) {
		// The expiry scheduler owns finalization past the TTL.
		service.logger.Warn().Str("search_id", searchID.String()).Msg("Selection attempted on expired auction")
		return nil, shared.ErrAuctionExpired
	}

	return service.finalize(ctx, a, selected, false)
}

// EndAuctionForScheduler implements scheduler.AuctionEndService: on TTL
// expiry the current top bid is auto-selected so every auction resolves.
func (service *AuctionService) EndAuctionForScheduler(ctx context.Context, searchID uuid.UUID) (*shared.SelectionResult, error) {
	a, err := service.auctionRepo.GetBySearchID(ctx, searchID)
	if err != nil {
		return nil, err
	}

	if a.IsFinalized() {
		return nil, shared.ErrAuctionAlreadyFinalized
	}

	top := a.TopBid()
	if top == nil {
		// Cannot happen through StartAuction (fallback bid guarantee)
		service.logger.Error().Str("search_id", searchID.String()).Msg("Expired auction has no bids")
		return nil, shared.ErrBidNotFound
	}

	return service.finalize(ctx, a, top, true)
}

func (service *AuctionService) finalize(ctx context.Context, a *auction.Auction, winner *auction.Bid, autoSelected bool) (*shared.SelectionResult, error) {
	if err := service.auctionRepo.Finalize(ctx, a.SearchID, winner.ID); err != nil {
		service.logger.Warn().Err(err).
			Str("search_id", a.SearchID.String()).
			Str("bid_id", winner.ID.String()).
			Msg("Auction finalization rejected")
		return nil, err
	}

	// Only the settlement-triggering winner pays: reserve the advertiser's
	// budget now, after the finalization CAS committed this bid as winner.
	if advertiserID, ok := winner.AdvertiserID(); ok {
		if err := service.autoBidRepo.ReserveSpend(ctx, advertiserID, winner.Price); err != nil {
			service.logger.Warn().Err(err).
				Str("advertiser_id", advertiserID.String()).
				Int64("price", winner.Price).
				Msg("Failed to reserve advertiser budget for winning bid")
		}
	}

	metrics.AuctionsFinalized.WithLabelValues(finalizationMode(autoSelected)).Inc()

	service.publish(ctx, a.SearchID, outbound.Event{
		Type:     outbound.EventTypeAuctionCompleted,
		SearchID: a.SearchID,
		Data: map[string]interface{}{
			"bid_id":        winner.ID.String(),
			"buyer_name":    winner.BuyerName,
			"reward_amount": winner.Price,
			"auto_selected": autoSelected,
		},
		Timestamp: time.Now().Unix(),
	})

	service.logger.Info().
		Str("search_id", a.SearchID.String()).
		Str("bid_id", winner.ID.String()).
		Int64("reward_amount", winner.Price).
		Bool("auto_selected", autoSelected).
		Msg("Auction finalized")

	return &shared.SelectionResult{
		SearchID:     a.SearchID,
		BidID:        winner.ID,
		RewardAmount: winner.Price,
		AutoSelected: autoSelected,
	}, nil
}

func (service *AuctionService) fallbackBid(now time.Time) *auction.Bid {
	return &auction.Bid{
		ID:         uuid.New(),
		BuyerName:  service.cfg.FallbackBuyerName,
		Price:      service.cfg.FallbackBidAmount,
		Bonus:      "",
		LandingURL: service.cfg.FallbackLandingURL,
		Timestamp:  now,
		Source:     auction.PlatformSource{},
	}
}

func (service *AuctionService) publish(ctx context.Context, searchID uuid.UUID, event outbound.Event) {
	if service.broadcaster == nil {
		return
	}
	if err := service.broadcaster.Publish(ctx, searchID, event); err != nil {
		service.logger.Error().Err(err).Str("search_id", searchID.String()).Msg("Failed to broadcast auction event")
	}
}

// SetScheduler sets the auction scheduler
func (service *AuctionService) SetScheduler(s *scheduler.AuctionScheduler) {
	service.scheduler = s
}

func finalizationMode(autoSelected bool) string {
	if autoSelected {
		return "expiry"
	}
	return "selection"
}
