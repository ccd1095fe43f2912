package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const auctionExpirationsKey = "auction:expirations"

// AuctionEndService finalizes an expired auction by auto-selecting its
// current top bid
type AuctionEndService interface {
	EndAuctionForScheduler(ctx context.Context, searchID uuid.UUID) (*shared.SelectionResult, error)
}

// AuctionScheduler drives TTL expiry: auctions are scored into a Redis ZSET
// by their expiry instant and a ticker loop finalizes the ones that are due.
type AuctionScheduler struct {
	redis          *redis.Client
	auctionService AuctionEndService
	logger         zerolog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

type AuctionSchedulerParams struct {
	RedisClient    *redis.Client
	AuctionService AuctionEndService
	Logger         zerolog.Logger
}

func NewAuctionScheduler(params AuctionSchedulerParams) *AuctionScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &AuctionScheduler{
		redis:          params.RedisClient,
		auctionService: params.AuctionService,
		logger:         params.Logger.With().Str("component", "auction_scheduler").Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SetAuctionService wires the end service after construction; the scheduler
// and auction service reference each other.
func (s *AuctionScheduler) SetAuctionService(svc AuctionEndService) {
	s.auctionService = svc
}

// ScheduleAuction adds an auction to the expiration schedule
func (s *AuctionScheduler) ScheduleAuction(searchID uuid.UUID, expiresAt time.Time) error {
	score := float64(expiresAt.Unix())

	err := s.redis.ZAdd(s.ctx, auctionExpirationsKey, redis.Z{
		Score:  score,
		Member: searchID.String(),
	}).Err()

	if err != nil {
		s.logger.Error().Err(err).Str("search_id", searchID.String()).Msg("Failed to schedule auction")
		return fmt.Errorf("failed to schedule auction: %w", err)
	}

	s.logger.Info().
		Str("search_id", searchID.String()).
		Time("expires_at", expiresAt).
		Msg("Auction scheduled for expiration")

	return nil
}

// Start begins the scheduler loop
func (s *AuctionScheduler) Start() {
	s.logger.Info().Msg("Starting auction scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler
func (s *AuctionScheduler) Stop() {
	s.logger.Info().Msg("Stopping auction scheduler")
	s.cancel()
	s.wg.Wait()
}

// schedulerLoop runs the main scheduling loop
func (s *AuctionScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkExpiredAuctions()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// checkExpiredAuctions finds and processes expired auctions
func (s *AuctionScheduler) checkExpiredAuctions() {
	now := time.Now().Unix()

	expired, err := s.redis.ZRangeByScore(s.ctx, auctionExpirationsKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: 10, // Process max 10 at a time
	}).Result()

	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get expired auctions")
		return
	}

	if len(expired) > 0 {
		s.logger.Debug().Int("count", len(expired)).Msg("Found expired auctions")
	}

	for _, searchIDStr := range expired {
		searchID, err := uuid.Parse(searchIDStr)
		if err != nil {
			s.logger.Error().Err(err).Str("search_id", searchIDStr).Msg("Invalid search ID")
			s.redis.ZRem(s.ctx, auctionExpirationsKey, searchIDStr)
			continue
		}

		go s.endAuction(searchID)
	}
}

// endAuction auto-selects the top bid of an expired auction
func (s *AuctionScheduler) endAuction(searchID uuid.UUID) {
	s.logger.Info().Str("search_id", searchID.String()).Msg("Processing auction expiry")

	result, err := s.auctionService.EndAuctionForScheduler(s.ctx, searchID)
	defer s.redis.ZRem(s.ctx, auctionExpirationsKey, searchID.String())

	if err != nil {
		if errors.Is(err, shared.ErrAuctionAlreadyFinalized) {
			// The user selected a bid before the TTL fired; nothing to do.
			s.logger.Debug().Str("search_id", searchID.String()).Msg("Auction already finalized before expiry")
			return
		}
		s.logger.Error().Err(err).Str("search_id", searchID.String()).Msg("Failed to end auction")
		return
	}

	s.logger.Info().
		Str("search_id", searchID.String()).
		Str("bid_id", result.BidID.String()).
		Int64("reward_amount", result.RewardAmount).
		Msg("Expired auction auto-selected top bid")
}
