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

const settlementDeadlinesKey = "settlement:deadlines"

// SettlementTimeoutService forces a FAILED settlement on a transaction whose
// return report never arrived
type SettlementTimeoutService interface {
	ForceFailSettlementForScheduler(ctx context.Context, tradeID uuid.UUID) error
}

// SettlementScheduler bounds pending settlement liability: every registered
// click gets a deadline in a Redis ZSET, and transactions still pending when
// the deadline passes are settled FAILED.
type SettlementScheduler struct {
	redis             *redis.Client
	settlementService SettlementTimeoutService
	logger            zerolog.Logger
	ctx               context.Context
	cancel            context.CancelFunc
	wg                sync.WaitGroup
}

type SettlementSchedulerParams struct {
	RedisClient       *redis.Client
	SettlementService SettlementTimeoutService
	Logger            zerolog.Logger
}

func NewSettlementScheduler(params SettlementSchedulerParams) *SettlementScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &SettlementScheduler{
		redis:             params.RedisClient,
		settlementService: params.SettlementService,
		logger:            params.Logger.With().Str("component", "settlement_scheduler").Logger(),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// SetSettlementService wires the timeout service after construction
func (s *SettlementScheduler) SetSettlementService(svc SettlementTimeoutService) {
	s.settlementService = svc
}

// ScheduleDeadline registers the forced-failure deadline for a transaction
func (s *SettlementScheduler) ScheduleDeadline(tradeID uuid.UUID, deadline time.Time) error {
	err := s.redis.ZAdd(s.ctx, settlementDeadlinesKey, redis.Z{
		Score:  float64(deadline.Unix()),
		Member: tradeID.String(),
	}).Err()

	if err != nil {
		s.logger.Error().Err(err).Str("trade_id", tradeID.String()).Msg("Failed to schedule settlement deadline")
		return fmt.Errorf("failed to schedule settlement deadline: %w", err)
	}

	s.logger.Debug().
		Str("trade_id", tradeID.String()).
		Time("deadline", deadline).
		Msg("Settlement deadline scheduled")

	return nil
}

// CancelDeadline drops the deadline for a transaction that settled in time
func (s *SettlementScheduler) CancelDeadline(tradeID uuid.UUID) error {
	if err := s.redis.ZRem(s.ctx, settlementDeadlinesKey, tradeID.String()).Err(); err != nil {
		return fmt.Errorf("failed to cancel settlement deadline: %w", err)
	}
	return nil
}

// Start begins the scheduler loop
func (s *SettlementScheduler) Start() {
	s.logger.Info().Msg("Starting settlement scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler
func (s *SettlementScheduler) Stop() {
	s.logger.Info().Msg("Stopping settlement scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *SettlementScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkOverdueSettlements()
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

func (s *SettlementScheduler) checkOverdueSettlements() {
	now := time.Now().Unix()

	overdue, err := s.redis.ZRangeByScore(s.ctx, settlementDeadlinesKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: 10,
	}).Result()

	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get overdue settlements")
		return
	}

	for _, tradeIDStr := range overdue {
		tradeID, err := uuid.Parse(tradeIDStr)
		if err != nil {
			s.logger.Error().Err(err).Str("trade_id", tradeIDStr).Msg("Invalid trade ID")
			s.redis.ZRem(s.ctx, settlementDeadlinesKey, tradeIDStr)
			continue
		}

		go s.forceFail(tradeID)
	}
}

func (s *SettlementScheduler) forceFail(tradeID uuid.UUID) {
	err := s.settlementService.ForceFailSettlementForScheduler(s.ctx, tradeID)
	defer s.redis.ZRem(s.ctx, settlementDeadlinesKey, tradeID.String())

	if err != nil {
		if errors.Is(err, shared.ErrAlreadySettled) {
			// Settled between the deadline firing and this check.
			return
		}
		s.logger.Error().Err(err).Str("trade_id", tradeID.String()).Msg("Failed to force settlement failure")
	}
}
