package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/shared"
	"intent-exchange-service/internal/metrics"
	"intent-exchange-service/internal/ports/inbound"
	"intent-exchange-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	solicitMaxWorkers  = 16
	solicitMaxCapacity = 128
)

// AutoBidService implements the per-advertiser bid/abstain policy engine
type AutoBidService struct {
	repo   outbound.AutoBidRepository
	pool   *pond.WorkerPool
	logger zerolog.Logger
}

type AutoBidServiceParams struct {
	Repo   outbound.AutoBidRepository
	Logger zerolog.Logger
}

// NewAutoBidService creates a new auto-bid service
func NewAutoBidService(params AutoBidServiceParams) *AutoBidService {
	return &AutoBidService{
		repo:   params.Repo,
		pool:   pond.New(solicitMaxWorkers, solicitMaxCapacity, pond.Strategy(pond.Balanced())),
		logger: params.Logger.With().Str("component", "autobid_service").Logger(),
	}
}

// Evaluate decides whether and how much the advertiser bids against an
// incoming query. Abstentions are explicit and consume no budget; the two
// hard ceilings (per-keyword cap, remaining daily budget) are never exceeded.
func (service *AutoBidService) Evaluate(ctx context.Context, req inbound.EvaluateRequest) (*inbound.BidDecision, error) {
	settings, err := service.repo.GetSettings(ctx, req.AdvertiserID)
	if err != nil {
		return nil, err
	}

	decision := service.evaluateSettings(settings, req)

	outcome := "bid"
	if decision.Abstain {
		outcome = string(decision.Reason)
	}
	metrics.AutoBidEvaluations.WithLabelValues(outcome).Inc()

	service.logger.Debug().
		Str("advertiser_id", req.AdvertiserID.String()).
		Str("query", req.Query).
		Bool("abstain", decision.Abstain).
		Str("reason", string(decision.Reason)).
		Int64("amount", decision.Amount).
		Msg("Auto-bid evaluated")

	return decision, nil
}

func (service *AutoBidService) evaluateSettings(settings *autobid.Settings, req inbound.EvaluateRequest) *inbound.BidDecision {
	if !settings.IsEnabled {
		return abstain(inbound.AbstainDisabled)
	}
	if req.QualityScore < settings.MinQualityScore {
		return abstain(inbound.AbstainLowQuality)
	}
	if settings.IsExcluded(req.Query) {
		return abstain(inbound.AbstainExcluded)
	}

	remaining := settings.RemainingBudget()
	if remaining <= 0 {
		return abstain(inbound.AbstainNoBudget)
	}

	match := settings.BestMatch(req.Query)
	if match == nil {
		return abstain(inbound.AbstainNoMatch)
	}

	amount := bidAmount(settings.MaxBidPerKeyword, match.Score, req.QualityScore, req.CompetitorCount)
	if amount > settings.MaxBidPerKeyword {
		amount = settings.MaxBidPerKeyword
	}
	if amount > remaining {
		amount = remaining
	}
	if amount <= 0 {
		return abstain(inbound.AbstainNoBudget)
	}

	return &inbound.BidDecision{
		Amount:    amount,
		Keyword:   match.Keyword.Keyword,
		MatchType: string(match.Keyword.MatchType),
	}
}

// bidAmount scales the per-keyword cap by match tightness and query quality,
// with competition pushing the price toward the cap. The caller clamps the
// result to the hard ceilings.
func bidAmount(maxBid int64, matchScore float64, qualityScore, competitorCount int) int64 {
	qualityFactor := 0.5 + float64(qualityScore)/200.0
	competitionFactor := 0.7 + 0.05*math.Min(float64(competitorCount), 6)
	amount := float64(maxBid) * matchScore * qualityFactor * competitionFactor
	return int64(math.Round(amount))
}

func abstain(reason inbound.AbstainReason) *inbound.BidDecision {
	return &inbound.BidDecision{Abstain: true, Reason: reason}
}

// Solicit runs Evaluate for every enabled advertiser concurrently on the
// worker pool and materializes the resulting bids
func (service *AutoBidService) Solicit(ctx context.Context, query string, qualityScore int) []*auction.Bid {
	enabled, err := service.repo.ListEnabled(ctx)
	if err != nil {
		service.logger.Error().Err(err).Msg("Failed to list enabled advertisers")
		return nil
	}
	if len(enabled) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		bids []*auction.Bid
	)

	group, _ := service.pool.GroupContext(ctx)
	for _, settings := range enabled {
		settings := settings
		group.Submit(func() error {
			req := inbound.EvaluateRequest{
				AdvertiserID:    settings.AdvertiserID,
				Query:           query,
				QualityScore:    qualityScore,
				CompetitorCount: len(enabled) - 1,
			}
			decision := service.evaluateSettings(settings, req)

			outcome := "bid"
			if decision.Abstain {
				outcome = string(decision.Reason)
			}
			metrics.AutoBidEvaluations.WithLabelValues(outcome).Inc()

			if decision.Abstain {
				return nil
			}

			b := &auction.Bid{
				ID:         uuid.New(),
				BuyerName:  settings.DisplayName,
				Price:      decision.Amount,
				Bonus:      settings.Bonus,
				LandingURL: settings.LandingURL,
				Timestamp:  time.Now(),
				Source:     auction.AdvertiserSource{AdvertiserID: settings.AdvertiserID},
			}
			if !b.IsValid() {
				service.logger.Warn().
					Str("advertiser_id", settings.AdvertiserID.String()).
					Msg("Discarding invalid auto-bid")
				return nil
			}

			mu.Lock()
			bids = append(bids, b)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		service.logger.Error().Err(err).Msg("Bid solicitation group failed")
	}

	return bids
}

// GetSettings retrieves an advertiser's auto-bid settings
func (service *AutoBidService) GetSettings(ctx context.Context, advertiserID uuid.UUID) (*autobid.Settings, error) {
	return service.repo.GetSettings(ctx, advertiserID)
}

// UpdateSettings replaces the advertiser's policy knobs, creating the
// settings row on first write
func (service *AutoBidService) UpdateSettings(ctx context.Context, req inbound.UpdateSettingsRequest) (*autobid.Settings, error) {
	if req.DailyBudget < 0 || req.MaxBidPerKeyword < 0 {
		return nil, shared.ErrInvalidBudget
	}
	if req.MinQualityScore < 0 || req.MinQualityScore > 100 {
		return nil, shared.ErrInvalidRequest
	}

	settings, err := service.repo.GetSettings(ctx, req.AdvertiserID)
	if err != nil {
		if !errors.Is(err, shared.ErrAdvertiserNotFound) {
			return nil, err
		}
		settings = &autobid.Settings{AdvertiserID: req.AdvertiserID}
	}

	settings.DisplayName = req.DisplayName
	settings.LandingURL = req.LandingURL
	settings.Bonus = req.Bonus
	settings.IsEnabled = req.IsEnabled
	settings.DailyBudget = req.DailyBudget
	settings.MaxBidPerKeyword = req.MaxBidPerKeyword
	settings.MinQualityScore = req.MinQualityScore
	settings.UpdatedAt = time.Now()

	if err := service.repo.SaveSettings(ctx, settings); err != nil {
		service.logger.Error().Err(err).Str("advertiser_id", req.AdvertiserID.String()).Msg("Failed to save settings")
		return nil, err
	}

	service.logger.Info().
		Str("advertiser_id", req.AdvertiserID.String()).
		Bool("is_enabled", settings.IsEnabled).
		Int64("daily_budget", settings.DailyBudget).
		Msg("Auto-bid settings updated")

	return settings, nil
}

// UpdateKeywords replaces the advertiser's keyword list
func (service *AutoBidService) UpdateKeywords(ctx context.Context, advertiserID uuid.UUID, keywords []autobid.Keyword) (*autobid.Settings, error) {
	for _, kw := range keywords {
		if kw.Keyword == "" || kw.Priority < 1 || kw.Priority > 5 {
			return nil, shared.ErrInvalidKeyword
		}
		switch kw.MatchType {
		case autobid.MatchExact, autobid.MatchPhrase, autobid.MatchBroad:
		default:
			return nil, shared.ErrInvalidKeyword
		}
		switch kw.Status {
		case autobid.KeywordStatusActive, autobid.KeywordStatusPaused:
		default:
			return nil, shared.ErrInvalidKeyword
		}
	}

	settings, err := service.repo.GetSettings(ctx, advertiserID)
	if err != nil {
		return nil, err
	}

	settings.Keywords = keywords
	settings.UpdatedAt = time.Now()

	if err := service.repo.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}

	service.logger.Info().
		Str("advertiser_id", advertiserID.String()).
		Int("keyword_count", len(keywords)).
		Msg("Keywords updated")

	return settings, nil
}

// UpdateExcludedKeywords adds or removes one excluded keyword
func (service *AutoBidService) UpdateExcludedKeywords(ctx context.Context, req inbound.ExcludedKeywordRequest) (*autobid.Settings, error) {
	if req.Keyword == "" {
		return nil, shared.ErrInvalidKeyword
	}

	settings, err := service.repo.GetSettings(ctx, req.AdvertiserID)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case inbound.ExcludedKeywordAdd:
		settings.AddExcludedKeyword(req.Keyword)
	case inbound.ExcludedKeywordRemove:
		settings.RemoveExcludedKeyword(req.Keyword)
	default:
		return nil, shared.ErrInvalidRequest
	}

	if err := service.repo.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Stop releases the solicitation worker pool
func (service *AutoBidService) Stop() {
	service.pool.StopAndWait()
}
