package quota

import (
	"context"
	"fmt"
	"time"

	"intent-exchange-service/internal/domain/shared"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisQuota implements outbound.SubmissionQuota on a per-user, per-day
// Redis counter. INCR is atomic, so concurrent submissions from the same
// user cannot slip past the limit.
type RedisQuota struct {
	client *redis.Client
	limit  int
	logger zerolog.Logger
	now    func() time.Time
}

type RedisQuotaParams struct {
	RedisClient *redis.Client
	DailyLimit  int
	Logger      zerolog.Logger
}

// NewRedisQuota creates a new Redis-backed submission quota
func NewRedisQuota(params RedisQuotaParams) *RedisQuota {
	return &RedisQuota{
		client: params.RedisClient,
		limit:  params.DailyLimit,
		logger: params.Logger.With().Str("component", "submission_quota").Logger(),
		now:    time.Now,
	}
}

// Allow consumes one submission slot for the user, returning
// ErrQuotaExceeded once the daily limit is spent. The counter key expires
// at end of day so quotas reset without a sweep job.
func (q *RedisQuota) Allow(ctx context.Context, userID string) error {
	now := q.now()
	key := fmt.Sprintf("quota:submissions:%s:%s", userID, now.Format("2006-01-02"))

	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment submission quota: %w", err)
	}

	if count == 1 {
		endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
		if err := q.client.ExpireAt(ctx, key, endOfDay).Err(); err != nil {
			q.logger.Error().Err(err).Str("key", key).Msg("Failed to set quota key expiry")
		}
	}

	if count > int64(q.limit) {
		q.logger.Warn().
			Str("user_id", userID).
			Int64("count", count).
			Int("limit", q.limit).
			Msg("Daily submission quota exceeded")
		return shared.ErrQuotaExceeded
	}

	return nil
}
