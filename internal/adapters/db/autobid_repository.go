package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AutoBidRepository implements the advertiser auto-bid settings repository
type AutoBidRepository struct {
	conn *Connection
}

// NewAutoBidRepository creates a new auto-bid repository
func NewAutoBidRepository(conn *Connection) *AutoBidRepository {
	return &AutoBidRepository{conn: conn}
}

const autoBidColumns = `
	advertiser_id, display_name, landing_url, bonus, is_enabled, daily_budget,
	spent_today, max_bid_per_keyword, min_quality_score, excluded_keywords,
	keywords, updated_at
`

// GetSettings retrieves an advertiser's auto-bid settings
func (r *AutoBidRepository) GetSettings(ctx context.Context, advertiserID uuid.UUID) (*autobid.Settings, error) {
	query := `SELECT ` + autoBidColumns + ` FROM autobid_settings WHERE advertiser_id = $1`
	return r.scanSettings(r.conn.GetDB().QueryRowContext(ctx, query, advertiserID))
}

// SaveSettings creates or replaces an advertiser's auto-bid settings
func (r *AutoBidRepository) SaveSettings(ctx context.Context, settings *autobid.Settings) error {
	keywordsJSON, err := json.Marshal(settings.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	query := `
		INSERT INTO autobid_settings (advertiser_id, display_name, landing_url, bonus, is_enabled,
			daily_budget, spent_today, max_bid_per_keyword, min_quality_score,
			excluded_keywords, keywords, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (advertiser_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			landing_url = EXCLUDED.landing_url,
			bonus = EXCLUDED.bonus,
			is_enabled = EXCLUDED.is_enabled,
			daily_budget = EXCLUDED.daily_budget,
			max_bid_per_keyword = EXCLUDED.max_bid_per_keyword,
			min_quality_score = EXCLUDED.min_quality_score,
			excluded_keywords = EXCLUDED.excluded_keywords,
			keywords = EXCLUDED.keywords,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.conn.GetDB().ExecContext(ctx, query,
		settings.AdvertiserID,
		settings.DisplayName,
		settings.LandingURL,
		settings.Bonus,
		settings.IsEnabled,
		settings.DailyBudget,
		settings.SpentToday,
		settings.MaxBidPerKeyword,
		settings.MinQualityScore,
		pq.Array(settings.ExcludedKeywords),
		keywordsJSON,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save auto-bid settings: %w", err)
	}

	return nil
}

// ListEnabled retrieves all advertisers with auto-bidding enabled
func (r *AutoBidRepository) ListEnabled(ctx context.Context) ([]*autobid.Settings, error) {
	query := `SELECT ` + autoBidColumns + ` FROM autobid_settings WHERE is_enabled = TRUE`

	rows, err := r.conn.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled advertisers: %w", err)
	}
	defer rows.Close()

	var all []*autobid.Settings
	for rows.Next() {
		settings, err := r.scanSettingsRow(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, settings)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return all, nil
}

/*
ReserveSpend decrements the remaining daily budget with a conditional
UPDATE. The budget predicate makes the decrement-if-sufficient a single
atomic statement, so parallel auction wins for the same advertiser cannot
overspend the daily budget.
*/
func (r *AutoBidRepository) ReserveSpend(ctx context.Context, advertiserID uuid.UUID, amount int64) error {
	query := `
		UPDATE autobid_settings
		SET spent_today = spent_today + $2, updated_at = $3
		WHERE advertiser_id = $1 AND daily_budget - spent_today >= $2
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, advertiserID, amount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reserve spend: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		err := r.conn.GetDB().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM autobid_settings WHERE advertiser_id = $1)`, advertiserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check advertiser: %w", err)
		}
		if !exists {
			return shared.ErrAdvertiserNotFound
		}
		return shared.ErrBudgetExhausted
	}

	return nil
}

func (r *AutoBidRepository) scanSettings(row *sql.Row) (*autobid.Settings, error) {
	var (
		settings     autobid.Settings
		excluded     pq.StringArray
		keywordsJSON []byte
	)

	err := row.Scan(
		&settings.AdvertiserID,
		&settings.DisplayName,
		&settings.LandingURL,
		&settings.Bonus,
		&settings.IsEnabled,
		&settings.DailyBudget,
		&settings.SpentToday,
		&settings.MaxBidPerKeyword,
		&settings.MinQualityScore,
		&excluded,
		&keywordsJSON,
		&settings.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAdvertiserNotFound
		}
		return nil, fmt.Errorf("failed to get auto-bid settings: %w", err)
	}

	settings.ExcludedKeywords = excluded
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &settings.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords: %w", err)
		}
	}

	return &settings, nil
}

func (r *AutoBidRepository) scanSettingsRow(rows *sql.Rows) (*autobid.Settings, error) {
	var (
		settings     autobid.Settings
		excluded     pq.StringArray
		keywordsJSON []byte
	)

	err := rows.Scan(
		&settings.AdvertiserID,
		&settings.DisplayName,
		&settings.LandingURL,
		&settings.Bonus,
		&settings.IsEnabled,
		&settings.DailyBudget,
		&settings.SpentToday,
		&settings.MaxBidPerKeyword,
		&settings.MinQualityScore,
		&excluded,
		&keywordsJSON,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan auto-bid settings: %w", err)
	}

	settings.ExcludedKeywords = excluded
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &settings.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords: %w", err)
		}
	}

	return &settings, nil
}
