// Package quality provides the HTTP client for the external query scoring
// service.
package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"intent-exchange-service/internal/config"
	"intent-exchange-service/internal/domain/quality"
	"intent-exchange-service/internal/domain/shared"

	"github.com/rs/zerolog"
)

// Client calls the external quality scorer. Outages surface as
// ErrScorerUnavailable; the auction service substitutes the local fallback
// estimate so the pipeline is never blocked.
type Client struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

type ClientParams struct {
	Config config.ScorerConfig
	Logger zerolog.Logger
}

// NewClient creates a new scorer client
func NewClient(params ClientParams) *Client {
	return &Client{
		url:        params.Config.URL,
		httpClient: &http.Client{Timeout: params.Config.Timeout},
		logger:     params.Logger.With().Str("component", "quality_scorer").Logger(),
	}
}

type scoreRequest struct {
	Query string `json:"query"`
}

type scoreResponse struct {
	Score           int      `json:"score"`
	CommercialValue string   `json:"commercialValue"`
	Keywords        []string `json:"keywords"`
	Suggestions     []string `json:"suggestions"`
}

// Score evaluates the commercial quality of a query via the scorer service
func (c *Client) Score(ctx context.Context, query string) (*quality.Report, error) {
	body, err := json.Marshal(scoreRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scorer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build scorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Scorer request failed")
		return nil, shared.ErrScorerUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Scorer returned non-OK status")
		return nil, shared.ErrScorerUnavailable
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to decode scorer response")
		return nil, shared.ErrScorerUnavailable
	}

	if decoded.Score < 0 || decoded.Score > 100 {
		c.logger.Warn().Int("score", decoded.Score).Msg("Scorer returned out-of-range score")
		return nil, shared.ErrScorerUnavailable
	}

	return &quality.Report{
		Score:           decoded.Score,
		CommercialValue: quality.CommercialValue(decoded.CommercialValue),
		Keywords:        decoded.Keywords,
		Suggestions:     decoded.Suggestions,
	}, nil
}
