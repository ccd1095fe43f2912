package app

import (
	"context"
	"testing"

	"intent-exchange-service/internal/adapters/memory"
	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/shared"
	"intent-exchange-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestAutoBidService(store *memory.AutoBidStore) *AutoBidService {
	return NewAutoBidService(AutoBidServiceParams{
		Repo:   store,
		Logger: zerolog.Nop(),
	})
}

func saveSettings(t *testing.T, store *memory.AutoBidStore, settings *autobid.Settings) {
	t.Helper()
	require.NoError(t, store.SaveSettings(context.Background(), settings))
}

func baseSettings(advertiserID uuid.UUID) *autobid.Settings {
	return &autobid.Settings{
		AdvertiserID:     advertiserID,
		DisplayName:      "Phone Shop",
		LandingURL:       "https://shop.example.com/iphone",
		Bonus:            "free case",
		IsEnabled:        true,
		DailyBudget:      10000,
		MaxBidPerKeyword: 3000,
		MinQualityScore:  50,
		Keywords: []autobid.Keyword{
			{Keyword: "아이폰16 자급제", Priority: 3, MatchType: autobid.MatchBroad, Status: autobid.KeywordStatusActive},
		},
	}
}

func TestAutoBidService_Evaluate_AbstainReasons(t *testing.T) {
	advertiserID := uuid.New()

	tests := []struct {
		name     string
		mutate   func(*autobid.Settings)
		req      inbound.EvaluateRequest
		expected inbound.AbstainReason
	}{
		{
			name:     "disabled",
			mutate:   func(s *autobid.Settings) { s.IsEnabled = false },
			req:      inbound.EvaluateRequest{Query: "아이폰16 자급제", QualityScore: 82},
			expected: inbound.AbstainDisabled,
		},
		{
			name:     "quality_below_floor",
			mutate:   func(s *autobid.Settings) {},
			req:      inbound.EvaluateRequest{Query: "아이폰16 자급제", QualityScore: 49},
			expected: inbound.AbstainLowQuality,
		},
		{
			name:     "excluded_keyword",
			mutate:   func(s *autobid.Settings) { s.ExcludedKeywords = []string{"중고"} },
			req:      inbound.EvaluateRequest{Query: "중고 아이폰16 자급제", QualityScore: 82},
			expected: inbound.AbstainExcluded,
		},
		{
			name:     "budget_exhausted",
			mutate:   func(s *autobid.Settings) { s.DailyBudget = 0 },
			req:      inbound.EvaluateRequest{Query: "아이폰16 자급제", QualityScore: 82},
			expected: inbound.AbstainNoBudget,
		},
		{
			name:     "no_keyword_match",
			mutate:   func(s *autobid.Settings) {},
			req:      inbound.EvaluateRequest{Query: "갤럭시 S25 울트라", QualityScore: 82},
			expected: inbound.AbstainNoMatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.NewAutoBidStore()
			settings := baseSettings(advertiserID)
			tc.mutate(settings)
			saveSettings(t, store, settings)

			service := newTestAutoBidService(store)
			req := tc.req
			req.AdvertiserID = advertiserID

			decision, err := service.Evaluate(context.Background(), req)
			require.NoError(t, err)
			require.True(t, decision.Abstain)
			require.Equal(t, tc.expected, decision.Reason)
			require.Zero(t, decision.Amount)
		})
	}
}

func TestAutoBidService_Evaluate_BroadMatchBids(t *testing.T) {
	store := memory.NewAutoBidStore()
	advertiserID := uuid.New()
	saveSettings(t, store, baseSettings(advertiserID))

	service := newTestAutoBidService(store)

	decision, err := service.Evaluate(context.Background(), inbound.EvaluateRequest{
		AdvertiserID: advertiserID,
		Query:        "아이폰16 256GB 자급제",
		QualityScore: 82,
	})
	require.NoError(t, err)

	// A partial token overlap is still a bid, never an abstention.
	require.False(t, decision.Abstain)
	require.Positive(t, decision.Amount)
	require.LessOrEqual(t, decision.Amount, int64(3000))
	require.Equal(t, "아이폰16 자급제", decision.Keyword)
	require.Equal(t, string(autobid.MatchBroad), decision.MatchType)
}

func TestAutoBidService_Evaluate_CeilingIsRemainingBudget(t *testing.T) {
	store := memory.NewAutoBidStore()
	advertiserID := uuid.New()

	settings := baseSettings(advertiserID)
	settings.DailyBudget = 200
	settings.Keywords = []autobid.Keyword{
		{Keyword: "아이폰16 자급제", Priority: 5, MatchType: autobid.MatchExact, Status: autobid.KeywordStatusActive},
	}
	saveSettings(t, store, settings)

	service := newTestAutoBidService(store)

	decision, err := service.Evaluate(context.Background(), inbound.EvaluateRequest{
		AdvertiserID:    advertiserID,
		Query:           "아이폰16 자급제",
		QualityScore:    100,
		CompetitorCount: 10,
	})
	require.NoError(t, err)
	require.False(t, decision.Abstain)
	require.Equal(t, int64(200), decision.Amount)
}

func TestAutoBidService_Evaluate_CeilingIsMaxBid(t *testing.T) {
	store := memory.NewAutoBidStore()
	advertiserID := uuid.New()

	settings := baseSettings(advertiserID)
	settings.Keywords = []autobid.Keyword{
		{Keyword: "아이폰16 자급제", Priority: 5, MatchType: autobid.MatchExact, Status: autobid.KeywordStatusActive},
	}
	saveSettings(t, store, settings)

	service := newTestAutoBidService(store)

	// Exact match, top quality, heavy competition: the raw amount equals the
	// cap, and the cap is never exceeded.
	decision, err := service.Evaluate(context.Background(), inbound.EvaluateRequest{
		AdvertiserID:    advertiserID,
		Query:           "아이폰16 자급제",
		QualityScore:    100,
		CompetitorCount: 6,
	})
	require.NoError(t, err)
	require.False(t, decision.Abstain)
	require.Equal(t, int64(3000), decision.Amount)
}

func TestAutoBidService_Evaluate_UnknownAdvertiser(t *testing.T) {
	service := newTestAutoBidService(memory.NewAutoBidStore())

	_, err := service.Evaluate(context.Background(), inbound.EvaluateRequest{
		AdvertiserID: uuid.New(),
		Query:        "iphone 16",
		QualityScore: 80,
	})
	require.ErrorIs(t, err, shared.ErrAdvertiserNotFound)
}

func TestAutoBidService_Solicit(t *testing.T) {
	store := memory.NewAutoBidStore()

	bidder := uuid.New()
	saveSettings(t, store, baseSettings(bidder))

	// This advertiser's quality floor is above the query score, so it sits
	// the auction out.
	strict := baseSettings(uuid.New())
	strict.MinQualityScore = 95
	saveSettings(t, store, strict)

	disabled := baseSettings(uuid.New())
	disabled.IsEnabled = false
	saveSettings(t, store, disabled)

	service := newTestAutoBidService(store)
	defer service.Stop()

	bids := service.Solicit(context.Background(), "아이폰16 자급제", 82)
	require.Len(t, bids, 1)

	bid := bids[0]
	advertiserID, ok := bid.AdvertiserID()
	require.True(t, ok)
	require.Equal(t, bidder, advertiserID)
	require.Equal(t, "Phone Shop", bid.BuyerName)
	require.Equal(t, "free case", bid.Bonus)
	require.Equal(t, "https://shop.example.com/iphone", bid.LandingURL)
	require.True(t, bid.IsValid())
}

func TestAutoBidService_Solicit_NoAdvertisers(t *testing.T) {
	service := newTestAutoBidService(memory.NewAutoBidStore())
	defer service.Stop()

	require.Empty(t, service.Solicit(context.Background(), "iphone 16", 80))
}

func TestAutoBidService_UpdateSettings(t *testing.T) {
	store := memory.NewAutoBidStore()
	service := newTestAutoBidService(store)
	advertiserID := uuid.New()

	// First write creates the settings row.
	settings, err := service.UpdateSettings(context.Background(), inbound.UpdateSettingsRequest{
		AdvertiserID:     advertiserID,
		IsEnabled:        true,
		DailyBudget:      5000,
		MaxBidPerKeyword: 1000,
		MinQualityScore:  40,
	})
	require.NoError(t, err)
	require.Equal(t, int64(5000), settings.DailyBudget)

	_, err = service.UpdateSettings(context.Background(), inbound.UpdateSettingsRequest{
		AdvertiserID: advertiserID,
		DailyBudget:  -1,
	})
	require.ErrorIs(t, err, shared.ErrInvalidBudget)

	_, err = service.UpdateSettings(context.Background(), inbound.UpdateSettingsRequest{
		AdvertiserID:    advertiserID,
		MinQualityScore: 101,
	})
	require.ErrorIs(t, err, shared.ErrInvalidRequest)
}

func TestAutoBidService_UpdateKeywords_Validation(t *testing.T) {
	store := memory.NewAutoBidStore()
	advertiserID := uuid.New()
	saveSettings(t, store, baseSettings(advertiserID))

	service := newTestAutoBidService(store)

	tests := []struct {
		name    string
		keyword autobid.Keyword
	}{
		{name: "empty_keyword", keyword: autobid.Keyword{Keyword: "", Priority: 3, MatchType: autobid.MatchExact, Status: autobid.KeywordStatusActive}},
		{name: "priority_too_low", keyword: autobid.Keyword{Keyword: "iphone", Priority: 0, MatchType: autobid.MatchExact, Status: autobid.KeywordStatusActive}},
		{name: "priority_too_high", keyword: autobid.Keyword{Keyword: "iphone", Priority: 6, MatchType: autobid.MatchExact, Status: autobid.KeywordStatusActive}},
		{name: "bad_match_type", keyword: autobid.Keyword{Keyword: "iphone", Priority: 3, MatchType: "fuzzy", Status: autobid.KeywordStatusActive}},
		{name: "bad_status", keyword: autobid.Keyword{Keyword: "iphone", Priority: 3, MatchType: autobid.MatchExact, Status: "archived"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.UpdateKeywords(context.Background(), advertiserID, []autobid.Keyword{tc.keyword})
			require.ErrorIs(t, err, shared.ErrInvalidKeyword)
		})
	}

	settings, err := service.UpdateKeywords(context.Background(), advertiserID, []autobid.Keyword{
		{Keyword: "iphone 16", Priority: 4, MatchType: autobid.MatchPhrase, Status: autobid.KeywordStatusActive},
	})
	require.NoError(t, err)
	require.Len(t, settings.Keywords, 1)
	require.Equal(t, "iphone 16", settings.Keywords[0].Keyword)
}

func TestAutoBidService_UpdateExcludedKeywords(t *testing.T) {
	store := memory.NewAutoBidStore()
	advertiserID := uuid.New()
	saveSettings(t, store, baseSettings(advertiserID))

	service := newTestAutoBidService(store)

	settings, err := service.UpdateExcludedKeywords(context.Background(), inbound.ExcludedKeywordRequest{
		AdvertiserID: advertiserID,
		Action:       inbound.ExcludedKeywordAdd,
		Keyword:      "중고",
	})
	require.NoError(t, err)
	require.Contains(t, settings.ExcludedKeywords, "중고")

	settings, err = service.UpdateExcludedKeywords(context.Background(), inbound.ExcludedKeywordRequest{
		AdvertiserID: advertiserID,
		Action:       inbound.ExcludedKeywordRemove,
		Keyword:      "중고",
	})
	require.NoError(t, err)
	require.NotContains(t, settings.ExcludedKeywords, "중고")

	_, err = service.UpdateExcludedKeywords(context.Background(), inbound.ExcludedKeywordRequest{
		AdvertiserID: advertiserID,
		Action:       "toggle",
		Keyword:      "중고",
	})
	require.ErrorIs(t, err, shared.ErrInvalidRequest)

	_, err = service.UpdateExcludedKeywords(context.Background(), inbound.ExcludedKeywordRequest{
		AdvertiserID: advertiserID,
		Action:       inbound.ExcludedKeywordAdd,
		Keyword:      "",
	})
	require.ErrorIs(t, err, shared.ErrInvalidKeyword)
}
