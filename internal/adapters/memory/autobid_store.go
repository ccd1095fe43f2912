package memory

import (
	"context"
	"sync"
	"time"

	"intent-exchange-service/internal/domain/autobid"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AutoBidStore implements outbound.AutoBidRepository with an in-memory map.
// ReserveSpend runs under the store lock so the decrement-if-sufficient is
// atomic, matching the conditional UPDATE of the postgres repository.
type AutoBidStore struct {
	mu       sync.RWMutex
	settings map[uuid.UUID]*autobid.Settings
}

// NewAutoBidStore creates a new in-memory auto-bid store
func NewAutoBidStore() *AutoBidStore {
	return &AutoBidStore{
		settings: make(map[uuid.UUID]*autobid.Settings),
	}
}

func (s *AutoBidStore) GetSettings(_ context.Context, advertiserID uuid.UUID) (*autobid.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[advertiserID]
	if !ok {
		return nil, shared.ErrAdvertiserNotFound
	}
	return copySettings(settings), nil
}

func (s *AutoBidStore) SaveSettings(_ context.Context, settings *autobid.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copySettings(settings)
	if existing, ok := s.settings[settings.AdvertiserID]; ok {
		// Spend accounting is owned by ReserveSpend, not by settings writes.
		stored.SpentToday = existing.SpentToday
	}
	s.settings[settings.AdvertiserID] = stored
	return nil
}

func (s *AutoBidStore) ListEnabled(_ context.Context) ([]*autobid.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var enabled []*autobid.Settings
	for _, settings := range s.settings {
		if settings.IsEnabled {
			enabled = append(enabled, copySettings(settings))
		}
	}
	return enabled, nil
}

func (s *AutoBidStore) ReserveSpend(_ context.Context, advertiserID uuid.UUID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, ok := s.settings[advertiserID]
	if !ok {
		return shared.ErrAdvertiserNotFound
	}
	if settings.DailyBudget-settings.SpentToday < amount {
		return shared.ErrBudgetExhausted
	}

	settings.SpentToday += amount
	settings.UpdatedAt = time.Now()
	return nil
}

func copySettings(settings *autobid.Settings) *autobid.Settings {
	copied := *settings
	copied.ExcludedKeywords = append([]string(nil), settings.ExcludedKeywords...)
	copied.Keywords = append([]autobid.Keyword(nil), settings.Keywords...)
	return &copied
}
