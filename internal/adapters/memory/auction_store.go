// Package memory provides in-memory implementations of the outbound stores.
// Used for testing and development; the CAS semantics mirror the conditional
// updates of the postgres repositories.
package memory

import (
	"context"
	"sync"
	"time"

	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionStore implements outbound.AuctionRepository with in-memory maps
type AuctionStore struct {
	mu        sync.RWMutex
	auctions  map[uuid.UUID]*auction.Auction
	bidOwners map[uuid.UUID]uuid.UUID // bid ID -> search ID
}

// NewAuctionStore creates a new in-memory auction store
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions:  make(map[uuid.UUID]*auction.Auction),
		bidOwners: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *AuctionStore) Create(_ context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	stored := *a
	stored.Bids = append([]*auction.Bid(nil), a.Bids...)
	s.auctions[a.SearchID] = &stored
	for _, b := range a.Bids {
		s.bidOwners[b.ID] = a.SearchID
	}
	return nil
}

func (s *AuctionStore) GetBySearchID(_ context.Context, searchID uuid.UUID) (*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[searchID]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return copyAuction(a), nil
}

func (s *AuctionStore) GetByBidID(_ context.Context, bidID uuid.UUID) (*auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchID, ok := s.bidOwners[bidID]
	if !ok {
		return nil, shared.ErrBidNotFound
	}
	a, ok := s.auctions[searchID]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return copyAuction(a), nil
}

// Finalize performs the active -> completed compare-and-set under the store
// lock, matching the conditional UPDATE of the postgres repository
func (s *AuctionStore) Finalize(_ context.Context, searchID, bidID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[searchID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if a.Status != auction.StatusActive {
		return shared.ErrAuctionAlreadyFinalized
	}

	a.Status = auction.StatusCompleted
	winner := bidID
	a.WinningBidID = &winner
	a.UpdatedAt = time.Now()
	return nil
}

func copyAuction(a *auction.Auction) *auction.Auction {
	copied := *a
	copied.Bids = append([]*auction.Bid(nil), a.Bids...)
	if a.WinningBidID != nil {
		winner := *a.WinningBidID
		copied.WinningBidID = &winner
	}
	return &copied
}
