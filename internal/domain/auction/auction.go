package auction

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Status represents the current status of an auction
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Auction represents a reverse auction opened for a single search query.
// Advertisers bid for the user's attention; the highest price is the current
// leader until the user selects a bid or the TTL expires.
type Auction struct {
	SearchID     uuid.UUID  `json:"search_id"`
	Query        string     `json:"query"`
	QualityScore int        `json:"quality_score"`
	Status       Status     `json:"status"`
	Bids         []*Bid     `json:"bids"`
	WinningBidID *uuid.UUID `json:"winning_bid_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive returns true if the auction is still accepting bids and selections
func (a *Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsFinalized returns true if the auction reached a terminal state
func (a *Auction) IsFinalized() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}

// Expired returns true if the auction TTL has elapsed at the given instant
func (a *Auction) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// AddBid appends a bid. Bids may only be added while the auction is active.
func (a *Auction) AddBid(b *Bid) bool {
	if !a.IsActive() {
		return false
	}
	a.Bids = append(a.Bids, b)
	a.UpdatedAt = time.Now()
	return true
}

// SortBids orders bids descending by price for presentation. The sort is
// stable so equal prices keep insertion order as the tiebreak.
func (a *Auction) SortBids() {
	sort.SliceStable(a.Bids, func(i, j int) bool {
		return a.Bids[i].Price > a.Bids[j].Price
	})
}

// TopBid returns the current leader: the highest-priced bid, with insertion
// order breaking price ties. Returns nil when the auction has no bids.
func (a *Auction) TopBid() *Bid {
	var top *Bid
	for _, b := range a.Bids {
		if top == nil || b.Price > top.Price {
			top = b
		}
	}
	return top
}

// FindBid returns the bid with the given ID, or nil if it is not part of
// this auction
func (a *Auction) FindBid(bidID uuid.UUID) *Bid {
	for _, b := range a.Bids {
		if b.ID == bidID {
			return b
		}
	}
	return nil
}

// Complete marks the auction as completed with the given winning bid
func (a *Auction) Complete(bidID uuid.UUID) {
	a.Status = StatusCompleted
	a.WinningBidID = &bidID
	a.UpdatedAt = time.Now()
}
