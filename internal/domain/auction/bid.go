package auction

import (
	"time"

	"github.com/google/uuid"
)

// BidType identifies who placed a bid
type BidType string

const (
	BidTypePlatform   BidType = "PLATFORM"
	BidTypeAdvertiser BidType = "ADVERTISER"
)

// BidSource is the origin of a bid. Platform bids are synthesized fallbacks
// with no advertiser behind them; advertiser bids carry the advertiser ID.
// Modelling this as a closed interface keeps an advertiser ID from ever
// appearing on a platform bid.
type BidSource interface {
	Type() BidType
}

// PlatformSource marks a synthesized fallback bid placed by the platform
type PlatformSource struct{}

func (PlatformSource) Type() BidType { return BidTypePlatform }

// AdvertiserSource marks a bid placed on behalf of an advertiser
type AdvertiserSource struct {
	AdvertiserID uuid.UUID
}

func (AdvertiserSource) Type() BidType { return BidTypeAdvertiser }

// Bid represents a single bid within an auction. Price is in currency minor
// units and must be positive; fallback bids follow the same contract so the
// settlement path is uniform.
type Bid struct {
	ID         uuid.UUID `json:"id"`
	BuyerName  string    `json:"buyer_name"`
	Price      int64     `json:"price"`
	Bonus      string    `json:"bonus"`
	LandingURL string    `json:"landing_url"`
	Timestamp  time.Time `json:"timestamp"`
	Source     BidSource `json:"-"`
}

// IsValid returns true if the bid carries a positive price and a landing URL
func (b *Bid) IsValid() bool {
	return b.Price > 0 && b.LandingURL != ""
}

// Type returns the bid's origin type
func (b *Bid) Type() BidType {
	if b.Source == nil {
		return BidTypePlatform
	}
	return b.Source.Type()
}

// AdvertiserID returns the advertiser behind the bid, if any
func (b *Bid) AdvertiserID() (uuid.UUID, bool) {
	if src, ok := b.Source.(AdvertiserSource); ok {
		return src.AdvertiserID, true
	}
	return uuid.Nil, false
}
