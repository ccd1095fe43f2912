package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newBid(price int64) *Bid {
	return &Bid{
		ID:         uuid.New(),
		BuyerName:  "buyer",
		Price:      price,
		LandingURL: "https://example.com",
		Timestamp:  time.Now(),
		Source:     PlatformSource{},
	}
}

func TestAuction_TopBid(t *testing.T) {
	a := &Auction{SearchID: uuid.New(), Status: StatusActive}
	require.Nil(t, a.TopBid())

	low := newBid(100)
	high := newBid(300)
	tieFirst := newBid(300)

	require.True(t, a.AddBid(low))
	require.True(t, a.AddBid(high))
	require.True(t, a.AddBid(tieFirst))

	// Highest price wins; insertion order breaks the tie.
	top := a.TopBid()
	require.NotNil(t, top)
	require.Equal(t, high.ID, top.ID)
}

func TestAuction_SortBids_Stable(t *testing.T) {
	a := &Auction{SearchID: uuid.New(), Status: StatusActive}

	first := newBid(200)
	second := newBid(500)
	third := newBid(200)

	a.AddBid(first)
	a.AddBid(second)
	a.AddBid(third)
	a.SortBids()

	require.Equal(t, second.ID, a.Bids[0].ID)
	require.Equal(t, first.ID, a.Bids[1].ID)
	require.Equal(t, third.ID, a.Bids[2].ID)
}

func TestAuction_AddBid_RejectedWhenFinalized(t *testing.T) {
	a := &Auction{SearchID: uuid.New(), Status: StatusActive}
	winner := newBid(100)
	a.AddBid(winner)

	a.Complete(winner.ID)
	require.True(t, a.IsFinalized())
	require.False(t, a.AddBid(newBid(200)))
	require.Len(t, a.Bids, 1)
}

func TestAuction_Expired(t *testing.T) {
	now := time.Now()
	a := &Auction{SearchID: uuid.New(), Status: StatusActive, ExpiresAt: now.Add(time.Minute)}

	require.False(t, a.Expired(now))
	require.False(t, a.Expired(now.Add(time.Minute)))
	require.True(t, a.Expired(now.Add(time.Minute+time.Second)))
}

func TestAuction_FindBid(t *testing.T) {
	a := &Auction{SearchID: uuid.New(), Status: StatusActive}
	b := newBid(100)
	a.AddBid(b)

	require.Equal(t, b, a.FindBid(b.ID))
	require.Nil(t, a.FindBid(uuid.New()))
}

func TestBid_Type(t *testing.T) {
	platform := newBid(100)
	require.Equal(t, BidTypePlatform, platform.Type())
	_, ok := platform.AdvertiserID()
	require.False(t, ok)

	advertiserID := uuid.New()
	adv := &Bid{
		ID:         uuid.New(),
		Price:      200,
		LandingURL: "https://shop.example.com",
		Source:     AdvertiserSource{AdvertiserID: advertiserID},
	}
	require.Equal(t, BidTypeAdvertiser, adv.Type())
	got, ok := adv.AdvertiserID()
	require.True(t, ok)
	require.Equal(t, advertiserID, got)
}

func TestBid_IsValid(t *testing.T) {
	require.True(t, newBid(1).IsValid())
	require.False(t, newBid(0).IsValid())
	require.False(t, newBid(-5).IsValid())

	noURL := newBid(100)
	noURL.LandingURL = ""
	require.False(t, noURL.IsValid())
}
