package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

// Create persists a new auction together with its initial bid set
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	return r.conn.ExecuteTransaction(func(tx *sql.Tx) error {
		auctionQuery := `
			INSERT INTO auctions (search_id, query, quality_score, status, winning_bid_id, created_at, expires_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`

		_, err := tx.ExecContext(ctx, auctionQuery,
			a.SearchID,
			a.Query,
			a.QualityScore,
			a.Status,
			a.WinningBidID,
			a.CreatedAt,
			a.ExpiresAt,
			a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create auction: %w", err)
		}

		bidQuery := `
			INSERT INTO bids (id, search_id, buyer_name, price, bonus, landing_url, bid_type, advertiser_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`

		for _, b := range a.Bids {
			var advertiserID *uuid.UUID
			if id, ok := b.AdvertiserID(); ok {
				advertiserID = &id
			}
			_, err := tx.ExecContext(ctx, bidQuery,
				b.ID,
				a.SearchID,
				b.BuyerName,
				b.Price,
				b.Bonus,
				b.LandingURL,
				b.Type(),
				advertiserID,
				b.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("failed to create bid: %w", err)
			}
		}

		return nil
	})
}

// GetBySearchID retrieves an auction by its search ID, bids included
func (r *AuctionRepository) GetBySearchID(ctx context.Context, searchID uuid.UUID) (*auction.Auction, error) {
	query := `
		SELECT search_id, query, quality_score, status, winning_bid_id, created_at, expires_at, updated_at
		FROM auctions
		WHERE search_id = $1
	`

	var a auction.Auction
	err := r.conn.GetDB().QueryRowContext(ctx, query, searchID).Scan(
		&a.SearchID,
		&a.Query,
		&a.QualityScore,
		&a.Status,
		&a.WinningBidID,
		&a.CreatedAt,
		&a.ExpiresAt,
		&a.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	bids, err := r.getBids(ctx, searchID)
	if err != nil {
		return nil, err
	}
	a.Bids = bids

	return &a, nil
}

// GetByBidID retrieves the auction owning the given bid
func (r *AuctionRepository) GetByBidID(ctx context.Context, bidID uuid.UUID) (*auction.Auction, error) {
	query := `SELECT search_id FROM bids WHERE id = $1`

	var searchID uuid.UUID
	err := r.conn.GetDB().QueryRowContext(ctx, query, bidID).Scan(&searchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to resolve bid owner: %w", err)
	}

	return r.GetBySearchID(ctx, searchID)
}

// getBids loads all bids of an auction, sorted descending by price with
// insertion order as tiebreak
func (r *AuctionRepository) getBids(ctx context.Context, searchID uuid.UUID) ([]*auction.Bid, error) {
	query := `
		SELECT id, buyer_name, price, bonus, landing_url, bid_type, advertiser_id, created_at
		FROM bids
		WHERE search_id = $1
		ORDER BY price DESC, created_at ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bids: %w", err)
	}
	defer rows.Close()

	var bids []*auction.Bid
	for rows.Next() {
		var (
			b            auction.Bid
			bidType      auction.BidType
			advertiserID *uuid.UUID
		)
		err := rows.Scan(
			&b.ID,
			&b.BuyerName,
			&b.Price,
			&b.Bonus,
			&b.LandingURL,
			&bidType,
			&advertiserID,
			&b.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}

		if bidType == auction.BidTypeAdvertiser && advertiserID != nil {
			b.Source = auction.AdvertiserSource{AdvertiserID: *advertiserID}
		} else {
			b.Source = auction.PlatformSource{}
		}

		bids = append(bids, &b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

/*
Finalize transitions an auction to completed using a conditional UPDATE.
 1. The status predicate guarantees only one caller wins the transition
 2. Concurrent finalizations see zero rows affected and are rejected
 3. The winning bid is committed in the same statement
*/
func (r *AuctionRepository) Finalize(ctx context.Context, searchID, bidID uuid.UUID) error {
	query := `
		UPDATE auctions
		SET status = $2, winning_bid_id = $3, updated_at = $4
		WHERE search_id = $1 AND status = $5
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		searchID,
		auction.StatusCompleted,
		bidID,
		time.Now(),
		auction.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a missing auction from one that lost the race.
		var status auction.Status
		err := r.conn.GetDB().QueryRowContext(ctx, `SELECT status FROM auctions WHERE search_id = $1`, searchID).Scan(&status)
		if err == sql.ErrNoRows {
			return shared.ErrAuctionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check auction status: %w", err)
		}
		return shared.ErrAuctionAlreadyFinalized
	}

	return nil
}
