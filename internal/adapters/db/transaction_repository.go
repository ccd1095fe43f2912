package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"intent-exchange-service/internal/domain/settlement"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
)

// TransactionRepository implements the transaction repository interface.
// Transactions are an append-then-settle audit trail; there is no delete.
type TransactionRepository struct {
	conn *Connection
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(conn *Connection) *TransactionRepository {
	return &TransactionRepository{conn: conn}
}

// Create persists a new transaction. The bid_id unique constraint enforces
// one transaction per winning bid.
func (r *TransactionRepository) Create(ctx context.Context, tx *settlement.Transaction) error {
	query := `
		INSERT INTO transactions (id, search_id, bid_id, query, buyer_name, primary_reward, status, v_atf, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		tx.ID,
		tx.SearchID,
		tx.BidID,
		tx.Query,
		tx.BuyerName,
		tx.PrimaryReward,
		tx.Status,
		tx.VAtf,
		tx.CreatedAt,
		tx.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

const transactionColumns = `
	id, search_id, bid_id, query, buyer_name, primary_reward, status,
	secondary_reward, clicked_at, v_atf, decision, settled_amount, settled_at,
	dwell_time, created_at, updated_at
`

// GetByID retrieves a transaction by trade ID
func (r *TransactionRepository) GetByID(ctx context.Context, tradeID uuid.UUID) (*settlement.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanTransaction(r.conn.GetDB().QueryRowContext(ctx, query, tradeID))
}

// GetByBidID retrieves the transaction created for a winning bid
func (r *TransactionRepository) GetByBidID(ctx context.Context, bidID uuid.UUID) (*settlement.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE bid_id = $1`
	return r.scanTransaction(r.conn.GetDB().QueryRowContext(ctx, query, bidID))
}

func (r *TransactionRepository) scanTransaction(row *sql.Row) (*settlement.Transaction, error) {
	var (
		tx            settlement.Transaction
		decision      *string
		settledAmount *int64
		settledAt     *time.Time
		dwellTime     *float64
	)

	err := row.Scan(
		&tx.ID,
		&tx.SearchID,
		&tx.BidID,
		&tx.Query,
		&tx.BuyerName,
		&tx.PrimaryReward,
		&tx.Status,
		&tx.SecondaryReward,
		&tx.ClickedAt,
		&tx.VAtf,
		&decision,
		&settledAmount,
		&settledAt,
		&dwellTime,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if decision != nil && settledAmount != nil && settledAt != nil {
		tx.Settlement = &settlement.SettlementRecord{
			Decision:      settlement.Decision(*decision),
			SettledAmount: *settledAmount,
			SettledAt:     *settledAt,
			Metrics: settlement.SlaMetrics{
				VAtf:    tx.VAtf,
				Clicked: tx.ClickedAt != nil,
			},
		}
		if dwellTime != nil {
			tx.Settlement.Metrics.DwellTimeSeconds = *dwellTime
		}
	}

	return &tx, nil
}

/*
MarkClicked transitions PRIMARY_COMPLETE -> PENDING_VERIFICATION with a
conditional UPDATE, so duplicate click deliveries cannot restart the dwell
clock: only the first caller's click timestamp sticks.
*/
func (r *TransactionRepository) MarkClicked(ctx context.Context, tradeID uuid.UUID, clickedAt time.Time, vAtf float64) error {
	query := `
		UPDATE transactions
		SET status = $2, clicked_at = $3, v_atf = $4, updated_at = $3
		WHERE id = $1 AND status = $5
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		tradeID,
		settlement.StatusPendingVerification,
		clickedAt,
		vAtf,
		settlement.StatusPrimaryComplete,
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction clicked: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var status settlement.Status
		err := r.conn.GetDB().QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = $1`, tradeID).Scan(&status)
		if err == sql.ErrNoRows {
			return shared.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check transaction status: %w", err)
		}
		return shared.ErrClickAlreadyRecorded
	}

	return nil
}

/*
Settle writes the settlement record and terminal status with a conditional
UPDATE on PENDING_VERIFICATION. Settlement is write-once: a re-delivered
return report sees zero rows affected and is rejected without touching the
stored record.
*/
func (r *TransactionRepository) Settle(ctx context.Context, tradeID uuid.UUID, rec *settlement.SettlementRecord) (*settlement.Transaction, error) {
	terminal := settlement.StatusSettled
	if rec.Decision == settlement.DecisionFailed {
		terminal = settlement.StatusFailed
	}

	query := `
		UPDATE transactions
		SET status = $2, secondary_reward = $3, decision = $4, settled_amount = $3,
		    settled_at = $5, dwell_time = $6, updated_at = $5
		WHERE id = $1 AND status = $7
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		tradeID,
		terminal,
		rec.SettledAmount,
		rec.Decision,
		rec.SettledAt,
		rec.Metrics.DwellTimeSeconds,
		settlement.StatusPendingVerification,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to settle transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var status settlement.Status
		err := r.conn.GetDB().QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = $1`, tradeID).Scan(&status)
		if err == sql.ErrNoRows {
			return nil, shared.ErrTransactionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check transaction status: %w", err)
		}
		if status == settlement.StatusPrimaryComplete {
			return nil, shared.ErrClickNotRegistered
		}
		return nil, shared.ErrAlreadySettled
	}

	return r.GetByID(ctx, tradeID)
}
