package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"intent-exchange-service/internal/domain/settlement"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
)

// TransactionStore implements outbound.TransactionRepository with in-memory
// maps. State transitions run under the store lock so the compare-and-set
// semantics match the conditional updates of the postgres repository.
type TransactionStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*settlement.Transaction
	byBidID map[uuid.UUID]uuid.UUID // bid ID -> trade ID
}

// NewTransactionStore creates a new in-memory transaction store
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		byID:    make(map[uuid.UUID]*settlement.Transaction),
		byBidID: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *TransactionStore) Create(_ context.Context, tx *settlement.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byBidID[tx.BidID]; exists {
		return fmt.Errorf("transaction for bid %s already exists", tx.BidID)
	}

	stored := *tx
	s.byID[tx.ID] = &stored
	s.byBidID[tx.BidID] = tx.ID
	return nil
}

func (s *TransactionStore) GetByID(_ context.Context, tradeID uuid.UUID) (*settlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.byID[tradeID]
	if !ok {
		return nil, shared.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

func (s *TransactionStore) GetByBidID(_ context.Context, bidID uuid.UUID) (*settlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tradeID, ok := s.byBidID[bidID]
	if !ok {
		return nil, shared.ErrTransactionNotFound
	}
	return copyTransaction(s.byID[tradeID]), nil
}

func (s *TransactionStore) MarkClicked(_ context.Context, tradeID uuid.UUID, clickedAt time.Time, vAtf float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[tradeID]
	if !ok {
		return shared.ErrTransactionNotFound
	}
	if tx.Status != settlement.StatusPrimaryComplete {
		return shared.ErrClickAlreadyRecorded
	}

	tx.Status = settlement.StatusPendingVerification
	at := clickedAt
	tx.ClickedAt = &at
	tx.VAtf = vAtf
	tx.UpdatedAt = clickedAt
	return nil
}

func (s *TransactionStore) Settle(_ context.Context, tradeID uuid.UUID, rec *settlement.SettlementRecord) (*settlement.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[tradeID]
	if !ok {
		return nil, shared.ErrTransactionNotFound
	}
	switch tx.Status {
	case settlement.StatusPrimaryComplete:
		return nil, shared.ErrClickNotRegistered
	case settlement.StatusSettled, settlement.StatusFailed:
		return nil, shared.ErrAlreadySettled
	}

	recCopy := *rec
	if !tx.ApplySettlement(&recCopy) {
		return nil, shared.ErrAlreadySettled
	}
	return copyTransaction(tx), nil
}

func copyTransaction(tx *settlement.Transaction) *settlement.Transaction {
	copied := *tx
	if tx.ClickedAt != nil {
		at := *tx.ClickedAt
		copied.ClickedAt = &at
	}
	if tx.SecondaryReward != nil {
		amount := *tx.SecondaryReward
		copied.SecondaryReward = &amount
	}
	if tx.Settlement != nil {
		rec := *tx.Settlement
		copied.Settlement = &rec
	}
	return &copied
}
