package db

import (
	"intent-exchange-service/internal/ports/outbound"
)

// RepositoryFactory creates and manages all database repositories
type RepositoryFactory struct {
	conn *Connection
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(conn *Connection) *RepositoryFactory {
	return &RepositoryFactory{conn: conn}
}

// GetAuctionRepository returns the auction repository
func (f *RepositoryFactory) GetAuctionRepository() outbound.AuctionRepository {
	return NewAuctionRepository(f.conn)
}

// GetTransactionRepository returns the transaction repository
func (f *RepositoryFactory) GetTransactionRepository() outbound.TransactionRepository {
	return NewTransactionRepository(f.conn)
}

// GetAutoBidRepository returns the auto-bid settings repository
func (f *RepositoryFactory) GetAutoBidRepository() outbound.AutoBidRepository {
	return NewAutoBidRepository(f.conn)
}
