package shared

import "errors"

// Domain-specific errors
var (
	// Query validation errors
	ErrQueryEmpty   = errors.New("query must not be empty")
	ErrQueryTooLong = errors.New("query exceeds maximum length")

	// Auction errors
	ErrAuctionNotFound         = errors.New("auction not found")
	ErrAuctionExpired          = errors.New("auction expired")
	ErrAuctionAlreadyFinalized = errors.New("auction already finalized")
	ErrAuctionNotFinalized     = errors.New("auction not finalized")
	ErrAuctionNotAcceptingBids = errors.New("auction is not accepting bids")
	ErrBidNotFound             = errors.New("bid not found in auction")
	ErrBidPriceInvalid         = errors.New("bid price must be greater than 0")

	// Transaction / settlement errors
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrClickNotRegistered    = errors.New("click not registered for transaction")
	ErrClickAlreadyRecorded  = errors.New("click already registered for transaction")
	ErrAlreadySettled        = errors.New("settlement already recorded")
	ErrInvalidDwellTime      = errors.New("dwell time must not be negative")

	// Auto-bid errors
	ErrAdvertiserNotFound   = errors.New("advertiser settings not found")
	ErrBudgetExhausted      = errors.New("daily budget exhausted")
	ErrInvalidKeyword       = errors.New("invalid keyword configuration")
	ErrInvalidBudget        = errors.New("budget values must not be negative")

	// Quota errors
	ErrQuotaExceeded = errors.New("daily submission quota exceeded")

	// Upstream errors
	ErrScorerUnavailable = errors.New("quality scorer unavailable")

	// Validation errors
	ErrInvalidRequest = errors.New("invalid request")

	// Database errors
	ErrDatabaseConnection  = errors.New("database connection failed")
	ErrDatabaseQuery       = errors.New("database query failed")
	ErrDatabaseTransaction = errors.New("database transaction failed")

	// Broadcasting errors
	ErrBroadcastFailed = errors.New("broadcast failed")

	// WebSocket errors
	ErrWebSocketConnection        = errors.New("websocket connection failed")
	ErrWebSocketMessage           = errors.New("websocket message error")
	ErrMessageTypeRequired        = errors.New("message type is required")
	ErrSearchIDRequired           = errors.New("search_id is required")
	ErrUnknownMessageType         = errors.New("unknown message type")
	ErrClientEventChannelNotFound = errors.New("client event channel not found")
)
