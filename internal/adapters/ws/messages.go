package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"intent-exchange-service/internal/domain/auction"
	"intent-exchange-service/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeGetAuction  MessageType = "get_auction"
	MessageTypePing        MessageType = "ping"

	// Server to Client message types
	MessageTypeAuctionUpdate      MessageType = "auction_update"
	MessageTypeBidPlaced          MessageType = "bid_placed"
	MessageTypeAuctionCompleted   MessageType = "auction_completed"
	MessageTypeSettlementRecorded MessageType = "settlement_recorded"
	MessageTypeError              MessageType = "error"
	MessageTypePong               MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	SearchID  *uuid.UUID             `json:"search_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	SearchID  *uuid.UUID             `json:"search_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, searchID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		SearchID:  searchID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewAuctionCompletedMessage creates an auction completed message
func NewAuctionCompletedMessage(searchID uuid.UUID, winningBidID *uuid.UUID, rewardAmount int64) *ServerMessage {
	msg := NewServerMessage(MessageTypeAuctionCompleted)
	msg.SearchID = &searchID
	msg.Data["reward_amount"] = rewardAmount
	if winningBidID != nil {
		msg.Data["winning_bid_id"] = winningBidID
	}
	return msg
}

// NewAuctionSnapshotMessage renders the current state of an auction
func NewAuctionSnapshotMessage(a *auction.Auction, msgType MessageType) *ServerMessage {
	msg := NewServerMessage(msgType)
	msg.SearchID = &a.SearchID

	bids := make([]map[string]interface{}, 0, len(a.Bids))
	for _, b := range a.Bids {
		bids = append(bids, map[string]interface{}{
			"bid_id":     b.ID,
			"buyer_name": b.BuyerName,
			"price":      b.Price,
			"bonus":      b.Bonus,
			"type":       b.Type(),
		})
	}

	msg.Data["query"] = a.Query
	msg.Data["quality_score"] = a.QualityScore
	msg.Data["status"] = a.Status
	msg.Data["bids"] = bids
	msg.Data["expires_at"] = a.ExpiresAt.Format(time.RFC3339)
	if a.WinningBidID != nil {
		msg.Data["winning_bid_id"] = a.WinningBidID
	}

	return msg
}

func (m *ClientMessage) validateSearchID() error {
	if m.SearchID == nil || *m.SearchID == uuid.Nil {
		return shared.ErrSearchIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	// Validate required fields
	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetAuction:
		if err := m.validateSearchID(); err != nil {
			return err
		}
	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}
