package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeAuctionCreated    EventType = "auction.created"
	EventTypeBidPlaced         EventType = "bid.placed"
	EventTypeAuctionCompleted  EventType = "auction.completed"
	EventTypeSettlementRecorded EventType = "settlement.recorded"
	EventTypeError             EventType = "error"
)

// Event represents a broadcast event scoped to one search's auction
type Event struct {
	Type      EventType              `json:"type"`
	SearchID  uuid.UUID              `json:"search_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster defines the interface for broadcasting events
type Broadcaster interface {
	// Subscribe subscribes a client to events for a specific search.
	// When a client subscribes to multiple searches, all events are
	// delivered to the same channel.
	Subscribe(ctx context.Context, searchID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe unsubscribes a client from events for a specific search
	Unsubscribe(ctx context.Context, searchID uuid.UUID, clientID string) error

	// Publish publishes an event to all subscribers of a search
	Publish(ctx context.Context, searchID uuid.UUID, event Event) error

	// GetSubscribers returns the list of client IDs subscribed to a search
	GetSubscribers(ctx context.Context, searchID uuid.UUID) ([]string, error)

	// IsSubscribed checks if a client is subscribed to a search
	IsSubscribed(ctx context.Context, searchID uuid.UUID, clientID string) bool
}
