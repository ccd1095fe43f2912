package ws

import (
	"context"
	"net/http"
	"sync"

	"intent-exchange-service/internal/domain/shared"
	"intent-exchange-service/internal/metrics"
	"intent-exchange-service/internal/ports/inbound"
	"intent-exchange-service/internal/ports/outbound"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and message routing. Clients
// subscribe to the searches they care about and receive the live feed of
// the auction: bids arriving, the winner being picked, the settlement
// landing.
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	auctionService inbound.AuctionService
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	AuctionService inbound.AuctionService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		upgrader:       params.Upgrader,
		auctionService: params.AuctionService,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	// Create new client
	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	// Register client
	handler.registerClient(client)

	// Create local event channel for this client
	handler.createEventChannel(client.id)

	// Start client message handling
	client.Start()

	// Start listening for broadcast events for this client
	go handler.listenForClientEvents(client)

	// Wait for client to disconnect
	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID).Msg("WebSocket client connected")
}

// createEventChannel creates a local event channel for a client
func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan

	handler.logger.Debug().Str("client_id", clientID).Msg("Created local event channel for client")
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		close(eventChan)
		delete(handler.eventChannels, clientID)
		handler.logger.Debug().Str("client_id", clientID).Msg("Removed local event channel for client")
	}
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	metrics.WebSocketClients.Set(float64(len(handler.clients)))
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()

	// Remove client from registry
	delete(handler.clients, client.id)
	metrics.WebSocketClients.Set(float64(len(handler.clients)))

	// Stop the client
	client.Stop()

	// Remove local event channel
	handler.removeEventChannel(client.id)

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID).Int("total_clients", len(handler.clients)).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the client's socket
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	handler.logger.Debug().Str("client_id", client.id).Msg("Starting event listener for client")

	// Get the local event channel for this client
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return
	}

	handler.logger.Info().Str("client_id", client.id).Msg("Event listener started for client")

	// Listen for events and forward to WebSocket
	for {
		select {
		case event := <-eventChan:
			handler.logger.Debug().Str("client_id", client.id).Msg("Received event for client")
			wsMessage := handler.convertEventToMessage(event)

			if err := client.Send(wsMessage); err != nil {
				handler.logger.Error().
					Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			} else {
				handler.logger.Info().Str("client_id", client.id).Str("event_type", string(event.Type)).
					Msg("Successfully sent event to WebSocket client")
			}

		case <-client.ctx.Done():
			handler.logger.Debug().Str("client_id", client.id).Msg("Client disconnected, stopping event listener")
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSubscribe:
		return handler.handleSubscribe(client, msg)

	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(client, msg)

	case MessageTypeGetAuction:
		return handler.handleGetAuction(client, msg)

	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	switch event.Type {
	case outbound.EventTypeBidPlaced:
		return &ServerMessage{
			Type:      MessageTypeBidPlaced,
			SearchID:  &event.SearchID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	case outbound.EventTypeAuctionCompleted:
		return &ServerMessage{
			Type:      MessageTypeAuctionCompleted,
			SearchID:  &event.SearchID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	case outbound.EventTypeSettlementRecorded:
		return &ServerMessage{
			Type:      MessageTypeSettlementRecorded,
			SearchID:  &event.SearchID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	default:
		return &ServerMessage{
			Type:      MessageTypeAuctionUpdate,
			SearchID:  &event.SearchID,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		}
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

func (handler *WsHandler) handleSubscribe(client *WsClient, msg *ClientMessage) error {
	if msg.SearchID == nil {
		return shared.ErrSearchIDRequired
	}

	ctx := context.Background()

	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return shared.ErrClientEventChannelNotFound
	}

	// Subscribe to broadcaster with the local event channel
	if err := handler.broadcaster.Subscribe(ctx, *msg.SearchID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("search_id", msg.SearchID.String()).Msg("Failed to subscribe to search")
		return err
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.SearchID = msg.SearchID
	response.Data["status"] = "subscribed"

	handler.logger.Info().Str("client_id", client.id).Str("search_id", msg.SearchID.String()).Msg("Client subscribed to search")
	return client.Send(response)
}

// handleUnsubscribe handles unsubscription from search events
func (handler *WsHandler) handleUnsubscribe(client *WsClient, msg *ClientMessage) error {
	if msg.SearchID == nil {
		return shared.ErrSearchIDRequired
	}

	ctx := context.Background()

	// Unsubscribe from broadcaster
	if err := handler.broadcaster.Unsubscribe(ctx, *msg.SearchID, client.id); err != nil {
		return err
	}

	// Send confirmation
	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.SearchID = msg.SearchID
	response.Data["status"] = "unsubscribed"

	handler.logger.Info().Str("client_id", client.id).Str("search_id", msg.SearchID.String()).Msg("Client unsubscribed from search")
	return client.Send(response)
}

// handleGetAuction handles getting the current auction snapshot
func (handler *WsHandler) handleGetAuction(client *WsClient, msg *ClientMessage) error {
	if msg.SearchID == nil {
		return shared.ErrSearchIDRequired
	}

	ctx := context.Background()

	a, err := handler.auctionService.GetAuction(ctx, *msg.SearchID)
	if err != nil {
		errorMsg := NewErrorMessage(err.Error(), msg.SearchID)
		return client.Send(errorMsg)
	}

	response := NewAuctionSnapshotMessage(a, MessageTypeAuctionUpdate)

	return client.Send(response)
}
