package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/device-core/internal/audit"
	"github.com/nerrad567/device-core/internal/auth"
	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/infrastructure/config"
	"github.com/nerrad567/device-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeListDevices       = "device_registry/list"
	WSTypeUpdateDevice      = "device_registry/update"
	WSTypeRemoveConfigEntry = "device_registry/remove_config_entry"
	WSTypeSubscribe         = "subscribe"
	WSTypeUnsubscribe       = "unsubscribe"
	WSTypePing              = "ping"
	WSTypeResult            = "result"
	WSTypeEvent             = "event"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// wsResult is the payload of a result message. Every command produces
// exactly one result mirroring the caller's request ID.
type wsResult struct {
	Success bool     `json:"success"`
	Result  any      `json:"result,omitempty"`
	Error   *wsError `json:"error,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsSubscribePayload is the payload for subscribe/unsubscribe commands.
type wsSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsUpdatePayload carries the update-device command fields. The embedded
// Update keeps the tri-state set/clear/absent distinction for each field.
type wsUpdatePayload struct {
	DeviceID string `json:"device_id"`
	device.Update
}

// wsRemovePayload carries the remove-config-entry command fields.
type wsRemovePayload struct {
	DeviceID      string `json:"device_id"`
	ConfigEntryID string `json:"config_entry_id"`
}

// Hub manages WebSocket connections and broadcasts registry events.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub           *Hub
	srv           *Server
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
	// Identity propagated from the WebSocket ticket.
	userID string
	role   auth.Role
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast sends an event to all clients subscribed to the given channel.
// Lock ordering: hub lock is acquired first, then released before per-client
// subscription checks. This avoids holding both hub and client locks simultaneously.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := marshalEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sentCount := 0
	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
			sentCount++
		}
	}
	if sentCount > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sentCount)
	}
}

// marshalEvent encodes a channel payload as an event message.
func marshalEvent(channel string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   raw,
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Authentication is via ticket query parameter (obtained from POST /auth/ws-ticket).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.redeem(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		srv:           s,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		userID:        entry.userID,
		role:          entry.role,
	}

	s.hub.Register(client)

	// Start read/write pumps
	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection. Commands
// execute on this goroutine, one at a time per client.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline (keeps connection alive
		// even if browser doesn't respond to protocol-level pings).
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches an incoming command. Every command produces
// exactly one result message mirroring the caller's request ID.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendFailure("", ErrCodeBadRequest, "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeListDevices:
		c.handleListDevices(msg)
	case WSTypeUpdateDevice:
		c.handleUpdateDevice(msg)
	case WSTypeRemoveConfigEntry:
		c.handleRemoveConfigEntry(msg)
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.sendSuccess(msg.ID, map[string]any{"pong": true})
	default:
		c.sendFailure(msg.ID, ErrCodeBadRequest, "unknown message type: "+msg.Type)
	}
}

// handleListDevices returns the projection of every registry entry.
func (c *WSClient) handleListDevices(msg WSMessage) {
	start := time.Now()
	devices := device.ProjectAll(c.srv.registry.List())
	c.srv.recordCommand("list", "ok", start)

	c.sendSuccess(msg.ID, map[string]any{"devices": devices})
}

// handleUpdateDevice applies a partial update to a device. Admin only.
func (c *WSClient) handleUpdateDevice(msg WSMessage) {
	if !c.requireAdmin(msg.ID) {
		return
	}

	var payload wsUpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.sendFailure(msg.ID, ErrCodeBadRequest, "invalid update payload")
		return
	}
	if payload.DeviceID == "" {
		c.sendFailure(msg.ID, ErrCodeValidation, "device_id is required")
		return
	}
	if payload.DisabledBy.Set && payload.DisabledBy.Value != nil &&
		device.DisabledBy(*payload.DisabledBy.Value) != device.DisabledByUser {
		c.sendFailure(msg.ID, ErrCodeValidation, "disabled_by must be \"user\" or null")
		return
	}

	start := time.Now()
	entry, err := c.srv.registry.Update(context.Background(), payload.DeviceID, payload.Update)
	if err != nil {
		c.srv.recordCommand("update", "error", start)
		_, code, message := classifyDeviceError(err)
		c.sendFailure(msg.ID, code, message)
		return
	}
	c.srv.recordCommand("update", "ok", start)

	c.srv.auditLog(context.Background(), audit.SourceWebSocket, audit.ActionDeviceUpdate,
		audit.EntityDevice, payload.DeviceID, c.userID, nil)

	c.sendSuccess(msg.ID, map[string]any{"device": device.Project(entry)})
}

// handleRemoveConfigEntry runs the removal guard chain. Admin only.
// The mutation runs with a background context so a caller disconnect
// cannot abort an in-flight removal.
func (c *WSClient) handleRemoveConfigEntry(msg WSMessage) {
	if !c.requireAdmin(msg.ID) {
		return
	}

	var payload wsRemovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.sendFailure(msg.ID, ErrCodeBadRequest, "invalid removal payload")
		return
	}
	if payload.DeviceID == "" || payload.ConfigEntryID == "" {
		c.sendFailure(msg.ID, ErrCodeValidation, "device_id and config_entry_id are required")
		return
	}

	start := time.Now()
	entry, err := c.srv.remover.RemoveConfigEntry(context.Background(), payload.DeviceID, payload.ConfigEntryID)
	if err != nil {
		c.srv.recordCommand("remove_config_entry", "rejected", start)
		_, code, message := classifyRemovalError(err)
		c.sendFailure(msg.ID, code, message)
		return
	}
	c.srv.recordCommand("remove_config_entry", "ok", start)

	c.srv.auditLog(context.Background(), audit.SourceWebSocket, audit.ActionDeviceRemoveConfigEntry,
		audit.EntityDevice, payload.DeviceID, c.userID,
		map[string]any{"config_entry_id": payload.ConfigEntryID, "deleted": entry == nil})

	c.sendSuccess(msg.ID, map[string]any{"device": device.Project(entry)})
}

// handleSubscribe adds channels to the client's subscription list.
func (c *WSClient) handleSubscribe(msg WSMessage) {
	var sub wsSubscribePayload
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		c.sendFailure(msg.ID, ErrCodeBadRequest, "invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Info("websocket client subscribed", "channels", sub.Channels)

	c.sendSuccess(msg.ID, map[string]any{"subscribed": sub.Channels})
}

// handleUnsubscribe removes channels from the client's subscription list.
func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	var sub wsSubscribePayload
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		c.sendFailure(msg.ID, ErrCodeBadRequest, "invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.sendSuccess(msg.ID, map[string]any{"unsubscribed": sub.Channels})
}

// requireAdmin sends a forbidden result and returns false when the
// client's ticket does not carry the admin role.
func (c *WSClient) requireAdmin(msgID string) bool {
	if c.role != auth.RoleAdmin {
		c.sendFailure(msgID, ErrCodeForbidden, "admin role required")
		return false
	}
	return true
}

// trySend attempts to send data to the client's send channel.
// It silently handles closed channels (client disconnected during broadcast)
// and full buffers (slow client).
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// isSubscribed checks if the client is subscribed to a channel.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// sendResult sends a result message mirroring the caller's request ID.
// Routes through trySend to safely handle closed channels during shutdown.
func (c *WSClient) sendResult(id string, result wsResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	msg := WSMessage{
		Type:      WSTypeResult,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   raw,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendSuccess sends a successful command result.
func (c *WSClient) sendSuccess(id string, result any) {
	c.sendResult(id, wsResult{Success: true, Result: result})
}

// sendFailure sends a failed command result.
func (c *WSClient) sendFailure(id, code, message string) {
	c.sendResult(id, wsResult{Success: false, Error: &wsError{Code: code, Message: message}})
}
