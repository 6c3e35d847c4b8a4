package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/hubso/backend/internal/cache"
	"github.com/hubso/backend/internal/models"
	"github.com/hubso/backend/internal/repository"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 10240 // 10KB
)

// Client is one authenticated WebSocket connection. A user may hold
// several at once; each gets its own id, pumps, and send buffer.
type Client struct {
	id   uuid.UUID
	hub  *Hub
	conn *websocket.Conn

	// send is owned by the write pump. Producers must go through
	// trySend so nothing races the teardown in closeSend.
	sendMu sync.Mutex
	closed bool
	send   chan []byte

	userID      uuid.UUID
	email       string
	communityID string
	connectedAt time.Time

	msgRepo  *repository.MessageRepository
	convRepo *repository.ConversationRepository
	redis    *cache.RedisClient

	maxContentLen int

	// In-process fallback limiter when Redis is unavailable
	limiter *rate.Limiter
}

// Limits bundles the per-client send budgets
type Limits struct {
	MessagesPerSec   int
	MaxContentLength int
}

// NewClient creates a new WebSocket client
func NewClient(
	hub *Hub,
	conn *websocket.Conn,
	userID uuid.UUID,
	email string,
	communityID string,
	msgRepo *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	redis *cache.RedisClient,
	limits Limits,
) *Client {
	if limits.MessagesPerSec <= 0 {
		limits.MessagesPerSec = 10
	}
	if limits.MaxContentLength <= 0 {
		limits.MaxContentLength = 10000
	}
	return &Client{
		id:            uuid.New(),
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		userID:        userID,
		email:         email,
		communityID:   communityID,
		connectedAt:   time.Now(),
		msgRepo:       msgRepo,
		convRepo:      convRepo,
		redis:         redis,
		maxContentLen: limits.MaxContentLength,
		limiter:       rate.NewLimiter(rate.Limit(limits.MessagesPerSec), limits.MessagesPerSec*2),
	}
}

// trySend offers a frame to the write pump without blocking. It
// reports false when the buffer is full or the connection has been
// torn down; the caller decides whether that counts as a drop.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend tears down the send side so the write pump drains its
// buffer and exits. Idempotent; once closed, trySend refuses frames
// instead of panicking on the closed channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump pumps events from the WebSocket connection into handlers.
// Client events are fire-and-forget: anything malformed or
// unauthorized is dropped with a log line, never answered.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error user=%s: %v", c.userID, err)
			}
			break
		}
		c.handleEvent(data)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(data []byte) {
	var wsMsg models.WSMessage
	if err := json.Unmarshal(data, &wsMsg); err != nil {
		c.dropEvent("malformed", "")
		return
	}

	c.hub.metrics.eventProcessed(wsMsg.Event)

	switch wsMsg.Event {
	case models.EventConversationJoin:
		c.handleConversationJoin(wsMsg.Payload)

	case models.EventConversationLeave:
		c.handleConversationLeave(wsMsg.Payload)

	case models.EventMessageSend:
		c.handleMessageSend(wsMsg.Payload)

	case models.EventMessageRead:
		c.handleMessageRead(wsMsg.Payload)

	case models.EventTyping:
		c.handleTyping(wsMsg.Payload)

	case models.EventPresenceHeartbeat:
		c.handleHeartbeat()

	default:
		c.dropEvent("unknown_event", wsMsg.Event)
	}
}

// decodePayload round-trips the untyped payload into a typed struct
func decodePayload(payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) handleConversationJoin(payload interface{}) {
	var req models.WSConversationPayload
	if err := decodePayload(payload, &req); err != nil || req.ConversationID == uuid.Nil {
		c.dropEvent("malformed", models.EventConversationJoin)
		return
	}
	c.hub.JoinConversation(c, req.ConversationID)
}

func (c *Client) handleConversationLeave(payload interface{}) {
	var req models.WSConversationPayload
	if err := decodePayload(payload, &req); err != nil || req.ConversationID == uuid.Nil {
		c.dropEvent("malformed", models.EventConversationLeave)
		return
	}
	c.hub.LeaveConversation(c, req.ConversationID)
}

func (c *Client) handleMessageSend(payload interface{}) {
	var req models.WSMessageSendPayload
	if err := decodePayload(payload, &req); err != nil || req.ConversationID == uuid.Nil {
		c.dropEvent("malformed", models.EventMessageSend)
		return
	}
	if req.Content == "" || len(req.Content) > c.maxContentLen {
		c.dropEvent("malformed", models.EventMessageSend)
		return
	}

	if !c.allowSend() {
		c.dropEvent("rate_limited", models.EventMessageSend)
		return
	}

	message, err := c.msgRepo.Send(req.ConversationID, c.userID, req.Content, req.Type, req.ParentID)
	if err != nil {
		c.dropEvent("rejected", models.EventMessageSend)
		log.Printf("[MSG] send rejected user=%s conversation=%s: %v", c.userID, req.ConversationID, err)
		return
	}

	c.hub.Broadcast(ConversationRoom(message.ConversationID), models.EventMessageReceive, message)
}

// allowSend enforces the per-user message budget. Redis holds the
// shared token bucket; without it each connection falls back to its
// own local limiter.
func (c *Client) allowSend() bool {
	if c.redis != nil {
		allowed, err := c.redis.AllowAction(c.userID, "message_send", int(c.limiter.Limit()), c.limiter.Burst())
		if err == nil {
			return allowed
		}
		log.Printf("[MSG] rate limit check failed, falling back to local limiter: %v", err)
	}
	return c.limiter.Allow()
}

func (c *Client) handleMessageRead(payload interface{}) {
	var req models.WSConversationPayload
	if err := decodePayload(payload, &req); err != nil || req.ConversationID == uuid.Nil {
		c.dropEvent("malformed", models.EventMessageRead)
		return
	}

	marked, err := c.msgRepo.MarkConversationRead(req.ConversationID, c.userID)
	if err != nil {
		c.dropEvent("rejected", models.EventMessageRead)
		return
	}

	c.hub.Broadcast(ConversationRoom(req.ConversationID), models.EventMessageReadAck, models.WSReadAckPayload{
		ConversationID: req.ConversationID,
		ReadByUserID:   c.userID,
		MarkedRead:     marked,
		Timestamp:      time.Now(),
	})
}

func (c *Client) handleTyping(payload interface{}) {
	var req models.WSConversationPayload
	if err := decodePayload(payload, &req); err != nil || req.ConversationID == uuid.Nil {
		c.dropEvent("malformed", models.EventTyping)
		return
	}

	isMember, err := c.convRepo.IsMember(req.ConversationID, c.userID)
	if err != nil || !isMember {
		c.dropEvent("rejected", models.EventTyping)
		return
	}

	c.hub.Typing(req.ConversationID, c.userID)
}

func (c *Client) handleHeartbeat() {
	if c.redis != nil {
		if err := c.redis.Heartbeat(c.userID); err != nil {
			log.Printf("[PRESENCE] heartbeat refresh failed user=%s: %v", c.userID, err)
		}
	}

	ack, err := marshalEvent(models.EventHeartbeatAck, models.WSPresencePayload{
		UserID:    c.userID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	c.trySend(ack)
}

func (c *Client) dropEvent(reason, event string) {
	c.hub.metrics.eventDropped(reason)
	if event != "" {
		log.Printf("[WS] dropped %s user=%s reason=%s", event, c.userID, reason)
	}
}
