package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hubso/backend/internal/cache"
	"github.com/hubso/backend/internal/models"
)

// Hub owns the room registry and runs the register/unregister loop.
// Connection lifecycle flows through the channels; everything else
// (joins, broadcasts, typing) is safe to call from any goroutine.
type Hub struct {
	registry *RoomRegistry

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Redis client for presence TTLs and rate limiting; may be nil
	redis *cache.RedisClient

	typing       *typingTimers
	typingWindow time.Duration

	metrics *gatewayMetrics
}

// NewHub creates a new Hub. reg may be nil to disable metrics.
func NewHub(redis *cache.RedisClient, typingWindow time.Duration, reg prometheus.Registerer) *Hub {
	return &Hub{
		registry:     NewRoomRegistry(),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		redis:        redis,
		typing:       newTypingTimers(),
		typingWindow: typingWindow,
		metrics:      newGatewayMetrics(reg),
	}
}

// Run starts the hub's lifecycle loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			count := h.registry.Register(client)
			h.registry.Join(client, UserRoom(client.userID))
			h.registry.Join(client, CommunityRoom(client.communityID))
			h.metrics.connectionOpened()

			if count == 1 {
				if h.redis != nil {
					if err := h.redis.SetUserOnline(client.userID); err != nil {
						log.Printf("[PRESENCE] failed to mark %s online: %v", client.userID, err)
					}
				}
				h.Broadcast(CommunityRoom(client.communityID), models.EventPresenceOnline, models.WSPresencePayload{
					UserID:    client.userID,
					Timestamp: client.connectedAt,
				})
			}

			log.Printf("[CONNECT] user=%s email=%s conn=%s connections=%d", client.userID, client.email, client.id, count)

		case client := <-h.unregister:
			remaining, existed := h.registry.DropConnection(client)
			if !existed {
				continue
			}
			client.closeSend()
			h.metrics.connectionClosed()

			if remaining == 0 {
				if h.redis != nil {
					if err := h.redis.SetUserOffline(client.userID); err != nil {
						log.Printf("[PRESENCE] failed to mark %s offline: %v", client.userID, err)
					}
				}
				h.Broadcast(CommunityRoom(client.communityID), models.EventPresenceOffline, models.WSPresencePayload{
					UserID:    client.userID,
					Timestamp: time.Now(),
				})
			}

			log.Printf("[DISCONNECT] user=%s conn=%s remaining=%d", client.userID, client.id, remaining)
		}
	}
}

// Broadcast marshals the event once and offers it to every connection
// in the room. Slow or already torn-down clients are skipped rather
// than awaited; the payload is lost for that connection and accounted
// for in metrics.
func (h *Hub) Broadcast(room, event string, payload interface{}) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("[BROADCAST] failed to marshal %s: %v", event, err)
		return
	}

	for _, client := range h.registry.MembersOf(room) {
		if !client.trySend(data) {
			h.metrics.slowClientDrop()
		}
	}
}

// SendToUser delivers an event to every connection of one user
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	h.Broadcast(UserRoom(userID), event, payload)
}

// JoinConversation subscribes a connection to a conversation room and
// tells the room about it
func (h *Hub) JoinConversation(c *Client, conversationID uuid.UUID) {
	room := ConversationRoom(conversationID)
	h.registry.Join(c, room)
	h.Broadcast(room, models.EventUserJoined, models.WSRoomEventPayload{
		UserID:         c.userID,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	})
}

// LeaveConversation unsubscribes a connection from a conversation room.
// The leaver is removed before the notification goes out, so only the
// remaining members see it.
func (h *Hub) LeaveConversation(c *Client, conversationID uuid.UUID) {
	room := ConversationRoom(conversationID)
	h.registry.Leave(c, room)
	h.Broadcast(room, models.EventUserLeft, models.WSRoomEventPayload{
		UserID:         c.userID,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	})
}

// Typing broadcasts a typing indicator and arms the auto-reset timer.
// Repeated typing events within the window keep the indicator alive;
// the stop indicator fires once the user goes quiet.
func (h *Hub) Typing(conversationID, userID uuid.UUID) {
	room := ConversationRoom(conversationID)
	h.Broadcast(room, models.EventTypingIndicator, models.WSTypingIndicatorPayload{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       true,
	})

	h.typing.Schedule(typingKey{ConversationID: conversationID, UserID: userID}, h.typingWindow, func() {
		h.Broadcast(room, models.EventTypingIndicator, models.WSTypingIndicatorPayload{
			UserID:         userID,
			ConversationID: conversationID,
			IsTyping:       false,
		})
	})
}

// GetOnlineUsers returns the users with at least one live connection
func (h *Hub) GetOnlineUsers() []uuid.UUID {
	return h.registry.OnlineUsers()
}

// IsUserOnline checks if a user has a live connection on this process
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	return h.registry.ConnectionCount(userID) > 0
}

func marshalEvent(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(models.WSMessage{Event: event, Payload: payload})
}
