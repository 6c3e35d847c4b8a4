package models

import (
	"time"

	"github.com/google/uuid"
)

// Client-originated socket events
const (
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventMessageSend       = "message:send"
	EventMessageRead       = "message:read"
	EventTyping            = "typing"
	EventPresenceHeartbeat = "presence:heartbeat"
)

// Server-originated socket events
const (
	EventMessageReceive      = "message:receive"
	EventMessageReadAck      = "message:read-ack"
	EventTypingIndicator     = "typing-indicator"
	EventUserJoined          = "conversation:user-joined"
	EventUserLeft            = "conversation:user-left"
	EventPresenceOnline      = "presence:online"
	EventPresenceOffline     = "presence:offline"
	EventHeartbeatAck        = "presence:heartbeat-ack"
	EventNotificationReceive = "notification:receive"
)

type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

type WSConversationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type WSMessageSendPayload struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	Content        string     `json:"content"`
	Type           string     `json:"type,omitempty"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty"`
}

type WSPresencePayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type WSRoomEventPayload struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type WSTypingIndicatorPayload struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	IsTyping       bool      `json:"is_typing"`
}

type WSReadAckPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReadByUserID   uuid.UUID `json:"read_by_user_id"`
	MarkedRead     int64     `json:"marked_read"`
	Timestamp      time.Time `json:"timestamp"`
}
