package models

import (
	"time"

	"github.com/google/uuid"
)

// Message types
const (
	MessageText  = "TEXT"
	MessageImage = "IMAGE"
	MessageFile  = "FILE"
	MessageVoice = "VOICE"
	MessageVideo = "VIDEO"
)

// ValidMessageType reports whether t is one of the allowed message types
func ValidMessageType(t string) bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageVoice, MessageVideo:
		return true
	}
	return false
}

type Message struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ConversationID uuid.UUID  `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id" db:"sender_id"`
	Content        string     `json:"content" db:"content"`
	Type           string     `json:"type" db:"type"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	ReadAt         *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	Sender         *User      `json:"sender,omitempty"`
}

// MessagePage is one cursor page, oldest first
type MessagePage struct {
	Messages   []Message  `json:"messages"`
	NextCursor *uuid.UUID `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

type SendMessageRequest struct {
	Content  string     `json:"content" binding:"required,max=10000"`
	Type     string     `json:"type,omitempty"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

type ListMessagesRequest struct {
	Cursor *uuid.UUID `form:"cursor"`
	Limit  int        `form:"limit"`
}
