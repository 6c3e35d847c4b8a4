package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation kinds
const (
	ConversationDirect = "DIRECT"
	ConversationGroup  = "GROUP"
)

type Conversation struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Type        string    `json:"type" db:"type"`
	Name        *string   `json:"name,omitempty" db:"name"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	Participants []User   `json:"participants,omitempty"`
	LastMessage *Message  `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
}

// IsGroup reports whether participant-set mutations are allowed
func (c *Conversation) IsGroup() bool {
	return c.Type == ConversationGroup
}

type ConversationParticipant struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID uuid.UUID `json:"conversation_id" db:"conversation_id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	JoinedAt       time.Time `json:"joined_at" db:"joined_at"`
}

type CreateDMRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
}

type CreateGroupRequest struct {
	Name           string      `json:"name" binding:"required,min=1,max=255"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required,min=1"`
}

type UpdateGroupRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type AddParticipantRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}
