package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	Type        string          `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	CommunityID *string         `json:"community_id,omitempty" db:"community_id"`
	ReadAt      *time.Time      `json:"read_at,omitempty" db:"read_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type CreateNotificationRequest struct {
	UserID      uuid.UUID       `json:"user_id" binding:"required"`
	Type        string          `json:"type" binding:"required,max=50"`
	Data        json.RawMessage `json:"data,omitempty"`
	CommunityID *string         `json:"community_id,omitempty"`
}

type MarkNotificationReadRequest struct {
	NotificationID *uuid.UUID `json:"notification_id,omitempty"`
}
