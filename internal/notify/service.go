package notify

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/hubso/backend/internal/models"
	"github.com/hubso/backend/internal/repository"
	"github.com/hubso/backend/internal/websocket"
)

// Service fans out notifications: persist first, then push to every
// live connection of the recipient. Persistence failing fails the
// whole operation; the push is best effort and a recipient with no
// connections simply fetches the row later.
type Service struct {
	repo *repository.NotificationRepository
	hub  *websocket.Hub
}

func NewService(repo *repository.NotificationRepository, hub *websocket.Hub) *Service {
	return &Service{repo: repo, hub: hub}
}

// Notify stores the notification and pushes it to the recipient's
// connections
func (s *Service) Notify(userID uuid.UUID, notifType string, data json.RawMessage, communityID *string) (*models.Notification, error) {
	notification := &models.Notification{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        notifType,
		Data:        data,
		CommunityID: communityID,
	}

	if err := s.repo.Create(notification); err != nil {
		return nil, err
	}

	s.hub.SendToUser(userID, models.EventNotificationReceive, notification)

	log.Printf("[NOTIFY] type=%s user=%s", notifType, userID)
	return notification, nil
}
