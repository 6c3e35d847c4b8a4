package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hubso/backend/internal/cache"
	"github.com/hubso/backend/internal/repository"
	"github.com/hubso/backend/internal/websocket"
)

// PresenceHandler answers presence queries from Redis when it is
// available, falling back to this process's registry otherwise. The
// fallback only sees locally connected users.
type PresenceHandler struct {
	redis    *cache.RedisClient
	hub      *websocket.Hub
	userRepo *repository.UserRepository
}

func NewPresenceHandler(redis *cache.RedisClient, hub *websocket.Hub, userRepo *repository.UserRepository) *PresenceHandler {
	return &PresenceHandler{
		redis:    redis,
		hub:      hub,
		userRepo: userRepo,
	}
}

// GetPresence reports online status for a comma-separated list of user
// IDs
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	if _, ok := requesterID(c); !ok {
		return
	}

	raw := c.Query("ids")
	if raw == "" {
		ErrorResponse(c, http.StatusBadRequest, "ids query parameter required")
		return
	}

	parts := strings.Split(raw, ",")
	if len(parts) > 100 {
		ErrorResponse(c, http.StatusBadRequest, "Too many IDs, maximum 100")
		return
	}

	userIDs := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid user ID: "+part)
			return
		}
		userIDs = append(userIDs, id)
	}

	presence := make(map[uuid.UUID]bool, len(userIDs))
	if h.redis != nil {
		var err error
		presence, err = h.redis.GetPresence(userIDs)
		if err != nil {
			HandleError(c, err)
			return
		}
	} else {
		for _, id := range userIDs {
			presence[id] = h.hub.IsUserOnline(id)
		}
	}

	c.JSON(http.StatusOK, gin.H{"presence": presence})
}

// GetMyPresence reports the caller's own presence state
func (h *PresenceHandler) GetMyPresence(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	online := h.hub.IsUserOnline(uid)
	if h.redis != nil {
		redisOnline, err := h.redis.IsUserOnline(uid)
		if err == nil {
			online = online || redisOnline
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": uid,
		"online":  online,
	})
}

// GetOnlineUsers lists every user currently online
func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	if _, ok := requesterID(c); !ok {
		return
	}

	var userIDs []uuid.UUID
	if h.redis != nil {
		var err error
		userIDs, err = h.redis.GetOnlineUserIDs()
		if err != nil {
			HandleError(c, err)
			return
		}
	} else {
		userIDs = h.hub.GetOnlineUsers()
	}

	users, err := h.userRepo.GetByIDs(userIDs)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"online_users": users,
		"count":        len(users),
	})
}
