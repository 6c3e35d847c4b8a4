package websocket

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hubso/backend/internal/auth"
	"github.com/hubso/backend/internal/cache"
	"github.com/hubso/backend/internal/repository"
)

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub            *Hub
	jwtService     *auth.JWTService
	msgRepo        *repository.MessageRepository
	convRepo       *repository.ConversationRepository
	redis          *cache.RedisClient
	allowedOrigins []string
	limits         Limits
	upgrader       websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(
	hub *Hub,
	jwtService *auth.JWTService,
	msgRepo *repository.MessageRepository,
	convRepo *repository.ConversationRepository,
	redis *cache.RedisClient,
	allowedOrigins []string,
	limits Limits,
) *Handler {
	h := &Handler{
		hub:            hub,
		jwtService:     jwtService,
		msgRepo:        msgRepo,
		convRepo:       convRepo,
		redis:          redis,
		allowedOrigins: allowedOrigins,
		limits:         limits,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	// No configured origins means non-browser clients and development
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header
		return true
	}
	for _, pattern := range h.allowedOrigins {
		if matchOrigin(pattern, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket authenticates and upgrades the connection. The token
// comes from the ?token= query parameter or a Bearer header; a missing
// or invalid token rejects the request before the upgrade.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] failed to upgrade connection: %v", err)
		return
	}

	client := NewClient(
		h.hub,
		conn,
		claims.UserID,
		claims.Email,
		claims.CommunityID,
		h.msgRepo,
		h.convRepo,
		h.redis,
		h.limits,
	)

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// matchOrigin supports exact matches or wildcard patterns like *.example.com
func matchOrigin(pattern, origin string) bool {
	if pattern == origin || pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		originHost := origin
		if u, err := url.Parse(origin); err == nil && u.Hostname() != "" {
			originHost = u.Hostname()
		}
		return strings.HasSuffix(originHost, strings.TrimPrefix(pattern, "*."))
	}
	return false
}
