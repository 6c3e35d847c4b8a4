package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubso/backend/config"
	"github.com/hubso/backend/internal/auth"
	"github.com/hubso/backend/internal/cache"
	"github.com/hubso/backend/internal/database"
	"github.com/hubso/backend/internal/handlers"
	"github.com/hubso/backend/internal/middleware"
	"github.com/hubso/backend/internal/notify"
	"github.com/hubso/backend/internal/repository"
	"github.com/hubso/backend/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	log.Println("Running database migrations...")
	if err := database.RunMigrations(db.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Connect to Redis. Presence falls back to process-local state
	// without it.
	redis, err := cache.NewRedisClient(cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v", err)
		log.Println("Running without Redis - presence is limited to this process")
		redis = nil
	} else {
		defer redis.Close()
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	// WebSocket hub and gateway
	typingWindow := cfg.Chat.TypingResetWindow()
	hub := websocket.NewHub(redis, typingWindow, prometheus.DefaultRegisterer)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, jwtService, msgRepo, convRepo, redis, cfg.CORS.AllowedOrigins, websocket.Limits{
		MessagesPerSec:   cfg.API.RateLimitMessagesPerSec,
		MaxContentLength: cfg.Chat.MaxMessageLength,
	})

	// Notification fan-out
	notifService := notify.NewService(notifRepo, hub)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userRepo)
	convHandler := handlers.NewConversationHandler(convRepo)
	msgHandler := handlers.NewMessageHandler(msgRepo, hub, cfg.Chat.DefaultPageSize)
	notifHandler := handlers.NewNotificationHandler(notifRepo, notifService)
	presenceHandler := handlers.NewPresenceHandler(redis, hub, userRepo)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitMessagesPerSec)
	rateLimiter.Cleanup()

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	// Health check and metrics
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint
	router.GET("/ws", wsHandler.HandleWebSocket)

	// Internal service-to-service routes
	internal := router.Group("/internal")
	internal.Use(middleware.InternalAPIKeyMiddleware(cfg.API.KeyHeader, cfg.API.InternalKey))
	{
		internal.POST("/notifications", notifHandler.CreateNotification)
	}

	// Protected routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	{
		// User routes
		api.GET("/me", userHandler.GetMe)
		api.GET("/users/:id", userHandler.GetUser)

		// Conversation routes
		api.POST("/dm", convHandler.CreateDM)
		api.POST("/groups", convHandler.CreateGroup)
		api.GET("/conversations", convHandler.ListConversations)
		api.GET("/conversations/:id", convHandler.GetConversation)
		api.PATCH("/conversations/:id", convHandler.UpdateGroup)
		api.POST("/conversations/:id/participants", convHandler.AddParticipant)
		api.DELETE("/conversations/:id/participants/:user_id", convHandler.RemoveParticipant)
		api.DELETE("/conversations/:id/leave", convHandler.LeaveGroup)

		// Message routes
		api.GET("/conversations/:id/messages", msgHandler.ListMessages)
		api.POST("/conversations/:id/messages", middleware.RateLimitMiddleware(rateLimiter), msgHandler.SendMessage)
		api.POST("/conversations/:id/read", msgHandler.MarkRead)
		api.DELETE("/messages/:id", msgHandler.DeleteMessage)
		api.GET("/unread-counts", msgHandler.UnreadCounts)

		// Notification routes
		api.GET("/notifications", notifHandler.ListNotifications)
		api.POST("/notifications/read", notifHandler.MarkRead)

		// Presence routes
		api.GET("/presence", presenceHandler.GetPresence)
		api.GET("/presence/me", presenceHandler.GetMyPresence)
		api.GET("/online-users", presenceHandler.GetOnlineUsers)
	}

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Starting Hubso messaging server on %s (env: %s)", addr, cfg.Server.Env)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
