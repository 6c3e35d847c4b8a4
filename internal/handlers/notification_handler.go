package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hubso/backend/internal/models"
	"github.com/hubso/backend/internal/notify"
	"github.com/hubso/backend/internal/repository"
)

type NotificationHandler struct {
	repo    *repository.NotificationRepository
	service *notify.Service
}

func NewNotificationHandler(repo *repository.NotificationRepository, service *notify.Service) *NotificationHandler {
	return &NotificationHandler{
		repo:    repo,
		service: service,
	}
}

// ListNotifications returns the caller's newest notifications plus the
// unread total
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	notifications, unread, err := h.repo.ListByUser(uid, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// MarkRead marks one notification read when an id is supplied, or all
// of the caller's notifications otherwise
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	var req models.MarkNotificationReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	if req.NotificationID != nil {
		if err := h.repo.MarkRead(*req.NotificationID, uid); err != nil {
			HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked_read": 1})
		return
	}

	marked, err := h.repo.MarkAllRead(uid)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked_read": marked})
}

// CreateNotification is the internal service-to-service entry point
// for pushing a notification to a user
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req models.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	notification, err := h.service.Notify(req.UserID, req.Type, req.Data, req.CommunityID)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, notification)
}
