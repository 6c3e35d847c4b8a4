package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hubso/backend/internal/models"
	"github.com/hubso/backend/internal/repository"
	"github.com/hubso/backend/internal/websocket"
)

// MessageHandler is the REST fallback for clients without a live
// socket. Sends still broadcast through the hub so connected members
// see them in real time.
type MessageHandler struct {
	msgRepo  *repository.MessageRepository
	hub      *websocket.Hub
	pageSize int
}

func NewMessageHandler(msgRepo *repository.MessageRepository, hub *websocket.Hub, pageSize int) *MessageHandler {
	return &MessageHandler{
		msgRepo:  msgRepo,
		hub:      hub,
		pageSize: pageSize,
	}
}

// ListMessages returns one cursor page of history, oldest first.
// Fetching a page marks the other participants' messages in it as
// read for the caller.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.Limit <= 0 {
		req.Limit = h.pageSize
	}

	page, err := h.msgRepo.ListPage(conversationID, uid, req.Cursor, req.Limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// SendMessage persists a message and broadcasts it to the conversation
// room
func (h *MessageHandler) SendMessage(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.msgRepo.Send(conversationID, uid, req.Content, req.Type, req.ParentID)
	if err != nil {
		HandleError(c, err)
		return
	}

	h.hub.Broadcast(websocket.ConversationRoom(conversationID), models.EventMessageReceive, message)

	c.JSON(http.StatusCreated, message)
}

// MarkRead marks every unread message from other senders as read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	marked, err := h.msgRepo.MarkConversationRead(conversationID, uid)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked_read": marked})
}

// DeleteMessage removes one of the caller's own messages
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid message ID")
		return
	}

	if err := h.msgRepo.Delete(messageID, uid); err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

// UnreadCounts returns per-conversation unread totals for the caller
func (h *MessageHandler) UnreadCounts(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	counts, err := h.msgRepo.UnreadCounts(uid)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_counts": counts})
}
