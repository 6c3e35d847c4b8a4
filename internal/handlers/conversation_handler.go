package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hubso/backend/internal/models"
	"github.com/hubso/backend/internal/repository"
)

type ConversationHandler struct {
	convRepo *repository.ConversationRepository
}

func NewConversationHandler(convRepo *repository.ConversationRepository) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo}
}

// CreateDM finds or creates the direct conversation with a recipient.
// Calling it twice with the same recipient returns the same
// conversation.
func (h *ConversationHandler) CreateDM(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	var req models.CreateDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	conversation, err := h.convRepo.GetOrCreateDirect(uid, req.RecipientID)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// CreateGroup creates a group conversation with the caller as a member
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	conversation, err := h.convRepo.CreateGroup(uid, req.Name, req.ParticipantIDs)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

// ListConversations returns the caller's conversations, most recently
// active first
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversations, err := h.convRepo.ListForUser(uid)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetConversation returns one conversation the caller belongs to
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	isMember, err := h.convRepo.IsMember(conversationID, uid)
	if err != nil {
		HandleError(c, err)
		return
	}
	if !isMember {
		ErrorResponse(c, http.StatusForbidden, "Access denied")
		return
	}

	conversation, err := h.convRepo.GetByID(conversationID)
	if err != nil {
		HandleError(c, err)
		return
	}

	members, err := h.convRepo.GetMembers(conversationID)
	if err != nil {
		HandleError(c, err)
		return
	}
	conversation.Participants = members

	c.JSON(http.StatusOK, conversation)
}

// UpdateGroup renames a group or changes its avatar
func (h *ConversationHandler) UpdateGroup(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	conversation, err := h.convRepo.UpdateGroup(conversationID, uid, req.Name, req.AvatarURL)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// AddParticipant adds a user to a group conversation
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	var req models.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.convRepo.AddParticipant(conversationID, uid, req.UserID); err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participant added"})
}

// RemoveParticipant removes a user from a group conversation
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.convRepo.RemoveParticipant(conversationID, uid, targetID); err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participant removed"})
}

// LeaveGroup removes the caller from a group conversation
func (h *ConversationHandler) LeaveGroup(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.convRepo.Leave(conversationID, uid); err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left conversation"})
}
