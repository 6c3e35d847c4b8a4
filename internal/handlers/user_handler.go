package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hubso/backend/internal/repository"
)

type UserHandler struct {
	userRepo *repository.UserRepository
}

func NewUserHandler(userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// GetMe returns the caller's profile
func (h *UserHandler) GetMe(c *gin.Context) {
	uid, ok := requesterID(c)
	if !ok {
		return
	}

	user, err := h.userRepo.GetByID(uid)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUser returns another user's public profile
func (h *UserHandler) GetUser(c *gin.Context) {
	if _, ok := requesterID(c); !ok {
		return
	}

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
