package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hubso/backend/internal/apperrors"
)

// ErrorResponse sends a standardized error body
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// HandleError maps a store error onto an HTTP status. Anything outside
// the known kinds is a 500 with the detail kept out of the response.
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthenticated):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperrors.ErrForbidden):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrInvalidOperation):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		ErrorResponse(c, http.StatusConflict, err.Error())
	default:
		log.Printf("[HTTP] internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

// requesterID pulls the authenticated user from the request context
func requesterID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return id, true
}
