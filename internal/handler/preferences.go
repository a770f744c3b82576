package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homie43/car-fit-chat-backend/internal/chat"
)

// PreferencesHandler exposes the stored preference set
type PreferencesHandler struct {
	service *chat.Service
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(service *chat.Service) *PreferencesHandler {
	return &PreferencesHandler{service: service}
}

// Get handles GET /api/v1/preferences/:user_id
func (h *PreferencesHandler) Get(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	prefs, err := h.service.Preferences(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load preferences: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "preferences": prefs})
}

// Delete handles DELETE /api/v1/preferences/:user_id
func (h *PreferencesHandler) Delete(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if err := h.service.ResetPreferences(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset preferences: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "status": "reset"})
}
