package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homie43/car-fit-chat-backend/internal/chat"
	"github.com/homie43/car-fit-chat-backend/internal/model"
)

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	service *chat.Service
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

// Chat handles POST /api/v1/chat - full turn, single JSON response
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.service.Respond(c.Request.Context(), req.UserID, req.Message, nil)
	if err != nil {
		if errors.Is(err, chat.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, slow down"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ChatStream handles POST /api/v1/chat/stream - SSE streaming turn
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Transfer-Encoding", "chunked")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	sendSSE(c, "start", map[string]any{"user_id": req.UserID})
	flusher.Flush()

	result, err := h.service.Respond(c.Request.Context(), req.UserID, req.Message, func(fragment string) error {
		sendSSE(c, "delta", map[string]any{"text": fragment})
		flusher.Flush()
		return nil
	})

	if err != nil {
		if errors.Is(err, chat.ErrRateLimited) {
			sendSSE(c, "error", map[string]any{"error": "Too many requests, slow down"})
		} else {
			sendSSE(c, "error", map[string]any{"error": err.Error()})
		}
		flusher.Flush()
		return
	}

	// Send the full turn outcome, then close
	sendSSE(c, "result", result)
	flusher.Flush()

	sendSSE(c, "done", nil)
	flusher.Flush()
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
	}
}
