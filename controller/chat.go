package controller

import (
	"errors"
	"net/http"

	"github.com/getlisa/copilot-server/model"
	"github.com/getlisa/copilot-server/service"
	"github.com/gin-gonic/gin"
)

type ChatController struct{}

// Chat runs one conversational turn and streams the answer back over SSE.
func (ch ChatController) Chat(c *gin.Context) {
	var req service.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := chatService.HandleTurn(c, currentUserId(c), req); err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Warnf("[%s] Failed to run turn: %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run turn"})
		return
	}
}

// Messages lists a conversation's recent messages, oldest first.
func (ch ChatController) Messages(c *gin.Context) {
	conversationId := c.Param("id")
	messages, err := model.ListRecentMessages(conversationId, 100)
	if err != nil {
		logger.Warnf("[%s] list messages error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
