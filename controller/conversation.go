package controller

import (
	"net/http"

	"github.com/getlisa/copilot-server/model"
	"github.com/gin-gonic/gin"
)

type ConversationController struct{}

// Create returns the ACTIVE conversation for (user, job), creating it if
// needed.
func (ctrl ConversationController) Create(c *gin.Context) {
	var input struct {
		JobId    string        `json:"job_id" binding:"required"`
		Channel  string        `json:"channel"`
		Metadata model.JSONMap `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if input.Channel == "" {
		input.Channel = "chat"
	}

	conv, err := model.GetOrCreateActiveConversation(currentUserId(c), input.JobId, input.Channel, input.Metadata)
	if err != nil {
		logger.Warnf("[%s] create conversation error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (ctrl ConversationController) List(c *gin.Context) {
	userId := currentUserId(c)
	if userId == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Please login first"})
		return
	}
	convs, err := model.ListConversations(*userId)
	if err != nil {
		logger.Warnf("[%s] list conversations error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// Close transitions ACTIVE -> CLOSED. Transitions are one-directional.
func (ctrl ConversationController) Close(c *gin.Context) {
	if err := model.SetConversationStatus(c.Param("id"), model.ConversationClosed); err != nil {
		logger.Warnf("[%s] close conversation error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conversation closed"})
}
