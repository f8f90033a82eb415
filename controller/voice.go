package controller

import (
	"net/http"

	"github.com/getlisa/copilot-server/service"
	"github.com/gin-gonic/gin"
)

type VoiceController struct{}

// Start opens a duplex voice session bound to a conversation.
func (ctrl VoiceController) Start(c *gin.Context) {
	var input struct {
		ConversationId     string `json:"conversation_id" binding:"required"`
		Voice              string `json:"voice"`
		InputFormat        string `json:"input_format"`
		VADMode            string `json:"vad_mode"`
		TranscriptionModel string `json:"transcription_model"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	session, err := voiceRegistry.Create(service.VoiceConfig{
		ConversationId:     input.ConversationId,
		UserId:             currentUserId(c),
		Voice:              input.Voice,
		InputFormat:        input.InputFormat,
		VADMode:            input.VADMode,
		TranscriptionModel: input.TranscriptionModel,
	}, service.VoiceHooks{})
	if err != nil {
		logger.Warnf("[%s] start voice session error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start voice session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "state": session.State()})
}

// SendText pushes pre-transcribed text into the session, bypassing STT.
func (ctrl VoiceController) SendText(c *gin.Context) {
	var input struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	session, ok := voiceRegistry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	session.SendText(input.Text)
	c.JSON(http.StatusOK, gin.H{"state": session.State()})
}

// SendAudio pushes a base64 audio chunk; commit forces end-of-utterance.
func (ctrl VoiceController) SendAudio(c *gin.Context) {
	var input struct {
		Audio  string `json:"audio" binding:"required"`
		Commit bool   `json:"commit"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	session, ok := voiceRegistry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err := session.SendAudio(input.Audio, input.Commit); err != nil {
		logger.Warnf("[%s] send audio error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send audio"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": session.State()})
}

// Stop tears the session down. Stopping an unknown or already-stopped
// session is a no-op.
func (ctrl VoiceController) Stop(c *gin.Context) {
	voiceRegistry.Destroy(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"message": "Session stopped"})
}
