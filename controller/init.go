package controller

import (
	"github.com/getlisa/copilot-server/service"
	"github.com/gin-gonic/gin"
	"strconv"
)

// Services are constructed once at startup, after platform init, and shared
// read-only across requests.
var (
	chatService   *service.ChatService
	uploadService *service.UploadService
	imagesService *service.ImageService
	voiceRegistry *service.VoiceRegistry
)

// InitServices wires the service graph. Call after platform.InitDB /
// InitLLMClient / InitStorage / InitVectorIndex.
func InitServices() {
	guard := &service.GuardrailService{}
	imagesService = &service.ImageService{}
	history := &service.HistoryService{}
	agent := service.NewAgentService(guard, imagesService)
	chatService = service.NewChatService(agent, history)
	uploadService = service.NewUploadService(&service.SummarizerService{})
	voiceRegistry = service.NewVoiceRegistry(chatService.RunTurnText)
}

// currentUserId reads the authenticated user id set by the token middleware.
func currentUserId(c *gin.Context) *string {
	v, ok := c.Get("UserId")
	if !ok {
		return nil
	}
	id, ok := v.(int64)
	if !ok {
		return nil
	}
	s := strconv.FormatInt(id, 10)
	return &s
}
