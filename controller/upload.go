package controller

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type UploadController struct{}

const maxUploadBytes = 15 << 20

// UploadImage accepts one multipart image for a conversation. The response
// returns as soon as the image and its message are durable; summarization and
// embedding run in the background.
func (ctrl UploadController) UploadImage(c *gin.Context) {
	conversationId := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only image uploads are supported"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}

	message, err := uploadService.IngestImage(c.Request.Context(), conversationId, currentUserId(c), fileHeader.Filename, mimeType, data)
	if err != nil {
		logger.Warnf("[%s] ingest image error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	logger.Infof("[%s] image stored for conversation %s, message %s", c.GetString("requestId"), conversationId, message.ID)
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// RecentImages resolves a conversation's latest uploads to signed URLs.
func (ctrl UploadController) RecentImages(c *gin.Context) {
	refs, err := imagesService.RecentImages(c.Request.Context(), c.Param("id"), 0, 15*time.Minute)
	if err != nil {
		logger.Warnf("[%s] recent images error, %s", c.GetString("requestId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list images"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": refs})
}
