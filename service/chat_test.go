package service

import (
	"testing"

	"github.com/getlisa/copilot-server/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMessageForRequestText(t *testing.T) {
	userId := "17"
	msg := userMessageForRequest("conv-1", &userId, ChatRequest{Text: "compressor is rattling"})

	assert.Equal(t, "conv-1", msg.ConversationId)
	assert.Equal(t, model.SenderUser, msg.SenderType)
	assert.Equal(t, model.ContentText, msg.ContentType)
	assert.Equal(t, "compressor is rattling", msg.Content)
	assert.Empty(t, msg.Attachments)
}

func TestUserMessageForRequestWithImages(t *testing.T) {
	msg := userMessageForRequest("conv-1", nil, ChatRequest{
		Text:      "what is this part?",
		ImageURLs: []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
	})

	// image turns must survive into history and the image-listing fallback
	assert.Equal(t, model.ContentImage, msg.ContentType)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "https://cdn.example.com/a.jpg", msg.Attachments[0].Url)
	assert.Equal(t, "https://cdn.example.com/b.jpg", msg.Attachments[1].Url)
	assert.NotEmpty(t, msg.Attachments[0].ID)

	refs := refsFromMessages([]model.Message{*msg}, 10, func(key string) (string, error) {
		return "https://signed/" + key, nil
	})
	require.Len(t, refs, 2)
	assert.Equal(t, "https://cdn.example.com/a.jpg", refs[0].Url)
}
