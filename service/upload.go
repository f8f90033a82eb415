package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/getlisa/copilot-server/model"
	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// UploadService ingests technician photos: durable storage, message +
// ImageFile rows, then best-effort enrichment (summary, embedding). Only the
// storage write and the two inserts can fail the request; everything after is
// recovered locally.
type UploadService struct {
	summarizer *SummarizerService
}

func NewUploadService(summarizer *SummarizerService) *UploadService {
	return &UploadService{summarizer: summarizer}
}

const (
	uploadSignTTL   = 30 * time.Minute // must outlive the enrichment delay
	readinessBudget = 10 * time.Second
)

// IngestImage stores the image and creates the IMAGE message carrying the
// durable storage key in its attachment metadata.
func (s *UploadService) IngestImage(ctx context.Context, conversationId string, userId *string, filename, mimeType string, data []byte) (*model.Message, error) {
	key := fmt.Sprintf("conversations/%s/images/%s", conversationId, uuid.New().String())
	key, err := platform.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	message := &model.Message{
		ConversationId: conversationId,
		SenderType:     model.SenderUser,
		SenderId:       userId,
		Content:        fmt.Sprintf("Uploaded image: %s", filename),
		ContentType:    model.ContentImage,
		Attachments: model.Attachments{{
			ID:       uuid.New().String(),
			MimeType: mimeType,
			Filename: filename,
			Size:     int64(len(data)),
			Metadata: map[string]interface{}{"storage_key": key},
		}},
	}
	if err := model.CreateMessageWithConversationUpdate(message); err != nil {
		return nil, fmt.Errorf("persist image message: %w", err)
	}

	file := &model.ImageFile{
		ConversationId: conversationId,
		MessageId:      message.ID,
		StorageKey:     key,
		MimeType:       mimeType,
		Size:           int64(len(data)),
		Filename:       filename,
	}
	if err := model.CreateImageFile(file); err != nil {
		// the message fallback path still serves this image; don't fail the upload
		logger.Warnf("[upload] create image file record error, %s", err)
	}

	// enrichment runs off the request path
	go s.enrich(context.Background(), message.ID, file)

	return message, nil
}

// enrich waits for the stored object to become readable, summarizes it with
// the vision model, and indexes an embedding of the summary text. Every step
// is best-effort.
func (s *UploadService) enrich(ctx context.Context, messageId string, file *model.ImageFile) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if !platform.Store.WaitReady(ctx, file.StorageKey, readinessBudget) {
		logger.Warnf("[upload] image %s never became readable, skipping enrichment", file.StorageKey)
		return
	}
	url, err := platform.Store.Sign(ctx, file.StorageKey, uploadSignTTL)
	if err != nil {
		logger.Warnf("[upload] sign for enrichment error, %s", err)
		return
	}

	summary := s.summarizer.Summarize(ctx, url)
	if summary == nil {
		return
	}
	summary.ID = file.ID

	message, err := model.GetMessage(messageId)
	if err != nil {
		logger.Warnf("[upload] reload message %s error, %s", messageId, err)
		return
	}
	metadata := message.Metadata
	metadata.ImageSummaries = append(metadata.ImageSummaries, *summary)
	if err := model.UpdateMessageMetadata(messageId, metadata); err != nil {
		logger.Warnf("[upload] store summary on message %s error, %s", messageId, err)
	}

	embedding := embedText(ctx, summary.Summary)
	if len(embedding) == 0 {
		return
	}
	if err := model.UpdateImageEmbedding(file.ID, embedding); err != nil {
		logger.Warnf("[upload] store embedding for %s error, %s", file.ID, err)
	}
	if err := platform.IndexImage(ctx, file.ID, file.ConversationId, embedding); err != nil {
		logger.Warnf("[upload] index embedding for %s error, %s", file.ID, err)
	}
}

// embedText returns an embedding of the text, or nil on any failure.
func embedText(ctx context.Context, text string) model.Vector {
	if text == "" {
		return nil
	}
	resp, err := platform.LLMClient.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.F(platform.EmbeddingModel()),
		Input: openai.F[openai.EmbeddingNewParamsInputUnion](shared.UnionString(text)),
	})
	if err != nil {
		logger.Warnf("[upload] embedding call error, %s", err)
		return nil
	}
	if len(resp.Data) == 0 {
		return nil
	}
	embedding := make(model.Vector, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}
	return embedding
}
