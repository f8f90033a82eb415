package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"gorm.io/gorm"
)

type SenderType string

const (
	SenderUser   SenderType = "USER"
	SenderAI     SenderType = "AI"
	SenderSystem SenderType = "SYSTEM"
)

type ContentType string

const (
	ContentText       ContentType = "TEXT"
	ContentImage      ContentType = "IMAGE"
	ContentAudio      ContentType = "AUDIO"
	ContentVideo      ContentType = "VIDEO"
	ContentFile       ContentType = "FILE"
	ContentToolCall   ContentType = "TOOL_CALL"
	ContentToolResult ContentType = "TOOL_RESULT"
	ContentError      ContentType = "ERROR"
)

type MessageStatus string

const (
	MessagePending   MessageStatus = "PENDING"
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
	MessageFailed    MessageStatus = "FAILED"
	MessageEdited    MessageStatus = "EDITED"
	MessageDeleted   MessageStatus = "DELETED"
)

// Attachment is the transient per-message view of an uploaded file. The
// durable storage key lives in Metadata["storage_key"]; Url expires.
type Attachment struct {
	ID       string                 `json:"id"`
	Url      string                 `json:"url"`
	MimeType string                 `json:"mime_type"`
	Filename string                 `json:"filename"`
	Size     int64                  `json:"size"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StorageKey returns the durable object key, if the attachment carries one.
func (a Attachment) StorageKey() string {
	if a.Metadata == nil {
		return ""
	}
	if k, ok := a.Metadata["storage_key"].(string); ok {
		return k
	}
	return ""
}

type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *Attachments) Scan(value interface{}) error { return scanJSON(value, a) }

// ImageSummary is the stored structured description of one uploaded image,
// replayed into later turns by the history assembler.
type ImageSummary struct {
	ID             string   `json:"id"`
	Source         string   `json:"source"`
	Summary        string   `json:"summary"`
	Objects        []string `json:"objects"`
	Observations   []string `json:"observations"`
	InferredIssue  string   `json:"inferred_issue"`
	Confidence     float64  `json:"confidence"`
	LinkedEntities []string `json:"linked_entities"`
}

// MessageMetadata records how a message was produced.
type MessageMetadata struct {
	Model            string         `json:"model,omitempty"`
	PromptTokens     int            `json:"prompt_tokens,omitempty"`
	CompletionTokens int            `json:"completion_tokens,omitempty"`
	ToolsUsed        []string       `json:"tools_used,omitempty"`
	DurationMs       int64          `json:"duration_ms,omitempty"`
	ImageSummaries   []ImageSummary `json:"image_summaries,omitempty"`
}

func (m MessageMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MessageMetadata) Scan(value interface{}) error { return scanJSON(value, m) }

type Message struct {
	ID             string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationId string          `gorm:"type:varchar(36);index:idx_conversation_created" json:"conversation_id"`
	SenderType     SenderType      `gorm:"type:varchar(16)" json:"sender_type"`
	SenderId       *string         `gorm:"type:varchar(36)" json:"sender_id"`
	Content        string          `gorm:"type:text" json:"content"`
	ContentType    ContentType     `gorm:"type:varchar(16)" json:"content_type"`
	Attachments    Attachments     `gorm:"type:json" json:"attachments"`
	Metadata       MessageMetadata `gorm:"type:json" json:"metadata"`
	Status         MessageStatus   `gorm:"type:varchar(16)" json:"status"`
	CreatedAt      time.Time       `json:"created_at" gorm:"index:idx_conversation_created"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MessageSent
	}
	if m.ContentType == "" {
		m.ContentType = ContentText
	}
	return nil
}

// CreateMessageWithConversationUpdate inserts the message and bumps the owning
// conversation's updated_at in one transaction. Either both land or neither.
func CreateMessageWithConversationUpdate(message *Message) error {
	db := platform.DB
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if err := tx.Model(&Conversation{}).
			Where("id = ?", message.ConversationId).
			Update("updated_at", time.Now()).Error; err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		return nil
	})
}

// ListRecentMessages returns the most recent non-deleted messages in
// chronological order (oldest first).
func ListRecentMessages(conversationId string, limit int) ([]Message, error) {
	db := platform.DB
	var messages []Message
	err := db.Where("conversation_id = ? AND status <> ?", conversationId, MessageDeleted).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	// reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListRecentImageMessages returns recent IMAGE messages, newest first. Used as
// the fallback when no ImageFile rows were written for a conversation.
func ListRecentImageMessages(conversationId string, limit int) ([]Message, error) {
	db := platform.DB
	var messages []Message
	err := db.Where("conversation_id = ? AND content_type = ? AND status <> ?",
		conversationId, ContentImage, MessageDeleted).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list image messages: %w", err)
	}
	return messages, nil
}

func GetMessage(id string) (*Message, error) {
	db := platform.DB
	var message Message
	if err := db.Where("id = ?", id).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message not found")
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &message, nil
}

func UpdateMessageMetadata(id string, metadata MessageMetadata) error {
	db := platform.DB
	return db.Model(&Message{}).Where("id = ?", id).Update("metadata", metadata).Error
}

// SoftDeleteMessage marks the message DELETED; content is retained but the
// row drops out of default listings.
func SoftDeleteMessage(id string) error {
	db := platform.DB
	return db.Model(&Message{}).Where("id = ?", id).Update("status", MessageDeleted).Error
}
