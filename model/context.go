package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"gorm.io/gorm"
)

type ContextType string

const (
	ContextSummary      ContextType = "SUMMARY"
	ContextMemory       ContextType = "MEMORY"
	ContextEmbedding    ContextType = "EMBEDDING"
	ContextJobSnapshot  ContextType = "JOB_SNAPSHOT"
	ContextSystemPrompt ContextType = "SYSTEM_PROMPT"
)

// ConversationContext is auxiliary memory keyed by type. All types upsert to a
// single current row per (conversation, type), except MEMORY which is
// append-only: each entry is a discrete recalled fact.
type ConversationContext struct {
	ID             string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationId string      `gorm:"type:varchar(36);index:idx_ctx_conversation_type" json:"conversation_id"`
	Type           ContextType `gorm:"type:varchar(16);index:idx_ctx_conversation_type" json:"type"`
	Content        string      `gorm:"type:text" json:"content"`
	Embedding      Vector      `gorm:"type:json" json:"-"`
	TokenCount     int         `json:"token_count"`
	ExpiresAt      *time.Time  `json:"expires_at"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (c *ConversationContext) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// UpsertContext writes the current entry for (conversation, type). MEMORY
// entries always append.
func UpsertContext(entry *ConversationContext) error {
	db := platform.DB
	if entry.Type == ContextMemory {
		if err := db.Create(entry).Error; err != nil {
			return fmt.Errorf("append memory context: %w", err)
		}
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var existing ConversationContext
		err := tx.Where("conversation_id = ? AND type = ?", entry.ConversationId, entry.Type).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(entry).Error
		}
		if err != nil {
			return fmt.Errorf("lookup context: %w", err)
		}
		entry.ID = existing.ID
		return tx.Model(&ConversationContext{}).Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"content":     entry.Content,
				"embedding":   entry.Embedding,
				"token_count": entry.TokenCount,
				"expires_at":  entry.ExpiresAt,
			}).Error
	})
}

// ListContext returns unexpired entries for a conversation.
func ListContext(conversationId string) ([]ConversationContext, error) {
	db := platform.DB
	var entries []ConversationContext
	err := db.Where("conversation_id = ? AND (expires_at IS NULL OR expires_at > ?)",
		conversationId, time.Now()).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list context: %w", err)
	}
	return entries, nil
}

// SweepExpiredContexts removes entries past their expiry. Cron calls this.
func SweepExpiredContexts() (int64, error) {
	db := platform.DB
	result := db.Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&ConversationContext{})
	return result.RowsAffected, result.Error
}
