package model

import (
	"fmt"
	"time"

	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"gorm.io/gorm"
)

// ImageFile is the durable record of an uploaded image. StorageKey is the
// identity; URLs are derived on read and expire. MessageId is a weak
// back-reference: the row can outlive its message for audit and search.
type ImageFile struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ConversationId string    `gorm:"type:varchar(36);index:idx_image_conversation" json:"conversation_id"`
	MessageId      string    `gorm:"type:varchar(36)" json:"message_id"`
	StorageKey     string    `gorm:"type:varchar(512)" json:"storage_key"`
	MimeType       string    `gorm:"type:varchar(64)" json:"mime_type"`
	Size           int64     `json:"size"`
	Filename       string    `gorm:"type:varchar(255)" json:"filename"`
	Embedding      Vector    `gorm:"type:json" json:"-"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_image_conversation"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (f *ImageFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

func CreateImageFile(file *ImageFile) error {
	db := platform.DB
	if err := db.Create(file).Error; err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	return nil
}

// ListRecentImageFiles returns a conversation's images, newest first.
func ListRecentImageFiles(conversationId string, limit int) ([]ImageFile, error) {
	db := platform.DB
	var files []ImageFile
	err := db.Where("conversation_id = ?", conversationId).
		Order("created_at DESC").
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list image files: %w", err)
	}
	return files, nil
}

// GetImageFilesByIDs fetches rows for the given ids, preserving the order of
// the id slice (similarity ranking order).
func GetImageFilesByIDs(ids []string) ([]ImageFile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := platform.DB
	var files []ImageFile
	if err := db.Where("id IN ?", ids).Find(&files).Error; err != nil {
		return nil, fmt.Errorf("get image files: %w", err)
	}
	byID := make(map[string]ImageFile, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}
	ordered := make([]ImageFile, 0, len(files))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			ordered = append(ordered, f)
		}
	}
	return ordered, nil
}

func UpdateImageEmbedding(id string, embedding Vector) error {
	db := platform.DB
	return db.Model(&ImageFile{}).Where("id = ?", id).Update("embedding", embedding).Error
}
