package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "ACTIVE"
	ConversationClosed   ConversationStatus = "CLOSED"
	ConversationArchived ConversationStatus = "ARCHIVED"
)

// Conversation is one technician-to-copilot thread. UserId is nullable so a
// thread can be shared across a crew.
type Conversation struct {
	ID        string             `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserId    *string            `gorm:"type:varchar(36);index:idx_user_job_status" json:"user_id"`
	JobId     string             `gorm:"type:varchar(64);index:idx_user_job_status" json:"job_id"`
	Channel   string             `gorm:"type:varchar(32)" json:"channel"`
	Status    ConversationStatus `gorm:"type:varchar(16);index:idx_user_job_status" json:"status"`
	Members   StringList         `gorm:"type:json" json:"members"`
	Metadata  JSONMap            `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = ConversationActive
	}
	c.Members = dedupMembers(c.Members)
	return nil
}

// dedupMembers keeps first-seen order while dropping repeats.
func dedupMembers(members StringList) StringList {
	seen := make(map[string]bool, len(members))
	out := make(StringList, 0, len(members))
	for _, m := range members {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// GetOrCreateActiveConversation enforces at most one ACTIVE conversation per
// (user, job): check-then-create runs inside one transaction.
func GetOrCreateActiveConversation(userId *string, jobId, channel string, metadata JSONMap) (*Conversation, error) {
	db := platform.DB
	var conv Conversation
	err := db.Transaction(func(tx *gorm.DB) error {
		query := tx.Where("job_id = ? AND status = ?", jobId, ConversationActive)
		if userId != nil {
			query = query.Where("user_id = ?", *userId)
		} else {
			query = query.Where("user_id IS NULL")
		}
		if err := query.First(&conv).Error; err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup active conversation: %w", err)
		}

		conv = Conversation{
			UserId:   userId,
			JobId:    jobId,
			Channel:  channel,
			Status:   ConversationActive,
			Metadata: metadata,
		}
		if userId != nil {
			conv.Members = StringList{*userId}
		}
		if err := tx.Create(&conv).Error; err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func GetConversation(id string) (*Conversation, error) {
	db := platform.DB
	var conv Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation not found")
		}
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &conv, nil
}

func ListConversations(userId string) ([]Conversation, error) {
	db := platform.DB
	var convs []Conversation
	err := db.Where("user_id = ? AND status <> ?", userId, ConversationArchived).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// SetConversationStatus applies a one-directional transition. ACTIVE can move
// to CLOSED or ARCHIVED, CLOSED to ARCHIVED; anything else is rejected.
func SetConversationStatus(id string, status ConversationStatus) error {
	db := platform.DB
	conv, err := GetConversation(id)
	if err != nil {
		return err
	}
	if !validTransition(conv.Status, status) {
		return fmt.Errorf("invalid status transition %s -> %s", conv.Status, status)
	}
	return db.Model(&Conversation{}).Where("id = ?", id).Update("status", status).Error
}

func validTransition(from, to ConversationStatus) bool {
	switch from {
	case ConversationActive:
		return to == ConversationClosed || to == ConversationArchived
	case ConversationClosed:
		return to == ConversationArchived
	default:
		return false
	}
}

// ArchiveStaleConversations is the cron sweep: CLOSED threads untouched for
// the given number of days move to ARCHIVED.
func ArchiveStaleConversations(days int) (int64, error) {
	db := platform.DB
	cutoff := time.Now().AddDate(0, 0, -days)
	result := db.Model(&Conversation{}).
		Where("status = ? AND updated_at < ?", ConversationClosed, cutoff).
		Update("status", ConversationArchived)
	return result.RowsAffected, result.Error
}
