package model

import (
	"fmt"
	"time"

	"github.com/getlisa/copilot-server/platform"
	uuid "github.com/google/uuid"
	"gorm.io/gorm"
)

type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "PENDING"
	ToolCallRunning   ToolCallStatus = "RUNNING"
	ToolCallCompleted ToolCallStatus = "COMPLETED"
	ToolCallFailed    ToolCallStatus = "FAILED"
)

// ToolCall records one tool invocation tied to a message. DurationMs is only
// computed at completion, from started/completed timestamps.
type ToolCall struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	MessageId   string         `gorm:"type:varchar(36);index" json:"message_id"`
	ToolName    string         `gorm:"type:varchar(64)" json:"tool_name"`
	Input       JSONMap        `gorm:"type:json" json:"input"`
	Output      JSONMap        `gorm:"type:json" json:"output"`
	Status      ToolCallStatus `gorm:"type:varchar(16)" json:"status"`
	StartedAt   *time.Time     `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	DurationMs  int64          `json:"duration_ms"`
	Error       string         `gorm:"type:text" json:"error"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (t *ToolCall) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = ToolCallPending
	}
	return nil
}

// RecordToolCall creates the record in RUNNING state with the start timestamp.
func RecordToolCall(messageId, toolName string, input JSONMap) (*ToolCall, error) {
	db := platform.DB
	now := time.Now()
	call := &ToolCall{
		MessageId: messageId,
		ToolName:  toolName,
		Input:     input,
		Status:    ToolCallRunning,
		StartedAt: &now,
	}
	if err := db.Create(call).Error; err != nil {
		return nil, fmt.Errorf("record tool call: %w", err)
	}
	return call, nil
}

func CompleteToolCall(id string, output JSONMap) error {
	return finishToolCall(id, ToolCallCompleted, output, "")
}

func FailToolCall(id string, errText string) error {
	return finishToolCall(id, ToolCallFailed, nil, errText)
}

func finishToolCall(id string, status ToolCallStatus, output JSONMap, errText string) error {
	db := platform.DB
	var call ToolCall
	if err := db.Where("id = ?", id).First(&call).Error; err != nil {
		return fmt.Errorf("tool call lookup: %w", err)
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
	}
	if call.StartedAt != nil {
		updates["duration_ms"] = now.Sub(*call.StartedAt).Milliseconds()
	}
	if output != nil {
		updates["output"] = output
	}
	if errText != "" {
		updates["error"] = errText
	}
	if err := db.Model(&ToolCall{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("finish tool call: %w", err)
	}
	return nil
}

func ListToolCalls(messageId string) ([]ToolCall, error) {
	db := platform.DB
	var calls []ToolCall
	if err := db.Where("message_id = ?", messageId).Order("created_at ASC").Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("list tool calls: %w", err)
	}
	return calls, nil
}
